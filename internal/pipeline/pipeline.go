// Package pipeline runs an analysis plan end to end: load, map, harmonize,
// then balance checks and effect estimates fanned out over a bounded pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/KaramelBytes/surveyate/internal/balance"
	"github.com/KaramelBytes/surveyate/internal/dataset"
	"github.com/KaramelBytes/surveyate/internal/effect"
	"github.com/KaramelBytes/surveyate/internal/harmonize"
	"github.com/KaramelBytes/surveyate/internal/plan"
	"github.com/KaramelBytes/surveyate/internal/resultstore"
	"github.com/KaramelBytes/surveyate/internal/schema"
	"github.com/KaramelBytes/surveyate/internal/source"
	"github.com/KaramelBytes/surveyate/internal/stats"
	"github.com/KaramelBytes/surveyate/internal/visual"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Stages a failure can come from.
const (
	StageLoad    = "load"
	StageMapping = "mapping"
	StageBalance = "balance"
	StageEffect  = "effect"
	StageFigure  = "figure"
)

// ErrNoOrigins is returned when every origin failed to load or map.
var ErrNoOrigins = errors.New("no origin survived loading and mapping")

// Inputs configures one run.
type Inputs struct {
	Plan    *plan.Plan
	Level   float64
	Test    stats.Test
	Workers int

	// Origins, Outcomes and Subgroups restrict the run; empty means all.
	Origins   []string
	Outcomes  []string
	Subgroups []string

	SkipBalance bool
	SkipEffects bool

	// FigureDir and Renderer enable figures; either empty disables them.
	FigureDir string
	Renderer  visual.Renderer

	// Store, when set, receives the finished run.
	Store *resultstore.Store
	Log   *zap.Logger
}

// Unit is one analysis unit. Outcome holds the covariate for balance failures.
type Unit struct {
	Origin   string
	Subgroup string
	Outcome  string
	Label    string
}

func (u Unit) String() string {
	s := u.Origin
	if u.Outcome != "" {
		s += "/" + u.Outcome
	}
	if u.Subgroup != "" {
		s += "/" + u.Subgroup
	}
	return s
}

// UnitError labels a failure with the unit that produced it.
type UnitError struct {
	Stage string
	Unit  Unit
	Err   error
}

func (e *UnitError) Error() string { return fmt.Sprintf("%s %s: %v", e.Stage, e.Unit, e.Err) }
func (e *UnitError) Unwrap() error { return e.Err }

// Estimate is a successfully fitted unit.
type Estimate struct {
	Unit Unit
	Pair effect.Pair
	// Figure is the rendered file, empty when figures are off or failed.
	Figure string
}

// Result is everything a run produced, in plan order.
type Result struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Level    float64
	Test     stats.Test
	// Origins are the origins that survived loading and mapping.
	Origins   []string
	Data      *dataset.Dataset
	Balance   []*balance.Report
	Estimates []Estimate
	Failures  []*UnitError
}

func (in Inputs) withDefaults() (Inputs, error) {
	if in.Plan == nil {
		return in, errors.New("pipeline: no plan")
	}
	if in.Level == 0 {
		in.Level = effect.DefaultLevel
	}
	if in.Level <= 0 || in.Level >= 1 {
		return in, fmt.Errorf("pipeline: confidence level %v outside (0,1)", in.Level)
	}
	if in.Test == "" {
		in.Test = stats.Welch
	}
	if in.Workers <= 0 {
		in.Workers = runtime.GOMAXPROCS(0)
	}
	if in.Log == nil {
		in.Log = zap.NewNop()
	}
	for _, name := range in.Origins {
		if _, ok := in.Plan.Origin(name); !ok {
			return in, fmt.Errorf("pipeline: unknown origin %q", name)
		}
	}
	for _, name := range in.Subgroups {
		if _, ok := in.Plan.Subgroup(name); !ok {
			return in, fmt.Errorf("pipeline: unknown subgroup %q", name)
		}
	}
	return in, nil
}

// Run executes the plan. Unit failures are collected in the result; only
// plan or configuration errors, a schema conflict, or losing every origin
// return an error.
func Run(ctx context.Context, in Inputs) (*Result, error) {
	in, err := in.withDefaults()
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: uuid.NewString(), Started: time.Now(), Level: in.Level, Test: in.Test}
	log := in.Log.With(zap.String("run", res.RunID))

	origins := selectOrigins(in.Plan, in.Origins)
	data, dropped, err := prepare(ctx, in.Plan, origins, log)
	if err != nil {
		return nil, err
	}
	for _, o := range origins {
		if derr, ok := dropped[o.Name]; ok {
			res.Failures = append(res.Failures, derr)
			continue
		}
		res.Origins = append(res.Origins, o.Name)
	}
	if len(res.Origins) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoOrigins, errors.Join(unwrapAll(res.Failures)...))
	}
	res.Data = data

	if !in.SkipBalance {
		reps, fails := runBalance(ctx, in, res.Origins, data, log)
		res.Balance = reps
		res.Failures = append(res.Failures, fails...)
		for _, o := range origins {
			if derr, ok := dropped[o.Name]; ok {
				res.Failures = append(res.Failures, &UnitError{Stage: StageBalance, Unit: Unit{Origin: o.Name}, Err: derr.Err})
			}
		}
	}
	if !in.SkipEffects {
		ests, fails := runEffects(ctx, in, origins, dropped, data, log)
		res.Estimates = ests
		res.Failures = append(res.Failures, fails...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Finished = time.Now()

	if in.Store != nil {
		if _, err := in.Store.SaveRun(ctx, res.Record(in.Plan.Version)); err != nil {
			return res, fmt.Errorf("save run: %w", err)
		}
	}
	log.Info("run finished",
		zap.Strings("origins", res.Origins),
		zap.Int("estimates", len(res.Estimates)),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("took", res.Finished.Sub(res.Started)),
	)
	return res, nil
}

func selectOrigins(p *plan.Plan, names []string) []plan.Origin {
	if len(names) == 0 {
		return p.Origins
	}
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	var out []plan.Origin
	for _, o := range p.Origins {
		if want[o.Name] {
			out = append(out, o)
		}
	}
	return out
}

// prepare loads and maps each origin, then harmonizes the survivors. An
// origin whose files fail to load or map is dropped with a UnitError.
func prepare(ctx context.Context, p *plan.Plan, origins []plan.Origin, log *zap.Logger) (*dataset.Dataset, map[string]*UnitError, error) {
	dropped := map[string]*UnitError{}
	var sources []harmonize.Source
	for _, o := range origins {
		srcs, stage, err := loadOrigin(ctx, p, o, log)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			var me *schema.MappingError
			if stage == StageMapping && !errors.As(err, &me) && !schema.IsUnmapped(err) {
				// a bad field declaration is a plan error
				return nil, nil, err
			}
			log.Warn("origin dropped", zap.String("origin", o.Name), zap.String("stage", stage), zap.Error(err))
			dropped[o.Name] = &UnitError{Stage: stage, Unit: Unit{Origin: o.Name}, Err: err}
			continue
		}
		sources = append(sources, srcs...)
	}
	if len(sources) == 0 {
		return nil, dropped, nil
	}
	data, err := harmonize.New(log).Harmonize(sources...)
	if err != nil {
		return nil, nil, err
	}
	return data, dropped, nil
}

func loadOrigin(ctx context.Context, p *plan.Plan, o plan.Origin, log *zap.Logger) ([]harmonize.Source, string, error) {
	spec, err := p.MapperSpec(o)
	if err != nil {
		return nil, StageMapping, err
	}
	m, err := schema.NewMapper(spec, schema.WithLogger(log))
	if err != nil {
		return nil, StageMapping, err
	}
	mapped := make([]*dataset.Dataset, 0, len(o.Sources))
	for _, sf := range o.Sources {
		path := p.Resolve(sf.Path)
		raw, err := source.Read(ctx, path, source.Format(sf.Format), sf.Label)
		if err != nil {
			return nil, StageLoad, err
		}
		log.Debug("loaded source", zap.String("origin", o.Name), zap.String("path", path), zap.Int("rows", raw.Len()))
		ds, err := m.Map(raw)
		if err != nil {
			return nil, StageMapping, err
		}
		mapped = append(mapped, ds)
	}
	srcs, err := o.Harmonize(mapped)
	if err != nil {
		return nil, StageMapping, err
	}
	return srcs, "", nil
}

type balanceOutcome struct {
	index int
	rep   *balance.Report
	err   error
}

func runBalance(ctx context.Context, in Inputs, origins []string, data *dataset.Dataset, log *zap.Logger) ([]*balance.Report, []*UnitError) {
	p := pool.NewWithResults[balanceOutcome]().WithMaxGoroutines(in.Workers)
	for i, name := range origins {
		p.Go(func() balanceOutcome {
			if err := ctx.Err(); err != nil {
				return balanceOutcome{index: i, err: err}
			}
			sub, err := data.WhereText(harmonize.OriginColumn, name)
			if err != nil {
				return balanceOutcome{index: i, err: err}
			}
			rep, err := balance.Validate(sub, in.Plan.BalanceCovariates, balance.Options{
				Origin: name,
				Test:   in.Test,
				Log:    log,
			})
			return balanceOutcome{index: i, rep: rep, err: err}
		})
	}
	outs := p.Wait()
	sort.Slice(outs, func(a, b int) bool { return outs[a].index < outs[b].index })

	var reps []*balance.Report
	var fails []*UnitError
	for _, o := range outs {
		origin := origins[o.index]
		if o.err != nil {
			fails = append(fails, &UnitError{Stage: StageBalance, Unit: Unit{Origin: origin}, Err: o.err})
			continue
		}
		reps = append(reps, o.rep)
		for _, f := range o.rep.Failures {
			fails = append(fails, &UnitError{Stage: StageBalance, Unit: Unit{Origin: origin, Outcome: f.Covariate}, Err: f.Err})
		}
	}
	return reps, fails
}

type effectTask struct {
	unit     Unit
	analysis plan.Analysis
	subgroup plan.Subgroup
	origin   plan.Origin
}

type effectOutcome struct {
	index int
	est   Estimate
	err   *UnitError
	// figErr is a figure failure; the estimate itself still stands.
	figErr *UnitError
}

// units expands the plan into (analysis, subgroup, origin) units in plan order.
func units(in Inputs, origins []plan.Origin) []effectTask {
	outcomes := map[string]bool{}
	for _, o := range in.Outcomes {
		outcomes[o] = true
	}
	subgroups := map[string]bool{}
	for _, s := range in.Subgroups {
		subgroups[s] = true
	}
	var tasks []effectTask
	for _, a := range in.Plan.Analyses {
		if len(outcomes) > 0 && !outcomes[a.Outcome] {
			continue
		}
		for _, sname := range a.Subgroups {
			if len(subgroups) > 0 && !subgroups[sname] {
				continue
			}
			s, _ := in.Plan.Subgroup(sname)
			for _, o := range origins {
				tasks = append(tasks, effectTask{
					unit:     Unit{Origin: o.Name, Subgroup: sname, Outcome: a.Outcome, Label: a.Label(o, s)},
					analysis: a,
					subgroup: s,
					origin:   o,
				})
			}
		}
	}
	return tasks
}

func runEffects(ctx context.Context, in Inputs, origins []plan.Origin, dropped map[string]*UnitError, data *dataset.Dataset, log *zap.Logger) ([]Estimate, []*UnitError) {
	tasks := units(in, origins)
	if in.FigureDir != "" && in.Renderer != nil {
		if err := os.MkdirAll(in.FigureDir, 0o755); err != nil {
			log.Warn("figures disabled", zap.Error(err))
			in.FigureDir = ""
		}
	}
	p := pool.NewWithResults[effectOutcome]().WithMaxGoroutines(in.Workers)
	for i, t := range tasks {
		if derr, ok := dropped[t.origin.Name]; ok {
			p.Go(func() effectOutcome {
				return effectOutcome{index: i, err: &UnitError{Stage: StageEffect, Unit: t.unit, Err: derr.Err}}
			})
			continue
		}
		p.Go(func() effectOutcome {
			return estimate(ctx, in, i, t, data, log)
		})
	}
	outs := p.Wait()
	sort.Slice(outs, func(a, b int) bool { return outs[a].index < outs[b].index })

	var ests []Estimate
	var fails []*UnitError
	for _, o := range outs {
		if o.err != nil {
			fails = append(fails, o.err)
			continue
		}
		ests = append(ests, o.est)
		if o.figErr != nil {
			fails = append(fails, o.figErr)
		}
	}
	return ests, fails
}

func estimate(ctx context.Context, in Inputs, i int, t effectTask, data *dataset.Dataset, log *zap.Logger) effectOutcome {
	fail := func(stage string, err error) effectOutcome {
		log.Warn("unit failed", zap.String("stage", stage), zap.String("origin", t.unit.Origin),
			zap.String("outcome", t.unit.Outcome), zap.String("subgroup", t.unit.Subgroup), zap.Error(err))
		return effectOutcome{index: i, err: &UnitError{Stage: stage, Unit: t.unit, Err: err}}
	}
	if err := ctx.Err(); err != nil {
		return fail(StageEffect, err)
	}
	sub, err := data.WhereText(harmonize.OriginColumn, t.origin.Name)
	if err != nil {
		return fail(StageEffect, err)
	}
	if sub, err = t.subgroup.Apply(sub); err != nil {
		return fail(StageEffect, err)
	}
	pair, err := effect.Estimate(sub, t.analysis.Outcome, effect.Options{
		Covariates: in.Plan.AdjustmentCovariates,
		Level:      in.Level,
	})
	if err != nil {
		return fail(StageEffect, err)
	}
	out := effectOutcome{index: i, est: Estimate{Unit: t.unit, Pair: pair}}
	log.Debug("unit estimated", zap.String("origin", t.unit.Origin), zap.String("outcome", t.unit.Outcome),
		zap.String("subgroup", t.unit.Subgroup), zap.Float64("coef", pair.Unadjusted.Coef), zap.Int("n", pair.Unadjusted.N))

	if in.FigureDir == "" || in.Renderer == nil {
		return out
	}
	axis := t.analysis.Axes[t.origin.Name]
	path := filepath.Join(in.FigureDir, visual.FileName(t.unit.Label, in.Renderer.Format()))
	if err := renderFile(path, in.Renderer, visual.FromPair(t.unit.Label, axis.Min, axis.Max, pair)); err != nil {
		out.figErr = &UnitError{Stage: StageFigure, Unit: t.unit, Err: err}
		log.Warn("figure failed", zap.String("label", t.unit.Label), zap.Error(err))
		return out
	}
	out.est.Figure = path
	return out
}

func renderFile(path string, r visual.Renderer, fig visual.Figure) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Render(f, fig); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func unwrapAll(errs []*UnitError) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// Record converts the result for the result store.
func (r *Result) Record(planVersion int) resultstore.RunRecord {
	rec := resultstore.RunRecord{
		ID:          r.RunID,
		StartedAt:   r.Started,
		FinishedAt:  r.Finished,
		PlanVersion: planVersion,
		Level:       r.Level,
		Test:        string(r.Test),
		Origins:     r.Origins,
		Balance:     r.Balance,
	}
	for _, e := range r.Estimates {
		rec.Models = append(rec.Models, resultstore.ModelRecord{
			Origin:   e.Unit.Origin,
			Subgroup: e.Unit.Subgroup,
			Label:    e.Unit.Label,
			Pair:     e.Pair,
		})
	}
	for _, f := range r.Failures {
		rec.Failures = append(rec.Failures, resultstore.FailureRecord{
			Stage:    f.Stage,
			Origin:   f.Unit.Origin,
			Subgroup: f.Unit.Subgroup,
			Target:   f.Unit.Outcome,
			Message:  f.Err.Error(),
		})
	}
	return rec
}
