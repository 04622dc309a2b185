// Package plan declares what a run analyses: the input origins and how to
// map them, the covariate sets, subgroups and outcome analyses.
package plan

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/KaramelBytes/surveyate/internal/source"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// AllSubgroup is the subgroup that applies no filter.
const AllSubgroup = "all"

// Plan is the full declarative description of a run.
type Plan struct {
	Version              int              `yaml:"version"`
	Origins              []Origin         `yaml:"origins"`
	Tables               map[string]Table `yaml:"tables,omitempty"`
	BalanceCovariates    []string         `yaml:"balance_covariates"`
	AdjustmentCovariates []string         `yaml:"adjustment_covariates"`
	Subgroups            []Subgroup       `yaml:"subgroups"`
	Analyses             []Analysis       `yaml:"analyses"`

	// dir resolves relative source paths; empty means the working directory.
	dir string
}

// Origin is one logical dataset, possibly split over several files.
type Origin struct {
	Name string `yaml:"name"`
	// Display is appended to figure labels, e.g. "Pseudo Data".
	Display    string            `yaml:"display,omitempty"`
	Sources    []SourceFile      `yaml:"sources"`
	Fields     []Field           `yaml:"fields"`
	Composites []Composite       `yaml:"composites,omitempty"`
	Dummies    *Dummies          `yaml:"dummies,omitempty"`
	Rename     map[string]string `yaml:"rename,omitempty"`
	Treatment  *Treatment        `yaml:"treatment"`
}

// SourceFile is one input file of an origin.
type SourceFile struct {
	Path      string             `yaml:"path"`
	Format    string             `yaml:"format,omitempty"`
	Label     string             `yaml:"label,omitempty"`
	Constants map[string]float64 `yaml:"constants,omitempty"`
}

// Field maps one raw field. Table names a built-in or plan-level code table.
type Field struct {
	Source string `yaml:"source"`
	Target string `yaml:"target,omitempty"`
	Kind   string `yaml:"kind"`
	Table  string `yaml:"table,omitempty"`
	Min    int    `yaml:"min,omitempty"`
	Max    int    `yaml:"max,omitempty"`
}

// Composite sums two mapped items.
type Composite struct {
	Target string   `yaml:"target"`
	Items  []string `yaml:"items"`
}

// Dummies expands an ordinal field into indicators.
type Dummies struct {
	Source    string         `yaml:"source"`
	Reference int            `yaml:"reference"`
	Levels    map[int]string `yaml:"levels"`
}

// Table is a custom code table; exactly one of Labels and Codes is set.
// Codes keys are numeric raw codes written as strings.
type Table struct {
	Labels map[string]int `yaml:"labels,omitempty"`
	Codes  map[string]int `yaml:"codes,omitempty"`
}

// Treatment declares how an origin's treatment codes align to {1, 2}.
// Shift must be given explicitly (0 for an origin already coded {1, 2})
// unless Codes is set.
type Treatment struct {
	Field string             `yaml:"field,omitempty"`
	Shift *float64           `yaml:"shift,omitempty"`
	Codes map[string]float64 `yaml:"codes,omitempty"`
}

// Subgroup filters subjects on a numeric field. The "all" subgroup has no
// filter.
type Subgroup struct {
	Name  string   `yaml:"name"`
	Label string   `yaml:"label"`
	Field string   `yaml:"field,omitempty"`
	Value *float64 `yaml:"value,omitempty"`
}

// Axis is the horizontal range of a figure.
type Axis struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Analysis is one outcome estimated on a list of subgroups.
type Analysis struct {
	Outcome   string   `yaml:"outcome"`
	Title     string   `yaml:"title"`
	Subgroups []string `yaml:"subgroups"`
	// ShowSubgroup appends the subgroup label to the figure title.
	ShowSubgroup bool            `yaml:"show_subgroup,omitempty"`
	Axes         map[string]Axis `yaml:"axes"`
}

// Default returns the built-in plan for the published study.
func Default() *Plan {
	p, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded plan: %v", err))
	}
	return p
}

// DefaultYAML returns the built-in plan document.
func DefaultYAML() []byte { return append([]byte(nil), defaultYAML...) }

// Parse decodes and validates a plan document.
func Parse(b []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads a plan file. Relative source paths resolve against the
// plan's directory.
func Load(path string) (*Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

// WithDir returns a copy whose relative source paths resolve against dir.
func (p *Plan) WithDir(dir string) *Plan {
	cp := *p
	cp.dir = dir
	return &cp
}

// Resolve returns path relative to the plan's directory.
func (p *Plan) Resolve(path string) string {
	if filepath.IsAbs(path) || p.dir == "" {
		return path
	}
	return filepath.Join(p.dir, path)
}

// Marshal encodes the plan as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Origin returns the named origin.
func (p *Plan) Origin(name string) (Origin, bool) {
	for _, o := range p.Origins {
		if o.Name == name {
			return o, true
		}
	}
	return Origin{}, false
}

// Subgroup returns the named subgroup.
func (p *Plan) Subgroup(name string) (Subgroup, bool) {
	for _, s := range p.Subgroups {
		if s.Name == name {
			return s, true
		}
	}
	return Subgroup{}, false
}

// Validate reports every problem in the plan at once.
func (p *Plan) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if len(p.Origins) == 0 {
		add("no origins")
	}
	origins := map[string]bool{}
	for _, o := range p.Origins {
		if o.Name == "" {
			add("origin without a name")
			continue
		}
		if origins[o.Name] {
			add("duplicate origin %q", o.Name)
		}
		origins[o.Name] = true
		if len(o.Sources) == 0 {
			add("origin %s: no sources", o.Name)
		}
		for _, s := range o.Sources {
			if s.Path == "" {
				add("origin %s: source without a path", o.Name)
			}
			if s.Format != "" && s.Format != string(source.Stata) && s.Format != string(source.CSV) {
				add("origin %s: unknown format %q", o.Name, s.Format)
			}
		}
		if o.Treatment == nil {
			add("origin %s: no treatment alignment declared", o.Name)
		} else if o.Treatment.Shift == nil && len(o.Treatment.Codes) == 0 {
			add("origin %s: treatment alignment needs shift or codes", o.Name)
		} else if o.Treatment.Shift != nil && len(o.Treatment.Codes) > 0 {
			add("origin %s: treatment alignment has both shift and codes", o.Name)
		}
		for k := range o.Treatment.codesOrNil() {
			if _, err := strconv.ParseFloat(k, 64); err != nil {
				add("origin %s: treatment code %q is not numeric", o.Name, k)
			}
		}
		for _, c := range o.Composites {
			if c.Target == "" || len(c.Items) != 2 {
				add("origin %s: composite %q needs a target and exactly two items", o.Name, c.Target)
			}
		}
		if _, err := p.MapperSpec(o); err != nil {
			errs = append(errs, err)
		}
	}

	subgroups := map[string]bool{}
	for _, s := range p.Subgroups {
		if s.Name == "" {
			add("subgroup without a name")
			continue
		}
		if subgroups[s.Name] {
			add("duplicate subgroup %q", s.Name)
		}
		subgroups[s.Name] = true
		if s.Name != AllSubgroup && (s.Field == "" || s.Value == nil) {
			add("subgroup %s: needs field and value", s.Name)
		}
	}

	if len(p.BalanceCovariates) == 0 {
		add("no balance covariates")
	}
	units := map[string]bool{}
	for i, a := range p.Analyses {
		if a.Outcome == "" {
			add("analysis %d: no outcome", i+1)
			continue
		}
		if len(a.Subgroups) == 0 {
			add("analysis %s: no subgroups", a.Outcome)
		}
		for _, sg := range a.Subgroups {
			if !subgroups[sg] {
				add("analysis %s: unknown subgroup %q", a.Outcome, sg)
			}
			key := a.Outcome + "/" + sg
			if units[key] {
				add("analysis %s: subgroup %s listed twice", a.Outcome, sg)
			}
			units[key] = true
		}
		for _, o := range p.Origins {
			ax, ok := a.Axes[o.Name]
			if !ok {
				add("analysis %s: no axis for origin %s", a.Outcome, o.Name)
				continue
			}
			if ax.Min >= ax.Max {
				add("analysis %s: empty axis for origin %s", a.Outcome, o.Name)
			}
		}
		for name := range a.Axes {
			if !origins[name] {
				add("analysis %s: axis for unknown origin %q", a.Outcome, name)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid plan: %w", errors.Join(errs...))
	}
	return nil
}

func (t *Treatment) codesOrNil() map[string]float64 {
	if t == nil {
		return nil
	}
	return t.Codes
}
