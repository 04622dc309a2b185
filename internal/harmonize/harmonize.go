// Package harmonize merges mapped datasets from several origins into one
// canonical dataset.
package harmonize

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"go.uber.org/zap"
)

const (
	// OriginColumn tags every harmonized row with the origin it came from.
	OriginColumn = "origin_dataset"
	// TreatmentColumn is the canonical treatment field.
	TreatmentColumn = "treatment"
)

// Arms are the canonical treatment codes.
var Arms = [2]float64{1, 2}

// Alignment is the declared transform that brings one source's treatment
// codes onto the canonical {1, 2} coding. Exactly one of Shift and Codes is
// used; Codes wins when non-nil.
type Alignment struct {
	// Field is the canonical (post-rename) treatment column.
	Field string
	Shift float64
	Codes map[float64]float64
}

// Identity declares that a source is already coded {1, 2}.
func Identity() *Alignment { return &Alignment{Field: TreatmentColumn} }

// ShiftBy declares an additive shift, e.g. ShiftBy(1) for a {0, 1} source.
func ShiftBy(delta float64) *Alignment { return &Alignment{Field: TreatmentColumn, Shift: delta} }

func (a *Alignment) field() string {
	if a.Field == "" {
		return TreatmentColumn
	}
	return a.Field
}

func (a *Alignment) apply(origin string, c *dataset.Column) (*dataset.Column, error) {
	vals := c.Floats()
	nulls := c.Nulls()
	for i, x := range vals {
		if nulls[i] {
			continue
		}
		if a.Codes != nil {
			to, ok := a.Codes[x]
			if !ok {
				return nil, &SchemaConflictError{Origin: origin, Field: c.Name(), Reason: fmt.Sprintf("treatment code %v has no alignment entry", x)}
			}
			x = to
		} else {
			x += a.Shift
		}
		if x != Arms[0] && x != Arms[1] {
			return nil, &SchemaConflictError{Origin: origin, Field: c.Name(), Reason: fmt.Sprintf("aligned treatment code %v is not 1 or 2", x)}
		}
		vals[i] = x
	}
	return dataset.NewNumeric(TreatmentColumn, vals, nulls), nil
}

// Source is one mapped dataset and the declarations needed to bring it into
// the canonical schema.
type Source struct {
	Origin    string
	Data      *dataset.Dataset
	Rename    map[string]string
	Treatment *Alignment
	// Constants become numeric columns, e.g. country for a per-country segment.
	Constants map[string]float64
}

// Harmonizer unions sources into one dataset.
type Harmonizer struct {
	log *zap.Logger
}

// New returns a Harmonizer; a nil logger discards output.
func New(log *zap.Logger) *Harmonizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Harmonizer{log: log}
}

// Harmonize is shorthand for New(nil).Harmonize.
func Harmonize(sources ...Source) (*dataset.Dataset, error) {
	return New(nil).Harmonize(sources...)
}

// Harmonize renames, aligns and tags every source, then concatenates them
// row-wise. Any conflict aborts the whole merge.
func (h *Harmonizer) Harmonize(sources ...Source) (*dataset.Dataset, error) {
	if len(sources) == 0 {
		return nil, errors.New("harmonize: no sources")
	}
	parts := make([]*dataset.Dataset, 0, len(sources))
	for _, s := range sources {
		p, err := canonical(s)
		if err != nil {
			return nil, err
		}
		h.log.Debug("source aligned",
			zap.String("origin", s.Origin),
			zap.String("source", s.Data.Name()),
			zap.Int("rows", p.Len()),
		)
		parts = append(parts, p)
	}
	out, err := dataset.Concat("harmonized", parts...)
	if err != nil {
		if errors.Is(err, dataset.ErrKindMismatch) {
			return nil, &SchemaConflictError{Origin: "*", Field: "*", Reason: "canonical field has incompatible kinds across origins", Err: err}
		}
		return nil, fmt.Errorf("harmonize: %w", err)
	}
	h.log.Info("harmonized", zap.Int("sources", len(sources)), zap.Int("rows", out.Len()), zap.Int("columns", len(out.Names())))
	return out, nil
}

func canonical(s Source) (*dataset.Dataset, error) {
	if s.Origin == "" {
		return nil, errors.New("harmonize: source without origin")
	}
	if s.Data == nil {
		return nil, fmt.Errorf("harmonize: origin %s has no data", s.Origin)
	}
	if s.Treatment == nil {
		return nil, &SchemaConflictError{Origin: s.Origin, Field: TreatmentColumn, Reason: "no treatment alignment declared"}
	}
	if err := checkRename(s); err != nil {
		return nil, err
	}
	d, err := s.Data.Rename(s.Rename)
	if err != nil {
		return nil, &SchemaConflictError{Origin: s.Origin, Field: "*", Reason: "rename collides with an existing column", Err: err}
	}

	tf := s.Treatment.field()
	tc, err := d.Column(tf)
	if err != nil {
		return nil, &SchemaConflictError{Origin: s.Origin, Field: tf, Reason: "treatment field missing", Err: err}
	}
	if tc.Kind() != dataset.Numeric {
		return nil, &SchemaConflictError{Origin: s.Origin, Field: tf, Reason: "treatment field is not numeric"}
	}
	aligned, err := s.Treatment.apply(s.Origin, tc)
	if err != nil {
		return nil, err
	}
	if tf != TreatmentColumn {
		if d.Has(TreatmentColumn) {
			return nil, &SchemaConflictError{Origin: s.Origin, Field: TreatmentColumn, Reason: fmt.Sprintf("both %s and %s present", tf, TreatmentColumn)}
		}
		d = d.Drop(tf)
	}
	if d, err = d.WithColumn(aligned); err != nil {
		return nil, fmt.Errorf("harmonize %s: %w", s.Origin, err)
	}

	names := make([]string, 0, len(s.Constants))
	for name := range s.Constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if d.Has(name) {
			return nil, &SchemaConflictError{Origin: s.Origin, Field: name, Reason: "constant collides with a column"}
		}
		v := s.Constants[name]
		if math.IsNaN(v) {
			return nil, &SchemaConflictError{Origin: s.Origin, Field: name, Reason: "constant is NaN"}
		}
		if d, err = d.WithColumn(dataset.ConstNumeric(name, v, d.Len())); err != nil {
			return nil, fmt.Errorf("harmonize %s: %w", s.Origin, err)
		}
	}
	if d.Has(OriginColumn) {
		return nil, &SchemaConflictError{Origin: s.Origin, Field: OriginColumn, Reason: "reserved column already present"}
	}
	return d.WithColumn(dataset.ConstText(OriginColumn, s.Origin, d.Len()))
}

func checkRename(s Source) error {
	targets := make(map[string]string, len(s.Rename))
	for from, to := range s.Rename {
		if to == "" {
			return &SchemaConflictError{Origin: s.Origin, Field: from, Reason: "empty canonical name"}
		}
		if other, dup := targets[to]; dup {
			a, b := other, from
			if b < a {
				a, b = b, a
			}
			return &SchemaConflictError{Origin: s.Origin, Field: to, Reason: fmt.Sprintf("both %s and %s rename to it", a, b)}
		}
		targets[to] = from
	}
	return nil
}
