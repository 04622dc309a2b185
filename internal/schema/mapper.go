package schema

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"go.uber.org/zap"
)

// FieldKind selects how a raw field is converted.
type FieldKind string

const (
	// KindLabels looks text labels up in a code table.
	KindLabels FieldKind = "labels"
	// KindCodes looks numeric raw codes up in a code table.
	KindCodes FieldKind = "codes"
	// KindRange accepts integer codes within [Min, Max] unchanged.
	KindRange FieldKind = "range"
	// KindNumeric passes numeric values through.
	KindNumeric FieldKind = "numeric"
)

// FieldSpec declares one raw field and its canonical form.
type FieldSpec struct {
	Source string
	// Target defaults to Source when empty.
	Target string
	Kind   FieldKind
	Table  CodeTable
	Min    int
	Max    int
}

func (f FieldSpec) target() string {
	if f.Target == "" {
		return f.Source
	}
	return f.Target
}

// Composite is the sum of exactly two mapped items.
type Composite struct {
	Target string
	Items  [2]string
}

// Dummies expands a mapped ordinal field into indicator columns. The
// Reference level gets no column.
type Dummies struct {
	Source    string
	Reference int
	Levels    map[int]string
}

// Spec is the declared origin schema for one raw dataset.
type Spec struct {
	Origin     string
	Fields     []FieldSpec
	Composites []Composite
	Dummies    *Dummies
}

// EconomicMechanisms and RepresentationMechanisms are the study's two composite indices.
var (
	EconomicMechanisms       = Composite{Target: "economic_mechanisms", Items: [2]string{"eubenefic", "euworth"}}
	RepresentationMechanisms = Composite{Target: "representation_mechanisms", Items: [2]string{"eurestric", "eunotall"}}
)

// EducationDummies expands the 3-level education field; level 1 is the reference.
func EducationDummies(source string) *Dummies {
	return &Dummies{
		Source:    source,
		Reference: 1,
		Levels:    map[int]string{2: "secondary_education", 3: "tertiary_education"},
	}
}

// Mapper converts raw datasets into canonical encoding.
type Mapper struct {
	spec Spec
	log  *zap.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger attaches a logger; the default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(m *Mapper) {
		if l != nil {
			m.log = l
		}
	}
}

// NewMapper validates spec and returns a Mapper for it.
func NewMapper(spec Spec, opts ...Option) (*Mapper, error) {
	seen := map[string]bool{}
	for _, f := range spec.Fields {
		if f.Source == "" {
			return nil, fmt.Errorf("origin %s: field with empty source", spec.Origin)
		}
		t := f.target()
		if seen[t] {
			return nil, fmt.Errorf("origin %s: two fields map to %q", spec.Origin, t)
		}
		seen[t] = true
		switch f.Kind {
		case KindLabels, KindCodes:
			if f.Table.Len() == 0 {
				return nil, fmt.Errorf("origin %s: field %s has an empty code table", spec.Origin, f.Source)
			}
			if (f.Kind == KindLabels) != f.Table.IsLabels() {
				return nil, fmt.Errorf("origin %s: field %s: %s field needs a matching table", spec.Origin, f.Source, f.Kind)
			}
		case KindRange:
			if f.Min > f.Max {
				return nil, fmt.Errorf("origin %s: field %s: empty range [%d,%d]", spec.Origin, f.Source, f.Min, f.Max)
			}
		case KindNumeric:
		default:
			return nil, fmt.Errorf("origin %s: field %s: unknown kind %q", spec.Origin, f.Source, f.Kind)
		}
	}
	for _, c := range spec.Composites {
		if c.Target == "" || c.Items[0] == "" || c.Items[1] == "" {
			return nil, fmt.Errorf("origin %s: incomplete composite %+v", spec.Origin, c)
		}
	}
	m := &Mapper{spec: spec, log: zap.NewNop()}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Spec returns the declared schema.
func (m *Mapper) Spec() Spec { return m.spec }

// Map converts raw into canonical encoding. Every failing field is reported
// in a *MappingError; no partially mapped dataset is returned.
func (m *Mapper) Map(raw *dataset.Dataset) (*dataset.Dataset, error) {
	bySource := make(map[string]FieldSpec, len(m.spec.Fields))
	for _, f := range m.spec.Fields {
		bySource[f.Source] = f
	}
	var errs []error
	for _, f := range m.spec.Fields {
		if !raw.Has(f.Source) {
			errs = append(errs, fmt.Errorf("field %s: %w", f.Source, dataset.ErrUnknownColumn))
		}
	}

	var cols []*dataset.Column
	for _, c := range raw.Columns() {
		f, ok := bySource[c.Name()]
		if !ok {
			cols = append(cols, c)
			continue
		}
		mapped, err := m.mapField(raw, c, f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cols = append(cols, mapped)
	}
	if len(errs) > 0 {
		return nil, &MappingError{Origin: m.spec.Origin, Errs: errs}
	}

	out, err := dataset.New(raw.Name(), raw.Keys(), cols...)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", m.spec.Origin, err)
	}
	for _, comp := range m.spec.Composites {
		c, err := composite(out, comp)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", m.spec.Origin, err)
		}
		if out, err = out.WithColumn(c); err != nil {
			return nil, fmt.Errorf("mapping %s: %w", m.spec.Origin, err)
		}
	}
	if m.spec.Dummies != nil {
		dcols, err := dummies(out, *m.spec.Dummies, m.spec.Origin)
		if err != nil {
			return nil, err
		}
		for _, c := range dcols {
			if out, err = out.WithColumn(c); err != nil {
				return nil, fmt.Errorf("mapping %s: %w", m.spec.Origin, err)
			}
		}
	}
	m.log.Debug("mapped dataset",
		zap.String("origin", m.spec.Origin),
		zap.Int("rows", out.Len()),
		zap.Int("fields", len(m.spec.Fields)),
	)
	return out, nil
}

func (m *Mapper) mapField(raw *dataset.Dataset, c *dataset.Column, f FieldSpec) (*dataset.Column, error) {
	n := c.Len()
	vals := make([]float64, n)
	null := make([]bool, n)
	var unmapped *UnmappedCategoryError
	miss := func(i int, v string) {
		if unmapped == nil {
			unmapped = &UnmappedCategoryError{Origin: m.spec.Origin, Field: f.Source, Value: v, Row: raw.Key(i)}
		}
		unmapped.Count++
	}

	switch f.Kind {
	case KindLabels:
		if c.Kind() != dataset.Text {
			return nil, fmt.Errorf("field %s: labels need a text column, got %s: %w", f.Source, c.Kind(), dataset.ErrKindMismatch)
		}
		for i := 0; i < n; i++ {
			s, ok := c.Text(i)
			if !ok {
				null[i] = true
				continue
			}
			code, ok := f.Table.Label(s)
			if !ok {
				miss(i, s)
				continue
			}
			vals[i] = float64(code)
		}
	case KindCodes, KindRange, KindNumeric:
		if c.Kind() != dataset.Numeric {
			return nil, fmt.Errorf("field %s: %s needs a numeric column, got %s: %w", f.Source, f.Kind, c.Kind(), dataset.ErrKindMismatch)
		}
		for i := 0; i < n; i++ {
			x, ok := c.Float(i)
			if !ok {
				null[i] = true
				continue
			}
			switch f.Kind {
			case KindCodes:
				code, ok := f.Table.Code(x)
				if !ok {
					miss(i, formatFloat(x))
					continue
				}
				vals[i] = float64(code)
			case KindRange:
				if x != math.Trunc(x) || x < float64(f.Min) || x > float64(f.Max) {
					miss(i, formatFloat(x))
					continue
				}
				vals[i] = x
			default:
				vals[i] = x
			}
		}
	}
	if unmapped != nil {
		return nil, unmapped
	}
	return dataset.NewNumeric(f.target(), vals, null), nil
}

func composite(d *dataset.Dataset, comp Composite) (*dataset.Column, error) {
	a, err := d.Column(comp.Items[0])
	if err != nil {
		return nil, fmt.Errorf("composite %s: %w", comp.Target, err)
	}
	b, err := d.Column(comp.Items[1])
	if err != nil {
		return nil, fmt.Errorf("composite %s: %w", comp.Target, err)
	}
	n := d.Len()
	vals := make([]float64, n)
	null := make([]bool, n)
	for i := 0; i < n; i++ {
		x, okx := a.Float(i)
		y, oky := b.Float(i)
		if !okx || !oky {
			null[i] = true
			continue
		}
		vals[i] = x + y
	}
	return dataset.NewNumeric(comp.Target, vals, null), nil
}

func dummies(d *dataset.Dataset, spec Dummies, origin string) ([]*dataset.Column, error) {
	src, err := d.Column(spec.Source)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: dummies: %w", origin, err)
	}
	levels := make([]int, 0, len(spec.Levels))
	for lvl := range spec.Levels {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)
	n := d.Len()
	out := make([]*dataset.Column, len(levels))
	vals := make([][]float64, len(levels))
	for j := range levels {
		vals[j] = make([]float64, n)
	}
	null := make([]bool, n)
	var unmapped *UnmappedCategoryError
	for i := 0; i < n; i++ {
		x, ok := src.Float(i)
		if !ok {
			null[i] = true
			continue
		}
		matched := int(x) == spec.Reference && x == math.Trunc(x)
		for j, lvl := range levels {
			if x == float64(lvl) {
				vals[j][i] = 1
				matched = true
			}
		}
		if !matched {
			if unmapped == nil {
				unmapped = &UnmappedCategoryError{Origin: origin, Field: spec.Source, Value: formatFloat(x), Row: d.Key(i)}
			}
			unmapped.Count++
		}
	}
	if unmapped != nil {
		return nil, &MappingError{Origin: origin, Errs: []error{unmapped}}
	}
	for j, lvl := range levels {
		out[j] = dataset.NewNumeric(spec.Levels[lvl], vals[j], null)
	}
	return out, nil
}

func formatFloat(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }

// IsUnmapped reports whether err carries an UnmappedCategoryError.
func IsUnmapped(err error) bool {
	var u *UnmappedCategoryError
	return errors.As(err, &u)
}
