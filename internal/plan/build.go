package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"github.com/KaramelBytes/surveyate/internal/harmonize"
	"github.com/KaramelBytes/surveyate/internal/schema"
)

var builtinTables = map[string]func() schema.CodeTable{
	"likert":     schema.Likert,
	"gender":     schema.Gender,
	"unemployed": schema.Unemployed,
}

// Table resolves a code table by name. Plan-level tables shadow built-ins.
func (p *Plan) Table(name string) (schema.CodeTable, error) {
	if t, ok := p.Tables[name]; ok {
		switch {
		case len(t.Labels) > 0 && len(t.Codes) > 0:
			return schema.CodeTable{}, fmt.Errorf("table %s: both labels and codes", name)
		case len(t.Labels) > 0:
			return schema.NewLabelTable(name, t.Labels), nil
		case len(t.Codes) > 0:
			codes := make(map[float64]int, len(t.Codes))
			for k, v := range t.Codes {
				x, err := strconv.ParseFloat(strings.TrimSpace(k), 64)
				if err != nil {
					return schema.CodeTable{}, fmt.Errorf("table %s: code %q is not numeric", name, k)
				}
				codes[x] = v
			}
			return schema.NewCodeTable(name, codes), nil
		}
		return schema.CodeTable{}, fmt.Errorf("table %s is empty", name)
	}
	if mk, ok := builtinTables[name]; ok {
		return mk(), nil
	}
	return schema.CodeTable{}, fmt.Errorf("unknown table %q", name)
}

// MapperSpec builds the schema mapping declared for o.
func (p *Plan) MapperSpec(o Origin) (schema.Spec, error) {
	spec := schema.Spec{Origin: o.Name}
	for _, f := range o.Fields {
		fs := schema.FieldSpec{
			Source: f.Source,
			Target: f.Target,
			Kind:   schema.FieldKind(f.Kind),
			Min:    f.Min,
			Max:    f.Max,
		}
		if f.Table != "" {
			t, err := p.Table(f.Table)
			if err != nil {
				return schema.Spec{}, fmt.Errorf("origin %s field %s: %w", o.Name, f.Source, err)
			}
			fs.Table = t
		}
		spec.Fields = append(spec.Fields, fs)
	}
	for _, c := range o.Composites {
		if len(c.Items) != 2 {
			continue
		}
		spec.Composites = append(spec.Composites, schema.Composite{Target: c.Target, Items: [2]string{c.Items[0], c.Items[1]}})
	}
	if o.Dummies != nil {
		spec.Dummies = &schema.Dummies{Source: o.Dummies.Source, Reference: o.Dummies.Reference, Levels: o.Dummies.Levels}
	}
	if _, err := schema.NewMapper(spec); err != nil {
		return schema.Spec{}, err
	}
	return spec, nil
}

// Alignment converts the declared treatment alignment. It returns nil when
// none was declared, which harmonization rejects.
func (o Origin) Alignment() *harmonize.Alignment {
	t := o.Treatment
	if t == nil {
		return nil
	}
	a := &harmonize.Alignment{Field: t.Field}
	if len(t.Codes) > 0 {
		a.Codes = make(map[float64]float64, len(t.Codes))
		for k, v := range t.Codes {
			x, err := strconv.ParseFloat(strings.TrimSpace(k), 64)
			if err != nil {
				continue
			}
			a.Codes[x] = v
		}
		return a
	}
	if t.Shift != nil {
		a.Shift = *t.Shift
	}
	return a
}

// Harmonize pairs each loaded source file of o with its declarations.
// data must be in the order of o.Sources.
func (o Origin) Harmonize(data []*dataset.Dataset) ([]harmonize.Source, error) {
	if len(data) != len(o.Sources) {
		return nil, fmt.Errorf("origin %s: %d datasets for %d sources", o.Name, len(data), len(o.Sources))
	}
	out := make([]harmonize.Source, len(data))
	for i, d := range data {
		out[i] = harmonize.Source{
			Origin:    o.Name,
			Data:      d,
			Rename:    o.Rename,
			Treatment: o.Alignment(),
			Constants: o.Sources[i].Constants,
		}
	}
	return out, nil
}

// Apply filters ds to the subgroup.
func (s Subgroup) Apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if s.Field == "" || s.Value == nil {
		return ds, nil
	}
	return ds.WhereEquals(s.Field, *s.Value)
}

// Label is the figure title for one analysis unit.
func (a Analysis) Label(o Origin, s Subgroup) string {
	label := a.Title
	if label == "" {
		label = a.Outcome
	}
	if a.ShowSubgroup {
		label += " - " + s.Label
	}
	if o.Display != "" {
		label += " (" + o.Display + ")"
	}
	return label
}
