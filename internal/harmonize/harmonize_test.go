package harmonize

import (
	"errors"
	"testing"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"github.com/KaramelBytes/surveyate/internal/schema"
)

func mapped(t *testing.T) *dataset.Dataset {
	t.Helper()
	raw, err := dataset.New("original", dataset.Keys("original", 4),
		dataset.NewNumeric("treatment", []float64{1, 2, 1, 2}, nil),
		dataset.NewText("female", []string{"Hombre", "Mujer", "Mujer", "Hombre"}, nil),
		dataset.NewNumeric("age", []float64{30, 41, 52, 63}, []bool{false, true, false, false}),
		dataset.NewNumeric("country", []float64{1, 1, 2, 2}, nil),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m, err := schema.NewMapper(schema.Spec{
		Origin: "original",
		Fields: []schema.FieldSpec{{Source: "female", Kind: schema.KindLabels, Table: schema.Gender()}},
	})
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	out, err := m.Map(raw)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	return out
}

func synthetic(t *testing.T, name string, n int) *dataset.Dataset {
	t.Helper()
	treat := make([]float64, n)
	age := make([]float64, n)
	for i := range treat {
		treat[i] = float64(i % 2)
		age[i] = float64(20 + i)
	}
	d, err := dataset.New(name, dataset.Keys(name, n),
		dataset.NewNumeric("Treatment", treat, nil),
		dataset.NewNumeric("Age", age, nil),
		dataset.NewNumeric("Gender", treat, nil),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestSingleSourceIdentity(t *testing.T) {
	m := mapped(t)
	h, err := Harmonize(Source{Origin: "original", Data: m, Treatment: Identity()})
	if err != nil {
		t.Fatalf("Harmonize: %v", err)
	}
	origin, err := h.Column(OriginColumn)
	if err != nil {
		t.Fatalf("origin column: %v", err)
	}
	for i := 0; i < h.Len(); i++ {
		if s, _ := origin.Text(i); s != "original" {
			t.Fatalf("row %d origin = %q", i, s)
		}
	}
	back := h.Drop(OriginColumn)
	if got, want := back.Names(), m.Names(); len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for _, name := range m.Names() {
		a, _ := m.Column(name)
		b, err := back.Column(name)
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if !a.Equal(b) {
			t.Fatalf("column %s changed by identity harmonization", name)
		}
	}
	for i := 0; i < m.Len(); i++ {
		if m.Key(i) != back.Key(i) {
			t.Fatalf("row key %d changed: %v vs %v", i, m.Key(i), back.Key(i))
		}
	}
}

func TestMissingAlignmentIsAConflict(t *testing.T) {
	_, err := Harmonize(Source{Origin: "synthetic", Data: synthetic(t, "es", 4)})
	var sc *SchemaConflictError
	if !errors.As(err, &sc) {
		t.Fatalf("err = %v, want SchemaConflictError", err)
	}
	if sc.Origin != "synthetic" || sc.Field != TreatmentColumn {
		t.Fatalf("unexpected conflict: %+v", sc)
	}
}

func TestUnionShiftsConstantsAndNullFill(t *testing.T) {
	rename := map[string]string{"Treatment": "treatment", "Age": "age", "Gender": "female"}
	h, err := Harmonize(
		Source{Origin: "original", Data: mapped(t), Treatment: Identity()},
		Source{Origin: "synthetic", Data: synthetic(t, "es", 2), Rename: rename, Treatment: ShiftBy(1), Constants: map[string]float64{"country": 1}},
		Source{Origin: "synthetic", Data: synthetic(t, "de", 2), Rename: rename, Treatment: ShiftBy(1), Constants: map[string]float64{"country": 2}},
	)
	if err != nil {
		t.Fatalf("Harmonize: %v", err)
	}
	if h.Len() != 8 {
		t.Fatalf("rows = %d, want 8", h.Len())
	}
	treat, _ := h.Column(TreatmentColumn)
	for i := 0; i < h.Len(); i++ {
		v, ok := treat.Float(i)
		if !ok || (v != 1 && v != 2) {
			t.Fatalf("row %d treatment = %v", i, v)
		}
	}
	if v, _ := treat.Float(4); v != 1 {
		t.Fatalf("shifted code 0 should be 1, got %v", v)
	}
	country, _ := h.Column("country")
	if v, _ := country.Float(7); v != 2 {
		t.Fatalf("germany segment country = %v", v)
	}
	if h.Has("Age") || h.Has("Treatment") {
		t.Fatalf("raw names leaked: %v", h.Names())
	}
	if h.Key(6) != (dataset.RowKey{Source: "de", Index: 0}) {
		t.Fatalf("key 6 = %v", h.Key(6))
	}

	synth, err := h.WhereText(OriginColumn, "synthetic")
	if err != nil {
		t.Fatalf("WhereText: %v", err)
	}
	if synth.Len() != 4 {
		t.Fatalf("synthetic rows = %d", synth.Len())
	}
}

func TestAbsentFieldIsNullNotZero(t *testing.T) {
	extra, _ := dataset.New("x", dataset.Keys("x", 2),
		dataset.NewNumeric("treatment", []float64{1, 2}, nil),
		dataset.NewNumeric("satdemo", []float64{3, 4}, nil),
	)
	h, err := Harmonize(
		Source{Origin: "original", Data: mapped(t), Treatment: Identity()},
		Source{Origin: "synthetic", Data: extra, Treatment: Identity()},
	)
	if err != nil {
		t.Fatalf("Harmonize: %v", err)
	}
	sat, _ := h.Column("satdemo")
	for i := 0; i < 4; i++ {
		if !sat.IsNull(i) {
			t.Fatalf("satdemo row %d should be null", i)
		}
	}
	age, _ := h.Column("age")
	if !age.IsNull(4) || !age.IsNull(5) {
		t.Fatalf("age should be null for rows without it")
	}
}

func TestConflicts(t *testing.T) {
	cases := map[string]Source{
		"duplicate rename": {Origin: "synthetic", Data: synthetic(t, "es", 2), Treatment: ShiftBy(1),
			Rename: map[string]string{"Treatment": "treatment", "Age": "age", "Gender": "age"}},
		"rename onto existing": {Origin: "synthetic", Data: synthetic(t, "es", 2), Treatment: ShiftBy(1),
			Rename: map[string]string{"Treatment": "treatment", "Age": "Gender"}},
		"unshifted codes": {Origin: "synthetic", Data: synthetic(t, "es", 2), Treatment: Identity(),
			Rename: map[string]string{"Treatment": "treatment"}},
		"constant collision": {Origin: "synthetic", Data: synthetic(t, "es", 2), Treatment: ShiftBy(1),
			Rename: map[string]string{"Treatment": "treatment"}, Constants: map[string]float64{"Age": 1}},
		"incomplete code map": {Origin: "synthetic", Data: synthetic(t, "es", 2),
			Rename:    map[string]string{"Treatment": "treatment"},
			Treatment: &Alignment{Codes: map[float64]float64{0: 1}}},
	}
	for name, src := range cases {
		_, err := Harmonize(src)
		var sc *SchemaConflictError
		if !errors.As(err, &sc) {
			t.Fatalf("%s: err = %v, want SchemaConflictError", name, err)
		}
	}
}

func TestKindConflictAcrossOrigins(t *testing.T) {
	a, _ := dataset.New("a", dataset.Keys("a", 1),
		dataset.NewNumeric("treatment", []float64{1}, nil),
		dataset.NewNumeric("female", []float64{2}, nil),
	)
	b, _ := dataset.New("b", dataset.Keys("b", 1),
		dataset.NewNumeric("treatment", []float64{2}, nil),
		dataset.NewText("female", []string{"Mujer"}, nil),
	)
	_, err := Harmonize(
		Source{Origin: "original", Data: a, Treatment: Identity()},
		Source{Origin: "synthetic", Data: b, Treatment: Identity()},
	)
	var sc *SchemaConflictError
	if !errors.As(err, &sc) || !errors.Is(err, dataset.ErrKindMismatch) {
		t.Fatalf("err = %v, want kind conflict", err)
	}
}

func TestCodeMapAlignment(t *testing.T) {
	h, err := Harmonize(Source{
		Origin:    "synthetic",
		Data:      synthetic(t, "es", 4),
		Rename:    map[string]string{"Treatment": "arm"},
		Treatment: &Alignment{Field: "arm", Codes: map[float64]float64{0: 2, 1: 1}},
	})
	if err != nil {
		t.Fatalf("Harmonize: %v", err)
	}
	if h.Has("arm") {
		t.Fatalf("aligned field should be stored as %s", TreatmentColumn)
	}
	treat, _ := h.Column(TreatmentColumn)
	if v, _ := treat.Float(0); v != 2 {
		t.Fatalf("code 0 -> %v, want 2", v)
	}
}
