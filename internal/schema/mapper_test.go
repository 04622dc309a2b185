package schema

import (
	"errors"
	"math"
	"testing"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"golang.org/x/text/unicode/norm"
)

func originalSpec() Spec {
	return Spec{
		Origin: "original",
		Fields: []FieldSpec{
			{Source: "eubeneficial", Target: "eubenefic", Kind: KindLabels, Table: Likert()},
			{Source: "euworthforcountry", Target: "euworth", Kind: KindLabels, Table: Likert()},
			{Source: "female", Kind: KindLabels, Table: Gender()},
			{Source: "employmentstatus", Kind: KindLabels, Table: Unemployed()},
			{Source: "education", Kind: KindRange, Min: 1, Max: 3},
		},
		Composites: []Composite{EconomicMechanisms},
		Dummies:    EducationDummies("education"),
	}
}

func rawOriginal(t *testing.T, benefic []string, bnull []bool) *dataset.Dataset {
	t.Helper()
	n := len(benefic)
	worth := make([]string, n)
	female := make([]string, n)
	emp := make([]string, n)
	edu := make([]float64, n)
	for i := range worth {
		worth[i] = "Muy de acuerdo"
		female[i] = "Mujer"
		emp[i] = "Employed"
		edu[i] = float64(i%3 + 1)
	}
	emp[0] = "Unemployed"
	female[n-1] = "Hombre"
	d, err := dataset.New("original", dataset.Keys("original", n),
		dataset.NewText("eubeneficial", benefic, bnull),
		dataset.NewText("euworthforcountry", worth, nil),
		dataset.NewText("female", female, nil),
		dataset.NewText("employmentstatus", emp, nil),
		dataset.NewNumeric("education", edu, nil),
		dataset.NewNumeric("opinioneu", make([]float64, n), nil),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func mustMap(t *testing.T, spec Spec, raw *dataset.Dataset) *dataset.Dataset {
	t.Helper()
	m, err := NewMapper(spec)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	out, err := m.Map(raw)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	return out
}

func col(t *testing.T, d *dataset.Dataset, name string) *dataset.Column {
	t.Helper()
	c, err := d.Column(name)
	if err != nil {
		t.Fatalf("column %s: %v", name, err)
	}
	return c
}

func TestMapLabelsCompositesAndIndicators(t *testing.T) {
	raw := rawOriginal(t, []string{"Muy en desacuerdo", "Más bien de acuerdo", "", "Ni de acuerdo ni en desacuerdo"}, []bool{false, false, true, false})
	out := mustMap(t, originalSpec(), raw)

	benefic := col(t, out, "eubenefic")
	want := []float64{1, 4, math.NaN(), 3}
	for i, w := range want {
		v, ok := benefic.Float(i)
		if math.IsNaN(w) {
			if ok {
				t.Fatalf("row %d should be null", i)
			}
			continue
		}
		if !ok || v != w {
			t.Fatalf("eubenefic[%d] = %v, want %v", i, v, w)
		}
	}
	if out.Has("eubeneficial") {
		t.Fatalf("source column should be replaced by its target")
	}

	econ := col(t, out, "economic_mechanisms")
	for i := 0; i < out.Len(); i++ {
		b, okb := benefic.Float(i)
		w, _ := col(t, out, "euworth").Float(i)
		e, oke := econ.Float(i)
		if okb != oke {
			t.Fatalf("row %d: composite null=%v but sub-item null=%v", i, !oke, !okb)
		}
		if oke && e != b+w {
			t.Fatalf("row %d: composite %v != %v + %v", i, e, b, w)
		}
		if oke && (e < 2 || e > 10) {
			t.Fatalf("row %d: composite %v outside [2,10]", i, e)
		}
	}

	emp := col(t, out, "employmentstatus")
	if v, _ := emp.Float(0); v != 1 {
		t.Fatalf("Unemployed should map to 1, got %v", v)
	}
	if v, _ := emp.Float(1); v != 0 {
		t.Fatalf("Employed should map to 0, got %v", v)
	}
	female := col(t, out, "female")
	if v, _ := female.Float(0); v != 2 {
		t.Fatalf("Mujer should map to 2, got %v", v)
	}
	if v, _ := female.Float(out.Len() - 1); v != 1 {
		t.Fatalf("Hombre should map to 1, got %v", v)
	}
	if !out.Has("opinioneu") {
		t.Fatalf("unlisted columns should pass through")
	}
}

func TestMapAcceptsDecomposedUnicode(t *testing.T) {
	nfd := norm.NFD.String("Más bien en desacuerdo")
	raw := rawOriginal(t, []string{nfd, "Muy de acuerdo"}, nil)
	out := mustMap(t, originalSpec(), raw)
	if v, _ := col(t, out, "eubenefic").Float(0); v != 2 {
		t.Fatalf("NFD label mapped to %v, want 2", v)
	}
}

func TestUnmappedCategoryIsAnError(t *testing.T) {
	raw := rawOriginal(t, []string{"Muy de acuerdo", "Totalmente de acuerdo", "Totalmente de acuerdo"}, nil)
	m, err := NewMapper(originalSpec())
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	out, err := m.Map(raw)
	if out != nil {
		t.Fatalf("expected no dataset on failure")
	}
	var u *UnmappedCategoryError
	if !errors.As(err, &u) {
		t.Fatalf("err = %v, want UnmappedCategoryError", err)
	}
	if u.Field != "eubeneficial" || u.Value != "Totalmente de acuerdo" || u.Count != 2 {
		t.Fatalf("unexpected error details: %+v", u)
	}
	if u.Row != (dataset.RowKey{Source: "original", Index: 1}) {
		t.Fatalf("row = %v", u.Row)
	}
}

func TestSubstringLabelsDoNotMatch(t *testing.T) {
	raw := rawOriginal(t, []string{"Muy de acuerdo", "Muy de acuerdo"}, nil)
	c := dataset.NewText("employmentstatus", []string{"Unemployed", "Long-term unemployed"}, nil)
	raw, _ = raw.WithColumn(c)
	m, _ := NewMapper(originalSpec())
	_, err := m.Map(raw)
	var u *UnmappedCategoryError
	if !errors.As(err, &u) || u.Value != "Long-term unemployed" {
		t.Fatalf("err = %v, want unmapped employment label", err)
	}
}

func TestMappingErrorCollectsEveryField(t *testing.T) {
	raw := rawOriginal(t, []string{"bogus", "Muy de acuerdo"}, nil)
	raw, _ = raw.WithColumn(dataset.NewText("female", []string{"Mujer", "X"}, nil))
	m, _ := NewMapper(originalSpec())
	_, err := m.Map(raw)
	var me *MappingError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want MappingError", err)
	}
	if len(me.Errs) != 2 {
		t.Fatalf("errs = %v, want 2 fields", me.Errs)
	}
}

func TestEducationDummies(t *testing.T) {
	raw := rawOriginal(t, []string{"Muy de acuerdo", "Muy de acuerdo", "Muy de acuerdo", "Muy de acuerdo"}, nil)
	raw, _ = raw.WithColumn(dataset.NewNumeric("education", []float64{1, 2, 3, math.NaN()}, nil))
	out := mustMap(t, originalSpec(), raw)
	sec := col(t, out, "secondary_education")
	ter := col(t, out, "tertiary_education")
	edu := col(t, out, "education")
	for i := 0; i < 3; i++ {
		s, _ := sec.Float(i)
		te, _ := ter.Float(i)
		e, _ := edu.Float(i)
		if s+te > 1 {
			t.Fatalf("row %d: both dummies set", i)
		}
		if (s == 0 && te == 0) != (e == 1) {
			t.Fatalf("row %d: reference level mismatch (edu=%v sec=%v ter=%v)", i, e, s, te)
		}
	}
	if !sec.IsNull(3) || !ter.IsNull(3) {
		t.Fatalf("null education should give null dummies")
	}
	if out.Has("primary_education") {
		t.Fatalf("reference level must not get a dummy")
	}
}

func TestRangeAndCodeTables(t *testing.T) {
	spec := Spec{
		Origin: "synthetic",
		Fields: []FieldSpec{
			{Source: "Gender", Kind: KindCodes, Table: IdentityCodes("gender", 1, 2)},
			{Source: "opinioneu", Kind: KindRange, Min: 1, Max: 6},
		},
	}
	raw, _ := dataset.New("s", dataset.Keys("s", 2),
		dataset.NewNumeric("Gender", []float64{1, 2}, nil),
		dataset.NewNumeric("opinioneu", []float64{6, 7}, nil),
	)
	m, _ := NewMapper(spec)
	_, err := m.Map(raw)
	var u *UnmappedCategoryError
	if !errors.As(err, &u) || u.Field != "opinioneu" || u.Value != "7" {
		t.Fatalf("err = %v, want out-of-range opinioneu", err)
	}

	raw, _ = raw.WithColumn(dataset.NewNumeric("Gender", []float64{1, 3}, nil))
	raw, _ = raw.WithColumn(dataset.NewNumeric("opinioneu", []float64{1, 2}, nil))
	_, err = m.Map(raw)
	if !errors.As(err, &u) || u.Field != "Gender" || u.Value != "3" {
		t.Fatalf("err = %v, want unmapped Gender code", err)
	}
}

func TestNewMapperRejectsBadSpecs(t *testing.T) {
	cases := map[string]Spec{
		"duplicate target": {Fields: []FieldSpec{
			{Source: "a", Target: "x", Kind: KindNumeric},
			{Source: "b", Target: "x", Kind: KindNumeric},
		}},
		"empty table":    {Fields: []FieldSpec{{Source: "a", Kind: KindLabels}}},
		"wrong table":    {Fields: []FieldSpec{{Source: "a", Kind: KindCodes, Table: Likert()}}},
		"inverted range": {Fields: []FieldSpec{{Source: "a", Kind: KindRange, Min: 5, Max: 1}}},
		"unknown kind":   {Fields: []FieldSpec{{Source: "a", Kind: "fuzzy"}}},
	}
	for name, spec := range cases {
		if _, err := NewMapper(spec); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
