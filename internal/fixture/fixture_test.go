package fixture

import (
	"testing"
)

func TestSegmentIsDeterministic(t *testing.T) {
	a := Segment(42, Spain, 50)
	b := Segment(42, Spain, 50)
	c := Segment(43, Spain, 50)
	same := true
	for _, name := range a.Names() {
		ca, _ := a.Column(name)
		cb, _ := b.Column(name)
		cc, _ := c.Column(name)
		if !ca.Equal(cb) {
			t.Fatalf("column %s differs for the same seed", name)
		}
		if !ca.Equal(cc) {
			same = false
		}
	}
	if same {
		t.Fatalf("different seeds produced identical data")
	}
}

func TestSegmentRanges(t *testing.T) {
	ds := Segment(7, Germany, 200)
	ranges := map[string][2]float64{
		"Nationality":       {2, 2},
		"Gender":            {1, 2},
		"Education":         {1, 3},
		"Employment":        {0, 1},
		"Treatment":         {0, 1},
		"satdemo":           {0, 6},
		"european_citizen":  {1, 6},
		"crisis_country":    {0, 10},
		"economicsituation": {1, 5},
		"eunotall":          {1, 6},
	}
	for name, rg := range ranges {
		c, err := ds.Column(name)
		if err != nil {
			t.Fatalf("missing %s", name)
		}
		for i := 0; i < ds.Len(); i++ {
			v, _ := c.Float(i)
			if v < rg[0] || v > rg[1] {
				t.Fatalf("%s[%d] = %v outside %v", name, i, v, rg)
			}
		}
	}
}

func TestOriginalHasLabelsAndMissing(t *testing.T) {
	ds := Original(1, 400, 0.1)
	fem, _ := ds.Column("female")
	for i := 0; i < ds.Len(); i++ {
		if s, _ := fem.Text(i); s != "Hombre" && s != "Mujer" {
			t.Fatalf("female[%d] = %q", i, s)
		}
	}
	op, _ := ds.Column("opinioneu")
	if op.NullCount() == 0 || op.NullCount() > 120 {
		t.Fatalf("opinioneu nulls = %d", op.NullCount())
	}
	treat, _ := ds.Column("treatment")
	for i := 0; i < ds.Len(); i++ {
		if v, _ := treat.Float(i); v != 1 && v != 2 {
			t.Fatalf("treatment[%d] = %v", i, v)
		}
	}
}
