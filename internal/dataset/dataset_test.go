package dataset

import (
	"errors"
	"math"
	"testing"
)

func sample(t *testing.T) *Dataset {
	t.Helper()
	nan := math.NaN()
	d, err := New("sample", Keys("s", 4),
		NewNumeric("treatment", []float64{1, 2, 1, 2}, nil),
		NewNumeric("age", []float64{30, nan, 50, 60}, nil),
		NewText("label", []string{"a", "b", "", "d"}, []bool{false, false, true, false}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestNewRejectsRaggedAndDuplicateColumns(t *testing.T) {
	if _, err := New("x", Keys("s", 2), NewNumeric("a", []float64{1}, nil)); err == nil {
		t.Fatalf("expected length error")
	}
	_, err := New("x", Keys("s", 1), NewNumeric("a", []float64{1}, nil), NewNumeric("a", []float64{2}, nil))
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Fatalf("err = %v, want ErrDuplicateColumn", err)
	}
}

func TestColumnCopiesInput(t *testing.T) {
	vals := []float64{1, 2}
	c := NewNumeric("a", vals, nil)
	vals[0] = 99
	if v, _ := c.Float(0); v != 1 {
		t.Fatalf("column aliased its input: %v", v)
	}
	out := c.Floats()
	out[1] = 42
	if v, _ := c.Float(1); v != 2 {
		t.Fatalf("Floats leaked backing storage: %v", v)
	}
}

func TestNaNIsNull(t *testing.T) {
	d := sample(t)
	age, _ := d.Column("age")
	if !age.IsNull(1) || age.NullCount() != 1 {
		t.Fatalf("NaN should be null: %v", age.Nulls())
	}
	if _, ok := age.Float(1); ok {
		t.Fatalf("Float on null row should report !ok")
	}
}

func TestFilterKeepsKeys(t *testing.T) {
	d := sample(t)
	arm2, err := d.WhereEquals("treatment", 2)
	if err != nil {
		t.Fatalf("WhereEquals: %v", err)
	}
	if arm2.Len() != 2 {
		t.Fatalf("rows = %d, want 2", arm2.Len())
	}
	if arm2.Key(0) != (RowKey{Source: "s", Index: 1}) || arm2.Key(1) != (RowKey{Source: "s", Index: 3}) {
		t.Fatalf("keys = %v", arm2.Keys())
	}
	if d.Len() != 4 {
		t.Fatalf("source dataset mutated: %d rows", d.Len())
	}
}

func TestCompleteIsRestrictedToNamedColumns(t *testing.T) {
	d := sample(t)
	rows, err := d.Complete("treatment", "age")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(rows) != 3 || rows[0] != 0 || rows[1] != 2 || rows[2] != 3 {
		t.Fatalf("rows = %v", rows)
	}
	rows, _ = d.Complete("treatment")
	if len(rows) != 4 {
		t.Fatalf("treatment-only rows = %v", rows)
	}
	if _, err := d.Complete("label"); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("text column should be rejected, got %v", err)
	}
}

func TestRenameConflict(t *testing.T) {
	d := sample(t)
	if _, err := d.Rename(map[string]string{"age": "treatment"}); !errors.Is(err, ErrDuplicateColumn) {
		t.Fatalf("err = %v, want ErrDuplicateColumn", err)
	}
	r, err := d.Rename(map[string]string{"age": "Age"})
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if !r.Has("Age") || r.Has("age") || !d.Has("age") {
		t.Fatalf("rename result names = %v, original = %v", r.Names(), d.Names())
	}
}

func TestConcatNullFillsMissingColumns(t *testing.T) {
	a := sample(t)
	b, err := New("b", Keys("t", 2), NewNumeric("treatment", []float64{1, 1}, nil), NewNumeric("extra", []float64{7, 8}, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	u, err := Concat("u", a, b)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if u.Len() != 6 {
		t.Fatalf("rows = %d", u.Len())
	}
	want := []string{"treatment", "age", "label", "extra"}
	got := u.Names()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}
	age, _ := u.Column("age")
	if !age.IsNull(4) || !age.IsNull(5) {
		t.Fatalf("age should be null for part b rows")
	}
	extra, _ := u.Column("extra")
	for i := 0; i < 4; i++ {
		if !extra.IsNull(i) {
			t.Fatalf("extra should be null (not zero) on row %d", i)
		}
	}
	if u.Key(4) != (RowKey{Source: "t", Index: 0}) {
		t.Fatalf("key 4 = %v", u.Key(4))
	}
}

func TestConcatKindMismatch(t *testing.T) {
	a := sample(t)
	b, _ := New("b", Keys("t", 1), NewText("age", []string{"old"}, nil))
	if _, err := Concat("u", a, b); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("err = %v, want ErrKindMismatch", err)
	}
}
