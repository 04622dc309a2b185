package dataset

import (
	"math"
	"strconv"
)

// Kind identifies how a column stores its values.
type Kind int

const (
	Numeric Kind = iota
	Text
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Text:
		return "text"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Column is an immutable, named sequence of values with a null mask.
// Constructors copy their inputs; no method hands out the backing slices.
type Column struct {
	name string
	kind Kind
	num  []float64
	text []string
	null []bool
}

// NewNumeric builds a numeric column. NaN values are treated as null in
// addition to positions flagged in null (which may be nil).
func NewNumeric(name string, vals []float64, null []bool) *Column {
	c := &Column{name: name, kind: Numeric, num: make([]float64, len(vals)), null: make([]bool, len(vals))}
	copy(c.num, vals)
	for i, v := range vals {
		if math.IsNaN(v) || (i < len(null) && null[i]) {
			c.null[i] = true
			c.num[i] = math.NaN()
		}
	}
	return c
}

// NewText builds a text column. Empty strings are not null unless flagged.
func NewText(name string, vals []string, null []bool) *Column {
	c := &Column{name: name, kind: Text, text: make([]string, len(vals)), null: make([]bool, len(vals))}
	copy(c.text, vals)
	for i := range vals {
		if i < len(null) && null[i] {
			c.null[i] = true
			c.text[i] = ""
		}
	}
	return c
}

// NullColumn returns an all-null column of the given kind and length.
func NullColumn(name string, kind Kind, n int) *Column {
	null := make([]bool, n)
	for i := range null {
		null[i] = true
	}
	if kind == Text {
		return NewText(name, make([]string, n), null)
	}
	return NewNumeric(name, make([]float64, n), null)
}

// ConstNumeric returns a column holding v on every row.
func ConstNumeric(name string, v float64, n int) *Column {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	return NewNumeric(name, vals, nil)
}

// ConstText returns a column holding s on every row.
func ConstText(name, s string, n int) *Column {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = s
	}
	return NewText(name, vals, nil)
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }
func (c *Column) Len() int     { return len(c.null) }

// IsNull reports whether row i is missing.
func (c *Column) IsNull(i int) bool { return c.null[i] }

// Float returns the numeric value at row i. ok is false for null rows and
// for text columns.
func (c *Column) Float(i int) (v float64, ok bool) {
	if c.kind != Numeric || c.null[i] {
		return math.NaN(), false
	}
	return c.num[i], true
}

// Text returns the text value at row i. Numeric columns are formatted.
func (c *Column) Text(i int) (s string, ok bool) {
	if c.null[i] {
		return "", false
	}
	if c.kind == Numeric {
		return strconv.FormatFloat(c.num[i], 'f', -1, 64), true
	}
	return c.text[i], true
}

// Floats returns a copy of the values with NaN at null positions.
func (c *Column) Floats() []float64 {
	out := make([]float64, c.Len())
	for i := range out {
		v, _ := c.Float(i)
		out[i] = v
	}
	return out
}

// Strings returns a copy of the values as text, "" at null positions.
func (c *Column) Strings() []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i], _ = c.Text(i)
	}
	return out
}

// Nulls returns a copy of the null mask.
func (c *Column) Nulls() []bool {
	out := make([]bool, len(c.null))
	copy(out, c.null)
	return out
}

// NullCount counts missing rows.
func (c *Column) NullCount() int {
	n := 0
	for _, b := range c.null {
		if b {
			n++
		}
	}
	return n
}

// Equal reports whether two columns hold the same name, kind, nulls and values.
func (c *Column) Equal(o *Column) bool {
	if c.name != o.name || c.kind != o.kind || c.Len() != o.Len() {
		return false
	}
	for i := range c.null {
		if c.null[i] != o.null[i] {
			return false
		}
		if c.null[i] {
			continue
		}
		if c.kind == Numeric && c.num[i] != o.num[i] {
			return false
		}
		if c.kind == Text && c.text[i] != o.text[i] {
			return false
		}
	}
	return true
}

// renamed shares storage; safe because columns are never mutated.
func (c *Column) renamed(name string) *Column {
	cp := *c
	cp.name = name
	return &cp
}

func (c *Column) take(rows []int) *Column {
	out := &Column{name: c.name, kind: c.kind, null: make([]bool, len(rows))}
	if c.kind == Numeric {
		out.num = make([]float64, len(rows))
	} else {
		out.text = make([]string, len(rows))
	}
	for j, i := range rows {
		out.null[j] = c.null[i]
		if c.kind == Numeric {
			out.num[j] = c.num[i]
		} else {
			out.text[j] = c.text[i]
		}
	}
	return out
}
