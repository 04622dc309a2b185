package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownColumn is returned when a named column does not exist.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrDuplicateColumn is returned when two columns would share a name.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrKindMismatch is returned when a column changes kind across a union.
	ErrKindMismatch = errors.New("column kind mismatch")
)

// RowKey identifies a subject independently of its position in any derived dataset.
type RowKey struct {
	Source string
	Index  int
}

func (k RowKey) String() string { return fmt.Sprintf("%s#%d", k.Source, k.Index) }

// Keys returns n row keys for rows 0..n-1 of source.
func Keys(source string, n int) []RowKey {
	keys := make([]RowKey, n)
	for i := range keys {
		keys[i] = RowKey{Source: source, Index: i}
	}
	return keys
}

// Dataset is an immutable table. Every transformation returns a new value.
type Dataset struct {
	name  string
	keys  []RowKey
	cols  []*Column
	index map[string]int
}

// New assembles a dataset. All columns must have len(keys) rows and unique names.
func New(name string, keys []RowKey, cols ...*Column) (*Dataset, error) {
	d := &Dataset{name: name, keys: make([]RowKey, len(keys)), index: make(map[string]int, len(cols))}
	copy(d.keys, keys)
	for _, c := range cols {
		if c.Len() != len(keys) {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name(), c.Len(), len(keys))
		}
		if _, dup := d.index[c.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name())
		}
		d.index[c.Name()] = len(d.cols)
		d.cols = append(d.cols, c)
	}
	return d, nil
}

func (d *Dataset) Name() string { return d.name }
func (d *Dataset) Len() int     { return len(d.keys) }

// Keys returns a copy of the row keys.
func (d *Dataset) Keys() []RowKey {
	out := make([]RowKey, len(d.keys))
	copy(out, d.keys)
	return out
}

// Key returns the key of row i.
func (d *Dataset) Key(i int) RowKey { return d.keys[i] }

// Names lists column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.cols))
	for i, c := range d.cols {
		out[i] = c.Name()
	}
	return out
}

// Has reports whether the dataset has the named column.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (*Column, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrUnknownColumn, name, d.name)
	}
	return d.cols[i], nil
}

// Columns returns the columns in order. Columns are immutable so sharing them is safe.
func (d *Dataset) Columns() []*Column {
	out := make([]*Column, len(d.cols))
	copy(out, d.cols)
	return out
}

// WithName returns the same data under another name.
func (d *Dataset) WithName(name string) *Dataset {
	nd, _ := New(name, d.keys, d.cols...)
	return nd
}

// WithColumn adds c, replacing any column of the same name in place.
func (d *Dataset) WithColumn(c *Column) (*Dataset, error) {
	if c.Len() != d.Len() {
		return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name(), c.Len(), d.Len())
	}
	cols := d.Columns()
	if i, ok := d.index[c.Name()]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	return New(d.name, d.keys, cols...)
}

// Select keeps only the named columns, in the given order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := d.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return New(d.name, d.keys, cols...)
}

// Drop removes the named columns; unknown names are ignored.
func (d *Dataset) Drop(names ...string) *Dataset {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	var cols []*Column
	for _, c := range d.cols {
		if !skip[c.Name()] {
			cols = append(cols, c)
		}
	}
	nd, _ := New(d.name, d.keys, cols...)
	return nd
}

// Rename applies old->new renames. A rename that lands on an existing
// column name (or two renames onto the same target) is ErrDuplicateColumn.
func (d *Dataset) Rename(renames map[string]string) (*Dataset, error) {
	cols := make([]*Column, len(d.cols))
	for i, c := range d.cols {
		if to, ok := renames[c.Name()]; ok && to != c.Name() {
			cols[i] = c.renamed(to)
			continue
		}
		cols[i] = c
	}
	return New(d.name, d.keys, cols...)
}

// Take returns the rows at the given positions, in order.
func (d *Dataset) Take(rows []int) *Dataset {
	keys := make([]RowKey, len(rows))
	for j, i := range rows {
		keys[j] = d.keys[i]
	}
	cols := make([]*Column, len(d.cols))
	for i, c := range d.cols {
		cols[i] = c.take(rows)
	}
	nd, _ := New(d.name, keys, cols...)
	return nd
}

// Row is a read-only view of one row used by Filter predicates.
type Row struct {
	d *Dataset
	i int
}

func (r Row) Key() RowKey { return r.d.keys[r.i] }

// Float returns the numeric value of the named column on this row.
func (r Row) Float(name string) (float64, bool) {
	c, err := r.d.Column(name)
	if err != nil {
		return 0, false
	}
	return c.Float(r.i)
}

// Text returns the text value of the named column on this row.
func (r Row) Text(name string) (string, bool) {
	c, err := r.d.Column(name)
	if err != nil {
		return "", false
	}
	return c.Text(r.i)
}

// Filter keeps rows for which keep returns true.
func (d *Dataset) Filter(keep func(Row) bool) *Dataset {
	var rows []int
	for i := range d.keys {
		if keep(Row{d: d, i: i}) {
			rows = append(rows, i)
		}
	}
	return d.Take(rows)
}

// WhereEquals keeps rows where the named numeric column equals v.
func (d *Dataset) WhereEquals(name string, v float64) (*Dataset, error) {
	c, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind() != Numeric {
		return nil, fmt.Errorf("%w: %q is %s, want numeric", ErrKindMismatch, name, c.Kind())
	}
	var rows []int
	for i := 0; i < c.Len(); i++ {
		if x, ok := c.Float(i); ok && x == v {
			rows = append(rows, i)
		}
	}
	return d.Take(rows), nil
}

// WhereText keeps rows where the named column's text value equals s.
func (d *Dataset) WhereText(name, s string) (*Dataset, error) {
	c, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	var rows []int
	for i := 0; i < c.Len(); i++ {
		if x, ok := c.Text(i); ok && x == s {
			rows = append(rows, i)
		}
	}
	return d.Take(rows), nil
}

// Complete returns the positions of rows where none of the named numeric
// columns is null (list-wise deletion restricted to those columns).
func (d *Dataset) Complete(names ...string) ([]int, error) {
	cols := make([]*Column, len(names))
	for i, n := range names {
		c, err := d.Column(n)
		if err != nil {
			return nil, err
		}
		if c.Kind() != Numeric {
			return nil, fmt.Errorf("%w: %q is %s, want numeric", ErrKindMismatch, n, c.Kind())
		}
		cols[i] = c
	}
	var rows []int
	for i := range d.keys {
		ok := true
		for _, c := range cols {
			if c.IsNull(i) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// Concat unions datasets row-wise by column name. The schema is the ordered
// union of columns in first-seen order; a column missing from a part is null
// for that part's rows. A column that is numeric in one part and text in
// another is ErrKindMismatch.
func Concat(name string, parts ...*Dataset) (*Dataset, error) {
	var order []string
	kinds := map[string]Kind{}
	total := 0
	for _, p := range parts {
		total += p.Len()
		for _, c := range p.cols {
			k, seen := kinds[c.Name()]
			if !seen {
				kinds[c.Name()] = c.Kind()
				order = append(order, c.Name())
				continue
			}
			if k != c.Kind() {
				return nil, fmt.Errorf("%w: %q is %s in one part and %s in %s", ErrKindMismatch, c.Name(), k, c.Kind(), p.Name())
			}
		}
	}
	keys := make([]RowKey, 0, total)
	for _, p := range parts {
		keys = append(keys, p.keys...)
	}
	cols := make([]*Column, len(order))
	for ci, cname := range order {
		out := &Column{name: cname, kind: kinds[cname], null: make([]bool, 0, total)}
		for _, p := range parts {
			src, err := p.Column(cname)
			if err != nil {
				src = NullColumn(cname, kinds[cname], p.Len())
			}
			out.null = append(out.null, src.null...)
			if out.kind == Numeric {
				out.num = append(out.num, src.num...)
			} else {
				out.text = append(out.text, src.text...)
			}
		}
		cols[ci] = out
	}
	return New(name, keys, cols...)
}
