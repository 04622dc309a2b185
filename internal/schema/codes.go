package schema

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CodeTable is an explicit enumeration of the raw values a categorical field
// may take and the canonical code each maps to. Anything not listed is unmapped.
type CodeTable struct {
	Name   string
	labels map[string]int
	codes  map[float64]int
}

// NewLabelTable builds a table keyed by text labels. Labels are compared
// after NFC normalization and whitespace trimming.
func NewLabelTable(name string, labels map[string]int) CodeTable {
	t := CodeTable{Name: name, labels: make(map[string]int, len(labels))}
	for k, v := range labels {
		t.labels[normalizeLabel(k)] = v
	}
	return t
}

// NewCodeTable builds a table keyed by numeric raw codes.
func NewCodeTable(name string, codes map[float64]int) CodeTable {
	t := CodeTable{Name: name, codes: make(map[float64]int, len(codes))}
	for k, v := range codes {
		t.codes[k] = v
	}
	return t
}

// IdentityCodes builds a numeric table mapping each listed code to itself.
func IdentityCodes(name string, codes ...int) CodeTable {
	m := make(map[float64]int, len(codes))
	for _, c := range codes {
		m[float64(c)] = c
	}
	return NewCodeTable(name, m)
}

// Label looks up a text label.
func (t CodeTable) Label(s string) (int, bool) {
	v, ok := t.labels[normalizeLabel(s)]
	return v, ok
}

// Code looks up a numeric raw code.
func (t CodeTable) Code(x float64) (int, bool) {
	v, ok := t.codes[x]
	return v, ok
}

// IsLabels reports whether the table is keyed by text.
func (t CodeTable) IsLabels() bool { return t.labels != nil }

// Len returns the number of entries.
func (t CodeTable) Len() int { return len(t.labels) + len(t.codes) }

// Keys lists the raw keys in a stable order, for messages and docs.
func (t CodeTable) Keys() []string {
	var out []string
	for k := range t.labels {
		out = append(out, k)
	}
	for k := range t.codes {
		out = append(out, strconv.FormatFloat(k, 'f', -1, 64))
	}
	sort.Strings(out)
	return out
}

// Bounds returns the smallest and largest canonical code.
func (t CodeTable) Bounds() (lo, hi int) {
	first := true
	visit := func(v int) {
		if first || v < lo {
			lo = v
		}
		if first || v > hi {
			hi = v
		}
		first = false
	}
	for _, v := range t.labels {
		visit(v)
	}
	for _, v := range t.codes {
		visit(v)
	}
	return lo, hi
}

func normalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Likert is the five-point agreement scale used by the fielded questionnaire.
func Likert() CodeTable {
	return NewLabelTable("likert", map[string]int{
		"Muy en desacuerdo":              1,
		"Más bien en desacuerdo":         2,
		"Ni de acuerdo ni en desacuerdo": 3,
		"Más bien de acuerdo":            4,
		"Muy de acuerdo":                 5,
	})
}

// Gender maps the fielded questionnaire's labels to 1 male, 2 female.
func Gender() CodeTable {
	return NewLabelTable("gender", map[string]int{
		"Hombre": 1,
		"Mujer":  2,
	})
}

// Unemployed maps employment labels to the unemployed indicator. Only the
// exact label "Unemployed" is 1.
func Unemployed() CodeTable {
	return NewLabelTable("unemployed", map[string]int{
		"Unemployed":    1,
		"Employed":      0,
		"Self-employed": 0,
		"Student":       0,
		"Retired":       0,
		"Housework":     0,
		"Other":         0,
	})
}
