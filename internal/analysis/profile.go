package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"gonum.org/v1/gonum/stat"
)

// Options controls how a dataset is profiled.
type Options struct {
	// GroupBy computes per-group summaries for the given column names.
	GroupBy []string
	// TopValues caps the category counts listed per text column.
	TopValues int
	// SampleRows determines how many leading rows to include in the report.
	SampleRows int
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// Outliers counts values whose robust z-score (MAD) exceeds OutlierThreshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for profiling.
func DefaultOptions() Options {
	return Options{
		TopValues:        5,
		SampleRows:       5,
		OutlierThreshold: 3.5,
	}
}

// Report is a markdown-friendly profile of a dataset.
type Report struct {
	Name     string
	Rows     int
	Cols     []ColumnSummary
	Samples  [][]string
	Warnings []string
	Groups   []GroupResult
	Corr     *CorrMatrix
}

// ColumnSummary captures kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|categorical
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical top values
	TopValues []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary // by column name
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// Profile summarises every column of ds.
func Profile(ds *dataset.Dataset, opt Options) (*Report, error) {
	if opt.TopValues <= 0 {
		opt.TopValues = 5
	}
	if opt.Outliers && opt.OutlierThreshold <= 0 {
		opt.OutlierThreshold = 3.5
	}
	rep := &Report{Name: ds.Name(), Rows: ds.Len()}
	for _, c := range ds.Columns() {
		cs := summarize(c, opt)
		if cs.NonNull == 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("column %s has no values", c.Name()))
		}
		rep.Cols = append(rep.Cols, cs)
	}

	if len(opt.GroupBy) > 0 {
		groups, err := groupBy(ds, opt.GroupBy)
		if err != nil {
			return nil, err
		}
		rep.Groups = groups
	}
	if opt.Correlations {
		rep.Corr = correlations(ds)
	}
	for i := 0; i < ds.Len() && i < opt.SampleRows; i++ {
		row := make([]string, 0, len(rep.Cols))
		for _, c := range ds.Columns() {
			row = append(row, cell(c, i))
		}
		rep.Samples = append(rep.Samples, row)
	}
	return rep, nil
}

func summarize(c *dataset.Column, opt Options) ColumnSummary {
	cs := ColumnSummary{Name: c.Name(), Missing: c.NullCount()}
	cs.NonNull = c.Len() - cs.Missing
	if c.Kind() == dataset.Text {
		cs.Kind = "categorical"
		counts := map[string]int{}
		for i := 0; i < c.Len(); i++ {
			if s, ok := c.Text(i); ok {
				counts[s]++
			}
		}
		cs.Unique = len(counts)
		for v, n := range counts {
			cs.TopValues = append(cs.TopValues, CategoryCount{Value: v, Count: n})
		}
		sort.Slice(cs.TopValues, func(i, j int) bool {
			if cs.TopValues[i].Count == cs.TopValues[j].Count {
				return cs.TopValues[i].Value < cs.TopValues[j].Value
			}
			return cs.TopValues[i].Count > cs.TopValues[j].Count
		})
		if len(cs.TopValues) > opt.TopValues {
			cs.TopValues = cs.TopValues[:opt.TopValues]
		}
		return cs
	}

	cs.Kind = "numeric"
	vals := present(c)
	if len(vals) == 0 {
		return cs
	}
	uniq := map[float64]struct{}{}
	cs.Min, cs.Max = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		uniq[v] = struct{}{}
		cs.Min = math.Min(cs.Min, v)
		cs.Max = math.Max(cs.Max, v)
	}
	cs.Unique = len(uniq)
	if len(vals) > 1 {
		cs.Mean, cs.Std = stat.MeanStdDev(vals, nil)
	} else {
		cs.Mean = vals[0]
	}
	if opt.Outliers {
		cs.OutlierThreshold = opt.OutlierThreshold
		median, mad := medianMAD(vals)
		if mad > 0 {
			for _, v := range vals {
				z := math.Abs(0.6745 * (v - median) / mad)
				if z > opt.OutlierThreshold {
					cs.OutliersCount++
				}
				cs.OutliersMaxAbsZ = math.Max(cs.OutliersMaxAbsZ, z)
			}
		}
	}
	return cs
}

func present(c *dataset.Column) []float64 {
	out := make([]float64, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if v, ok := c.Float(i); ok {
			out = append(out, v)
		}
	}
	return out
}

func groupBy(ds *dataset.Dataset, by []string) ([]GroupResult, error) {
	keyCols := make([]*dataset.Column, len(by))
	for i, name := range by {
		c, err := ds.Column(name)
		if err != nil {
			return nil, fmt.Errorf("group by: %w", err)
		}
		keyCols[i] = c
	}
	grouped := map[string]bool{}
	for _, name := range by {
		grouped[name] = true
	}
	type acc struct {
		size    int
		metrics map[string]*NumSummary
	}
	groups := map[string]*acc{}
	for i := 0; i < ds.Len(); i++ {
		parts := make([]string, len(keyCols))
		for j, c := range keyCols {
			parts[j] = cell(c, i)
			if parts[j] == "" {
				parts[j] = "(null)"
			}
		}
		key := strings.Join(parts, " | ")
		g := groups[key]
		if g == nil {
			g = &acc{metrics: map[string]*NumSummary{}}
			groups[key] = g
		}
		g.size++
		for _, c := range ds.Columns() {
			if c.Kind() != dataset.Numeric || grouped[c.Name()] {
				continue
			}
			v, ok := c.Float(i)
			if !ok {
				continue
			}
			m := g.metrics[c.Name()]
			if m == nil {
				m = &NumSummary{Min: v, Max: v}
				g.metrics[c.Name()] = m
			}
			m.Count++
			m.Mean += (v - m.Mean) / float64(m.Count)
			m.Min = math.Min(m.Min, v)
			m.Max = math.Max(m.Max, v)
		}
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]GroupResult, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		gr := GroupResult{Key: k, Size: g.size, Metrics: make(map[string]NumSummary, len(g.metrics))}
		for name, m := range g.metrics {
			gr.Metrics[name] = *m
		}
		out = append(out, gr)
	}
	return out, nil
}

// correlations uses pairwise-complete rows; pairs with fewer than three
// rows or a constant side are NaN.
func correlations(ds *dataset.Dataset) *CorrMatrix {
	var cols []*dataset.Column
	for _, c := range ds.Columns() {
		if c.Kind() == dataset.Numeric && c.Len()-c.NullCount() >= 2 {
			cols = append(cols, c)
		}
	}
	if len(cols) < 2 {
		return nil
	}
	cm := &CorrMatrix{Values: make([][]float64, len(cols))}
	for i, c := range cols {
		cm.Columns = append(cm.Columns, c.Name())
		cm.Values[i] = make([]float64, len(cols))
		cm.Values[i][i] = 1
	}
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			var x, y []float64
			for k := 0; k < ds.Len(); k++ {
				a, oka := cols[i].Float(k)
				b, okb := cols[j].Float(k)
				if oka && okb {
					x = append(x, a)
					y = append(y, b)
				}
			}
			r := math.NaN()
			if len(x) >= 3 {
				r = stat.Correlation(x, y, nil)
			}
			cm.Values[i][j], cm.Values[j][i] = r, r
		}
	}
	return cm
}

func cell(c *dataset.Column, i int) string {
	if c.Kind() == dataset.Text {
		s, _ := c.Text(i)
		return s
	}
	v, ok := c.Float(i)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Markdown renders a compact report suitable for the terminal or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("Dataset: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			if c.NonNull == 0 {
				break
			}
			b.WriteString(fmt.Sprintf("; min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
			if c.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
			}
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString("; top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, g.Size))
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				m := g.Metrics[k]
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g (min %.4g, max %.4g, n=%d)\n", k, m.Mean, m.Min, m.Max, m.Count))
			}
		}
	}
	if r.Corr != nil {
		type pr struct {
			A, B string
			R    float64
		}
		var pairs []pr
		n := len(r.Corr.Columns)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if v := r.Corr.Values[i][j]; !math.IsNaN(v) {
					pairs = append(pairs, pr{A: r.Corr.Columns[i], B: r.Corr.Columns[j], R: v})
				}
			}
		}
		sort.Slice(pairs, func(i, j int) bool {
			ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
			if ai == aj {
				return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
			}
			return ai > aj
		})
		if len(pairs) > 10 {
			pairs = pairs[:10]
		}
		if len(pairs) > 0 {
			b.WriteString("\n[CORRELATIONS]\n")
			for _, p := range pairs {
				b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
			}
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD ROWS]\n| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n|")
		for range r.Cols {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i, val := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				if len(val) > 40 {
					val = val[:37] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	median = stat.Quantile(0.5, stat.LinInterp, cp, nil)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = stat.Quantile(0.5, stat.LinInterp, dev, nil)
	return
}
