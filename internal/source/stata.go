package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"github.com/kshedden/datareader"
)

// ReadStata reads a .dta file. Value-labelled columns arrive as their text
// labels; numeric storage types are widened to float64. Date and other
// non-numeric, non-text columns are skipped.
func ReadStata(r io.ReadSeeker, label string) (*dataset.Dataset, error) {
	rdr, err := datareader.NewStataReader(r)
	if err != nil {
		return nil, fmt.Errorf("stata header: %w", err)
	}
	rdr.InsertCategoryLabels = true
	rdr.InsertStrls = true

	series, err := rdr.Read(-1)
	if err != nil {
		return nil, fmt.Errorf("stata data: %w", err)
	}
	n := rdr.RowCount()
	var cols []*dataset.Column
	for _, s := range series {
		if s == nil {
			continue
		}
		c, ok, err := stataColumn(s.UpcastNumeric())
		if err != nil {
			return nil, err
		}
		if ok {
			cols = append(cols, c)
		}
	}
	return dataset.New(label, dataset.Keys(label, n), cols...)
}

func stataColumn(s *datareader.Series) (*dataset.Column, bool, error) {
	miss := s.Missing()
	switch s.Data().(type) {
	case []float64:
		vals, _, err := s.AsFloat64Slice()
		if err != nil {
			return nil, false, err
		}
		return dataset.NewNumeric(s.Name, vals, copyMask(miss, len(vals))), true, nil
	case []string:
		vals, _, err := s.AsStringSlice()
		if err != nil {
			return nil, false, err
		}
		null := copyMask(miss, len(vals))
		for i, v := range vals {
			if strings.TrimSpace(v) == "" {
				null[i] = true
			}
		}
		return dataset.NewText(s.Name, vals, null), true, nil
	}
	return nil, false, nil
}

func copyMask(m []bool, n int) []bool {
	out := make([]bool, n)
	copy(out, m)
	return out
}
