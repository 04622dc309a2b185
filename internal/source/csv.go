package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/surveyate/internal/dataset"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// NullTokens are the CSV cell values read as missing.
var NullTokens = []string{"", "NA", "NaN", "nan", "<nil>"}

// ReadCSV reads a headered CSV file. Integer and float columns become
// numeric; everything else is text. A column with no values at all is
// numeric and entirely null.
func ReadCSV(r io.Reader, label string) (*dataset.Dataset, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(NullTokens),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("csv: %w", df.Err)
	}
	n := df.Nrow()
	cols := make([]*dataset.Column, 0, df.Ncol())
	for _, name := range df.Names() {
		s := df.Col(name)
		null := s.IsNaN()
		switch s.Type() {
		case series.Int, series.Float:
			cols = append(cols, dataset.NewNumeric(strings.TrimSpace(name), s.Float(), null))
		default:
			if allTrue(null) {
				cols = append(cols, dataset.NullColumn(strings.TrimSpace(name), dataset.Numeric, n))
				continue
			}
			cols = append(cols, dataset.NewText(strings.TrimSpace(name), s.Records(), null))
		}
	}
	return dataset.New(label, dataset.Keys(label, n), cols...)
}

// WriteCSV writes ds with a header row. Nulls are written as NaN.
func WriteCSV(w io.Writer, ds *dataset.Dataset) error {
	cols := make([]series.Series, 0, len(ds.Names()))
	for _, c := range ds.Columns() {
		recs := make([]string, c.Len())
		for i := range recs {
			if s, ok := c.Text(i); ok {
				recs[i] = s
			} else {
				recs[i] = "NaN"
			}
		}
		cols = append(cols, series.New(recs, series.String, c.Name()))
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return fmt.Errorf("csv: %w", df.Err)
	}
	return df.WriteCSV(w)
}

func allTrue(b []bool) bool {
	for _, v := range b {
		if !v {
			return false
		}
	}
	return true
}
