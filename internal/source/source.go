// Package source loads raw survey files into datasets.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/surveyate/internal/dataset"
)

// Format is a supported input file format.
type Format string

const (
	Stata Format = "stata"
	CSV   Format = "csv"
)

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dta":
		return Stata, nil
	case ".csv":
		return CSV, nil
	}
	return "", fmt.Errorf("cannot infer format of %s (want .dta or .csv)", path)
}

// Read loads path as a raw dataset whose row keys carry label as source.
// An empty format is inferred from the extension.
func Read(ctx context.Context, path string, format Format, label string) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	if label == "" {
		label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var ds *dataset.Dataset
	switch format {
	case Stata:
		ds, err = ReadStata(f, label)
	case CSV:
		ds, err = ReadCSV(f, label)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ds, nil
}
