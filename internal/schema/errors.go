package schema

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/surveyate/internal/dataset"
)

// UnmappedCategoryError reports a raw value with no entry in its field's code table.
type UnmappedCategoryError struct {
	Origin string
	Field  string
	Value  string
	// Row is the first offending row; Count is how many rows carried unmapped values.
	Row   dataset.RowKey
	Count int
}

func (e *UnmappedCategoryError) Error() string {
	return fmt.Sprintf("unmapped category %q in field %s (origin %s, row %s, %d rows affected)", e.Value, e.Field, e.Origin, e.Row, e.Count)
}

// MappingError collects every field that failed while mapping one dataset.
type MappingError struct {
	Origin string
	Errs   []error
}

func (e *MappingError) Error() string {
	parts := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("mapping %s failed for %d field(s): %s", e.Origin, len(e.Errs), strings.Join(parts, "; "))
}

func (e *MappingError) Unwrap() []error { return e.Errs }
