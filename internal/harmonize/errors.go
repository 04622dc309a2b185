package harmonize

import "fmt"

// SchemaConflictError reports an ambiguous or inconsistent canonical schema:
// two fields landing on one canonical name, a field whose kind differs across
// origins, or a treatment field with no declared or no valid alignment.
type SchemaConflictError struct {
	Origin string
	Field  string
	Reason string
	Err    error
}

func (e *SchemaConflictError) Error() string {
	msg := fmt.Sprintf("schema conflict in origin %s, field %s: %s", e.Origin, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaConflictError) Unwrap() error { return e.Err }
