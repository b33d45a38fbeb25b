package rows

import "fmt"

// SchemaError is returned when a caller-constructed batch violates one of the
// batch invariants. It is never retried and no network attempt is made.
type SchemaError struct {
	Table  string
	Column string // empty if the error is not about a single column
	Msg    string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema error (table %q, column %q): %s", e.Table, e.Column, e.Msg)
	}
	return fmt.Sprintf("schema error (table %q): %s", e.Table, e.Msg)
}

func schemaErrorf(table, column, format string, args ...any) *SchemaError {
	return &SchemaError{Table: table, Column: column, Msg: fmt.Sprintf(format, args...)}
}
