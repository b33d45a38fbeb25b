package rows

// Builder collects rows one at a time and turns them into a RowBatch.
type Builder struct {
	table   string
	schemas []ColumnSchema
	columns [][]any
}

// NewBuilder creates a builder for the given table and column schemas.
func NewBuilder(table string, schemas ...ColumnSchema) *Builder {
	b := &Builder{
		table:   table,
		schemas: append([]ColumnSchema(nil), schemas...),
		columns: make([][]any, len(schemas)),
	}
	return b
}

// AddRow appends one row. values are given in schema order, nil marks a null.
// The row is rejected as a whole if a value does not fit its column.
func (b *Builder) AddRow(values ...any) error {
	if len(values) != len(b.schemas) {
		return schemaErrorf(b.table, "", "row has %d values, expected %d", len(values), len(b.schemas))
	}
	for i, v := range values {
		if v != nil && !b.schemas[i].DataType.Accepts(v) {
			return schemaErrorf(b.table, b.schemas[i].Name, "value of type %T does not match %s", v, b.schemas[i].DataType)
		}
	}
	for i, v := range values {
		b.columns[i] = append(b.columns[i], v)
	}
	return nil
}

// Len returns the number of rows added so far.
func (b *Builder) Len() int {
	if len(b.columns) == 0 {
		return 0
	}
	return len(b.columns[0])
}

// Build validates the collected rows and returns the batch.
// The builder can be reused afterward, it starts empty again.
func (b *Builder) Build() (*RowBatch, error) {
	columns := b.columns
	for i := range columns {
		if columns[i] == nil {
			columns[i] = []any{}
		}
	}
	batch, err := NewRowBatch(b.table, b.schemas, columns)
	b.columns = make([][]any, len(b.schemas))
	return batch, err
}
