package rows

// --------------------------------------------------------------------------
// Null Mask
// --------------------------------------------------------------------------

// NullMask is a bitset with one bit per row. Bit i lives in byte i/8 at
// position i%8 (least significant bit first); a set bit marks row i as null.
type NullMask []byte

// NewNullMask creates an all-valid mask for n rows.
func NewNullMask(n int) NullMask {
	return make(NullMask, (n+7)/8)
}

// Set marks row i as null.
func (m NullMask) Set(i int) {
	m[i/8] |= 1 << (uint(i) & 7)
}

// IsNull reports whether row i is null. Rows beyond the mask are not null.
func (m NullMask) IsNull(i int) bool {
	if i/8 >= len(m) {
		return false
	}
	return (m[i/8]>>(uint(i)&7))&1 == 1
}

// Count returns the number of null rows.
func (m NullMask) Count() int {
	n := 0
	for _, b := range m {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

// --------------------------------------------------------------------------
// Row Batch
// --------------------------------------------------------------------------

// ColumnView is a read-only view of one column of a RowBatch.
// Values must not be modified.
type ColumnView struct {
	Schema ColumnSchema
	Values []any
	Nulls  NullMask
}

// RowBatch is an immutable, columnar collection of rows for a single table.
type RowBatch struct {
	table    string
	schemas  []ColumnSchema
	columns  [][]any
	nulls    []NullMask
	rowCount int
}

// NewRowBatch validates and creates a batch. columns[i] holds the values of
// schemas[i]; a nil entry marks a null. The input slices are copied.
func NewRowBatch(table string, schemas []ColumnSchema, columns [][]any) (*RowBatch, error) {
	if table == "" {
		return nil, schemaErrorf(table, "", "table name must not be empty")
	}
	if len(schemas) == 0 {
		return nil, schemaErrorf(table, "", "batch must declare at least one column")
	}
	if len(columns) != len(schemas) {
		return nil, schemaErrorf(table, "", "got %d value arrays for %d column schemas", len(columns), len(schemas))
	}

	rowCount := len(columns[0])
	names := make(map[string]struct{}, len(schemas))
	timestamps := 0

	b := &RowBatch{
		table:    table,
		schemas:  make([]ColumnSchema, len(schemas)),
		columns:  make([][]any, len(schemas)),
		nulls:    make([]NullMask, len(schemas)),
		rowCount: rowCount,
	}
	copy(b.schemas, schemas)

	for i, schema := range schemas {
		if schema.Name == "" {
			return nil, schemaErrorf(table, "", "column %d has an empty name", i)
		}
		if _, dup := names[schema.Name]; dup {
			return nil, schemaErrorf(table, schema.Name, "duplicate column name")
		}
		names[schema.Name] = struct{}{}

		if !schema.DataType.Valid() {
			return nil, schemaErrorf(table, schema.Name, "invalid data type %d", schema.DataType)
		}
		if !schema.Semantic.Valid() {
			return nil, schemaErrorf(table, schema.Name, "invalid semantic type %d", schema.Semantic)
		}
		if schema.Semantic == SemanticTimestamp {
			timestamps++
			if timestamps > 1 {
				return nil, schemaErrorf(table, schema.Name, "more than one timestamp column")
			}
			if !schema.DataType.IsTimestamp() {
				return nil, schemaErrorf(table, schema.Name, "timestamp column must have a timestamp data type, got %s", schema.DataType)
			}
		}

		values := columns[i]
		if len(values) != rowCount {
			return nil, schemaErrorf(table, schema.Name, "column has %d values, expected %d rows", len(values), rowCount)
		}

		mask := NewNullMask(rowCount)
		copied := make([]any, rowCount)
		for row, v := range values {
			if v == nil {
				mask.Set(row)
				continue
			}
			if !schema.DataType.Accepts(v) {
				return nil, schemaErrorf(table, schema.Name, "row %d: value of type %T does not match %s (want %s)", row, v, schema.DataType, schema.DataType.GoType())
			}
			if bs, ok := v.([]byte); ok {
				v = append([]byte(nil), bs...)
			}
			copied[row] = v
		}

		b.columns[i] = copied
		b.nulls[i] = mask
	}

	return b, nil
}

// ValidateForInsert checks the additional invariant of insert batches:
// exactly one timestamp column.
func (b *RowBatch) ValidateForInsert() error {
	if b.TimestampIndex() < 0 {
		return schemaErrorf(b.table, "", "insert batch requires exactly one timestamp column")
	}
	return nil
}

// Table returns the name of the target table.
func (b *RowBatch) Table() string { return b.table }

// RowCount returns the number of rows in the batch.
func (b *RowBatch) RowCount() int { return b.rowCount }

// NumColumns returns the number of columns in the batch.
func (b *RowBatch) NumColumns() int { return len(b.schemas) }

// Schemas returns a copy of the column schemas in declaration order.
func (b *RowBatch) Schemas() []ColumnSchema {
	out := make([]ColumnSchema, len(b.schemas))
	copy(out, b.schemas)
	return out
}

// Column returns a read-only view of column i.
func (b *RowBatch) Column(i int) ColumnView {
	return ColumnView{Schema: b.schemas[i], Values: b.columns[i], Nulls: b.nulls[i]}
}

// Columns returns views of all columns in declaration order.
func (b *RowBatch) Columns() []ColumnView {
	views := make([]ColumnView, len(b.schemas))
	for i := range b.schemas {
		views[i] = b.Column(i)
	}
	return views
}

// ColumnIndex returns the position of the named column or -1.
func (b *RowBatch) ColumnIndex(name string) int {
	for i, s := range b.schemas {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// TimestampIndex returns the position of the timestamp column or -1.
func (b *RowBatch) TimestampIndex() int {
	for i, s := range b.schemas {
		if s.Semantic == SemanticTimestamp {
			return i
		}
	}
	return -1
}

// Project returns a batch holding only the named columns, in the given order.
func (b *RowBatch) Project(names []string) (*RowBatch, error) {
	if len(names) == 0 {
		return nil, schemaErrorf(b.table, "", "projection needs at least one column")
	}

	p := &RowBatch{
		table:    b.table,
		schemas:  make([]ColumnSchema, 0, len(names)),
		columns:  make([][]any, 0, len(names)),
		nulls:    make([]NullMask, 0, len(names)),
		rowCount: b.rowCount,
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return nil, schemaErrorf(b.table, name, "column listed twice")
		}
		seen[name] = struct{}{}

		idx := b.ColumnIndex(name)
		if idx < 0 {
			return nil, schemaErrorf(b.table, name, "no such column")
		}
		// columns are immutable, sharing them is safe
		p.schemas = append(p.schemas, b.schemas[idx])
		p.columns = append(p.columns, b.columns[idx])
		p.nulls = append(p.nulls, b.nulls[idx])
	}
	return p, nil
}
