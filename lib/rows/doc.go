// Package rows provides the in-memory representation of a table write: a
// columnar, typed batch of rows destined for exactly one table.
//
// The package focuses on:
//   - A fixed enumeration of column data types and their Go value types
//   - Column schemas carrying a semantic role (tag, field or timestamp)
//   - Null tracking through a compact per-column bitset
//   - Validation of all batch invariants at construction time
//
// Key Components:
//
//   - ColumnSchema: name, data type and semantic role of one column. Helpers Tag,
//     Field and Timestamp create schemas for the three roles.
//
//   - RowBatch: the immutable batch itself. NewRowBatch copies its input and
//     rejects anything that violates the batch invariants with a *SchemaError.
//     Columns keep their declaration order, which is significant because the wire
//     format identifies columns by position.
//
//   - NullMask: bitset with one bit per row, bit set means the row is null.
//
//   - Builder: row-wise construction of a RowBatch for callers that produce data
//     one record at a time.
//
// Usage Example:
//
//	b := rows.NewBuilder("weather",
//		rows.Timestamp("ts", rows.TimestampMillisecond),
//		rows.Tag("collector", rows.String),
//		rows.Field("temperature", rows.Float32),
//	)
//	_ = b.AddRow(int64(1686109527000), "c1", float32(26.4))
//	_ = b.AddRow(int64(1686023127000), "c1", nil) // null temperature
//	batch, err := b.Build()
//
// Thread Safety:
//
//	A RowBatch is never modified after construction and may be read from any
//	number of goroutines. A Builder is not safe for concurrent use.
package rows
