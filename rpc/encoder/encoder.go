package encoder

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/rpc/common"
)

// --------------------------------------------------------------------------
// Request encoding
// --------------------------------------------------------------------------

// EncodeInsert encodes all columns of batch into an insert request.
func EncodeInsert(database string, batch *rows.RowBatch) (*common.EncodedRequest, error) {
	if batch == nil {
		return nil, &common.EncodeError{Msg: "batch is nil"}
	}
	if err := batch.ValidateForInsert(); err != nil {
		return nil, &common.EncodeError{Table: batch.Table(), Msg: err.Error()}
	}
	return encode(common.KindInsert, database, batch.Table(), batch)
}

// EncodeDelete encodes a delete request for table. Only the key columns are
// sent, in the order given by keyColumns.
func EncodeDelete(database, table string, keyColumns []string, batch *rows.RowBatch) (*common.EncodedRequest, error) {
	if batch == nil {
		return nil, &common.EncodeError{Table: table, Msg: "batch is nil"}
	}
	if len(keyColumns) == 0 {
		return nil, &common.EncodeError{Table: table, Msg: "delete requires at least one key column"}
	}
	if table != batch.Table() {
		return nil, &common.EncodeError{Table: table, Msg: fmt.Sprintf("batch belongs to table %q", batch.Table())}
	}

	keys, err := batch.Project(keyColumns)
	if err != nil {
		return nil, &common.EncodeError{Table: table, Msg: err.Error()}
	}
	return encode(common.KindDelete, database, table, keys)
}

func encode(kind common.RequestKind, database, table string, batch *rows.RowBatch) (*common.EncodedRequest, error) {
	rowCount := batch.RowCount()
	if uint64(rowCount) > math.MaxUint32 {
		return nil, &common.EncodeError{Table: table, Msg: fmt.Sprintf("too many rows: %d", rowCount)}
	}

	req := &common.EncodedRequest{
		Kind:     kind,
		Database: database,
		Table:    table,
		RowCount: uint32(rowCount),
		Columns:  make([]common.EncodedColumn, batch.NumColumns()),
	}

	for i, col := range batch.Columns() {
		encoded, err := EncodeColumn(table, col, rowCount)
		if err != nil {
			return nil, err
		}
		req.Columns[i] = encoded
	}
	return req, nil
}

// EncodeColumn encodes the schema descriptor, null mask and values of a
// single column holding rowCount rows.
func EncodeColumn(table string, col rows.ColumnView, rowCount int) (common.EncodedColumn, error) {
	schema := col.Schema
	encoded := common.EncodedColumn{
		Name:     schema.Name,
		DataType: uint8(schema.DataType),
		Semantic: uint8(schema.Semantic),
	}

	if len(col.Values) != rowCount {
		return encoded, &common.EncodeError{
			Table:  table,
			Column: schema.Name,
			Msg:    fmt.Sprintf("column has %d values, expected %d rows", len(col.Values), rowCount),
		}
	}

	mask := rows.NewNullMask(rowCount)
	values := make([]byte, 0, valuesCapacity(schema.DataType, rowCount))

	for row, v := range col.Values {
		if v == nil || col.Nulls.IsNull(row) {
			mask.Set(row)
			values = appendPlaceholder(values, schema.DataType)
			continue
		}

		var err error
		values, err = appendValue(values, schema.DataType, v)
		if err != nil {
			return encoded, &common.EncodeError{
				Table:  table,
				Column: schema.Name,
				Msg:    fmt.Sprintf("row %d: %v", row, err),
			}
		}
	}

	encoded.NullMask = mask
	encoded.Values = values
	return encoded, nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func valuesCapacity(dataType rows.ColumnDataType, rowCount int) int {
	if w := dataType.FixedWidth(); w > 0 {
		return w * rowCount
	}
	// guess for variable length values
	return 16 * rowCount
}

// appendPlaceholder appends the zero value of the data type, it takes the
// position of a null row
func appendPlaceholder(buf []byte, dataType rows.ColumnDataType) []byte {
	if w := dataType.FixedWidth(); w > 0 {
		for i := 0; i < w; i++ {
			buf = append(buf, 0)
		}
		return buf
	}
	return binary.AppendUvarint(buf, 0)
}

// appendValue appends the little endian encoding of v
func appendValue(buf []byte, dataType rows.ColumnDataType, v any) ([]byte, error) {
	switch dataType {
	case rows.Int8:
		if x, ok := v.(int8); ok {
			return append(buf, byte(x)), nil
		}
	case rows.Int16:
		if x, ok := v.(int16); ok {
			return binary.LittleEndian.AppendUint16(buf, uint16(x)), nil
		}
	case rows.Int32:
		if x, ok := v.(int32); ok {
			return binary.LittleEndian.AppendUint32(buf, uint32(x)), nil
		}
	case rows.Int64, rows.TimestampSecond, rows.TimestampMillisecond, rows.TimestampMicrosecond, rows.TimestampNanosecond:
		if x, ok := v.(int64); ok {
			return binary.LittleEndian.AppendUint64(buf, uint64(x)), nil
		}
	case rows.Uint8:
		if x, ok := v.(uint8); ok {
			return append(buf, x), nil
		}
	case rows.Uint16:
		if x, ok := v.(uint16); ok {
			return binary.LittleEndian.AppendUint16(buf, x), nil
		}
	case rows.Uint32:
		if x, ok := v.(uint32); ok {
			return binary.LittleEndian.AppendUint32(buf, x), nil
		}
	case rows.Uint64:
		if x, ok := v.(uint64); ok {
			return binary.LittleEndian.AppendUint64(buf, x), nil
		}
	case rows.Float32:
		if x, ok := v.(float32); ok {
			return binary.LittleEndian.AppendUint32(buf, math.Float32bits(x)), nil
		}
	case rows.Float64:
		if x, ok := v.(float64); ok {
			return binary.LittleEndian.AppendUint64(buf, math.Float64bits(x)), nil
		}
	case rows.Boolean:
		if x, ok := v.(bool); ok {
			if x {
				return append(buf, 1), nil
			}
			return append(buf, 0), nil
		}
	case rows.String:
		if x, ok := v.(string); ok {
			buf = binary.AppendUvarint(buf, uint64(len(x)))
			return append(buf, x...), nil
		}
	case rows.Binary:
		if x, ok := v.([]byte); ok {
			buf = binary.AppendUvarint(buf, uint64(len(x)))
			return append(buf, x...), nil
		}
	default:
		return buf, fmt.Errorf("unsupported data type %s", dataType)
	}
	return buf, fmt.Errorf("value of type %T does not match %s", v, dataType)
}
