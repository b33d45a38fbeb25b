package encoder

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/rpc/common"
)

// DecodeSchema returns the column schemas of an encoded request in wire order.
func DecodeSchema(req *common.EncodedRequest) []rows.ColumnSchema {
	schemas := make([]rows.ColumnSchema, len(req.Columns))
	for i, col := range req.Columns {
		schemas[i] = rows.ColumnSchema{
			Name:     col.Name,
			DataType: rows.ColumnDataType(col.DataType),
			Semantic: rows.SemanticType(col.Semantic),
		}
	}
	return schemas
}

// DecodeColumn decodes the values of one encoded column. Null rows are
// returned as nil.
func DecodeColumn(col common.EncodedColumn, rowCount int) ([]any, rows.NullMask, error) {
	dataType := rows.ColumnDataType(col.DataType)
	if !dataType.Valid() {
		return nil, nil, fmt.Errorf("column %q: invalid data type %d", col.Name, col.DataType)
	}

	mask := rows.NullMask(col.NullMask)
	if len(mask) != (rowCount+7)/8 {
		return nil, nil, fmt.Errorf("column %q: null mask has %d bytes, expected %d", col.Name, len(mask), (rowCount+7)/8)
	}

	values := make([]any, rowCount)
	buf := col.Values
	for row := 0; row < rowCount; row++ {
		v, n, err := readValue(buf, dataType)
		if err != nil {
			return nil, nil, fmt.Errorf("column %q row %d: %w", col.Name, row, err)
		}
		buf = buf[n:]
		if !mask.IsNull(row) {
			values[row] = v
		}
	}
	if len(buf) != 0 {
		return nil, nil, fmt.Errorf("column %q: %d trailing bytes", col.Name, len(buf))
	}
	return values, mask, nil
}

// DecodeBatch rebuilds the row batch carried by an encoded request.
func DecodeBatch(req *common.EncodedRequest) (*rows.RowBatch, error) {
	rowCount := int(req.RowCount)
	columns := make([][]any, len(req.Columns))
	for i, col := range req.Columns {
		values, _, err := DecodeColumn(col, rowCount)
		if err != nil {
			return nil, err
		}
		columns[i] = values
	}
	return rows.NewRowBatch(req.Table, DecodeSchema(req), columns)
}

// readValue reads a single value from buf and returns it together with the
// number of bytes consumed
func readValue(buf []byte, dataType rows.ColumnDataType) (any, int, error) {
	if w := dataType.FixedWidth(); w > 0 {
		if len(buf) < w {
			return nil, 0, fmt.Errorf("need %d bytes, have %d", w, len(buf))
		}
		return readFixed(buf[:w], dataType), w, nil
	}

	length, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, 0, fmt.Errorf("invalid length prefix")
	}
	if uint64(len(buf)-n) < length {
		return nil, 0, fmt.Errorf("need %d bytes, have %d", length, len(buf)-n)
	}
	end := n + int(length)
	if dataType == rows.String {
		return string(buf[n:end]), end, nil
	}
	return append([]byte(nil), buf[n:end]...), end, nil
}

func readFixed(b []byte, dataType rows.ColumnDataType) any {
	switch dataType {
	case rows.Int8:
		return int8(b[0])
	case rows.Int16:
		return int16(binary.LittleEndian.Uint16(b))
	case rows.Int32:
		return int32(binary.LittleEndian.Uint32(b))
	case rows.Uint8:
		return b[0]
	case rows.Uint16:
		return binary.LittleEndian.Uint16(b)
	case rows.Uint32:
		return binary.LittleEndian.Uint32(b)
	case rows.Uint64:
		return binary.LittleEndian.Uint64(b)
	case rows.Float32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case rows.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case rows.Boolean:
		return b[0] != 0
	default:
		// Int64 and all timestamp types
		return int64(binary.LittleEndian.Uint64(b))
	}
}
