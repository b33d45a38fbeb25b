package serializer

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/dRow/rpc/common"
	"google.golang.org/protobuf/encoding/protowire"
)

// NewBinarySerializer creates a new serializer writing the protobuf wire
// format. Fields are always written in field number order and zero values are
// omitted, so equal messages serialize to identical bytes.
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using protobuf wire encoding
type binarySerializerImpl struct {
}

// Field numbers of the request message
const (
	reqFieldKind     protowire.Number = 1
	reqFieldDatabase protowire.Number = 2
	reqFieldTable    protowire.Number = 3
	reqFieldRowCount protowire.Number = 4
	reqFieldColumns  protowire.Number = 5
)

// Field numbers of the column message
const (
	colFieldName     protowire.Number = 1
	colFieldDataType protowire.Number = 2
	colFieldSemantic protowire.Number = 3
	colFieldNullMask protowire.Number = 4
	colFieldValues   protowire.Number = 5
)

// Field numbers of the response message
const (
	respFieldKind         protowire.Number = 1
	respFieldAffectedRows protowire.Number = 2
	respFieldCode         protowire.Number = 3
	respFieldErr          protowire.Number = 4
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) GetName() string {
	return "binary"
}

func (b binarySerializerImpl) SerializeRequest(req *common.EncodedRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}

	// Calculate total size needed
	colSizes := make([]int, len(req.Columns))
	size := sizeVarint(reqFieldKind, uint64(req.Kind)) +
		sizeBytes(reqFieldDatabase, len(req.Database)) +
		sizeBytes(reqFieldTable, len(req.Table)) +
		sizeVarint(reqFieldRowCount, uint64(req.RowCount))
	for i := range req.Columns {
		colSizes[i] = columnSize(&req.Columns[i])
		size += protowire.SizeTag(reqFieldColumns) + protowire.SizeBytes(colSizes[i])
	}

	buf := make([]byte, 0, size)
	buf = appendVarint(buf, reqFieldKind, uint64(req.Kind))
	buf = appendString(buf, reqFieldDatabase, req.Database)
	buf = appendString(buf, reqFieldTable, req.Table)
	buf = appendVarint(buf, reqFieldRowCount, uint64(req.RowCount))

	for i := range req.Columns {
		col := &req.Columns[i]
		buf = protowire.AppendTag(buf, reqFieldColumns, protowire.BytesType)
		buf = protowire.AppendVarint(buf, uint64(colSizes[i]))
		buf = appendString(buf, colFieldName, col.Name)
		buf = appendVarint(buf, colFieldDataType, uint64(col.DataType))
		buf = appendVarint(buf, colFieldSemantic, uint64(col.Semantic))
		buf = appendBytes(buf, colFieldNullMask, col.NullMask)
		buf = appendBytes(buf, colFieldValues, col.Values)
	}

	return buf, nil
}

func (b binarySerializerImpl) DeserializeRequest(data []byte, req *common.EncodedRequest) error {
	*req = common.EncodedRequest{}

	return consumeFields(data, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch {
		case num == reqFieldKind && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			req.Kind = common.RequestKind(x)
			return n, nil
		case num == reqFieldDatabase && typ == protowire.BytesType:
			x, n := protowire.ConsumeBytes(v)
			req.Database = string(x)
			return n, nil
		case num == reqFieldTable && typ == protowire.BytesType:
			x, n := protowire.ConsumeBytes(v)
			req.Table = string(x)
			return n, nil
		case num == reqFieldRowCount && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			req.RowCount = uint32(x)
			return n, nil
		case num == reqFieldColumns && typ == protowire.BytesType:
			x, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, nil
			}
			var col common.EncodedColumn
			if err := deserializeColumn(x, &col); err != nil {
				return 0, fmt.Errorf("column %d: %w", len(req.Columns), err)
			}
			req.Columns = append(req.Columns, col)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, v), nil
		}
	})
}

func (b binarySerializerImpl) SerializeResponse(resp *common.Response) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}

	size := sizeVarint(respFieldKind, uint64(resp.Kind)) +
		sizeVarint(respFieldAffectedRows, uint64(resp.AffectedRows)) +
		sizeVarint(respFieldCode, uint64(resp.Code)) +
		sizeBytes(respFieldErr, len(resp.Err))

	buf := make([]byte, 0, size)
	buf = appendVarint(buf, respFieldKind, uint64(resp.Kind))
	buf = appendVarint(buf, respFieldAffectedRows, uint64(resp.AffectedRows))
	buf = appendVarint(buf, respFieldCode, uint64(resp.Code))
	buf = appendString(buf, respFieldErr, resp.Err)
	return buf, nil
}

func (b binarySerializerImpl) DeserializeResponse(data []byte, resp *common.Response) error {
	*resp = common.Response{}

	return consumeFields(data, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch {
		case num == respFieldKind && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			resp.Kind = common.RequestKind(x)
			return n, nil
		case num == respFieldAffectedRows && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			resp.AffectedRows = uint32(x)
			return n, nil
		case num == respFieldCode && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			resp.Code = common.StatusCode(x)
			return n, nil
		case num == respFieldErr && typ == protowire.BytesType:
			x, n := protowire.ConsumeBytes(v)
			resp.Err = string(x)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, v), nil
		}
	})
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// consumeFields walks all fields of a message. fn consumes the value of one
// field and returns the number of bytes used (negative on malformed input).
// Unknown fields are skipped by fn.
func consumeFields(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("invalid field tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(m))
		}
		data = data[m:]
	}
	return nil
}

func deserializeColumn(data []byte, col *common.EncodedColumn) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch {
		case num == colFieldName && typ == protowire.BytesType:
			x, n := protowire.ConsumeBytes(v)
			col.Name = string(x)
			return n, nil
		case num == colFieldDataType && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			if n >= 0 && x > math.MaxUint8 {
				return n, fmt.Errorf("column data type %d out of range", x)
			}
			col.DataType = uint8(x)
			return n, nil
		case num == colFieldSemantic && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			if n >= 0 && x > math.MaxUint8 {
				return n, fmt.Errorf("column semantic role %d out of range", x)
			}
			col.Semantic = uint8(x)
			return n, nil
		case num == colFieldNullMask && typ == protowire.BytesType:
			x, n := protowire.ConsumeBytes(v)
			col.NullMask = cloneBytes(x)
			return n, nil
		case num == colFieldValues && typ == protowire.BytesType:
			x, n := protowire.ConsumeBytes(v)
			col.Values = cloneBytes(x)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, v), nil
		}
	})
}

func columnSize(col *common.EncodedColumn) int {
	return sizeBytes(colFieldName, len(col.Name)) +
		sizeVarint(colFieldDataType, uint64(col.DataType)) +
		sizeVarint(colFieldSemantic, uint64(col.Semantic)) +
		sizeBytes(colFieldNullMask, len(col.NullMask)) +
		sizeBytes(colFieldValues, len(col.Values))
}

func sizeVarint(num protowire.Number, v uint64) int {
	if v == 0 {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeVarint(v)
}

func sizeBytes(num protowire.Number, n int) int {
	if n == 0 {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeBytes(n)
}

func appendVarint(buf []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}

func appendString(buf []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendString(buf, s)
}

func appendBytes(buf []byte, num protowire.Number, b []byte) []byte {
	if len(b) == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, b)
}

// cloneBytes copies b, the transport may reuse the input buffer
func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
