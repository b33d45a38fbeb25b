package encoder

import (
	"encoding/binary"
	"testing"

	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/rpc/common"
	"github.com/ValentinKolb/dRow/rpc/serializer"
	"github.com/stretchr/testify/require"
)

// allTypesBatch builds a batch holding every data type, every second row null
func allTypesBatch(t *testing.T, n int) *rows.RowBatch {
	t.Helper()

	b := rows.NewBuilder("all_types",
		rows.Timestamp("ts", rows.TimestampNanosecond),
		rows.Tag("host", rows.String),
		rows.Field("i8", rows.Int8),
		rows.Field("i16", rows.Int16),
		rows.Field("i32", rows.Int32),
		rows.Field("i64", rows.Int64),
		rows.Field("u8", rows.Uint8),
		rows.Field("u16", rows.Uint16),
		rows.Field("u32", rows.Uint32),
		rows.Field("u64", rows.Uint64),
		rows.Field("f32", rows.Float32),
		rows.Field("f64", rows.Float64),
		rows.Field("ok", rows.Boolean),
		rows.Field("blob", rows.Binary),
	)
	for i := 0; i < n; i++ {
		if i%2 == 1 {
			require.NoError(t, b.AddRow(int64(i), "host", nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil))
			continue
		}
		require.NoError(t, b.AddRow(
			int64(i), "host",
			int8(-i), int16(-i*100), int32(i*1000), int64(-i)*1_000_000_000,
			uint8(i), uint16(i*100), uint32(i*1000), uint64(i)*1_000_000_000,
			float32(i)/2, float64(i)/3, i%4 == 0, []byte{byte(i), 0xff},
		))
	}
	batch, err := b.Build()
	require.NoError(t, err)
	return batch
}

func TestEncodeInsert_TwoRowsWithNull(t *testing.T) {
	batch, err := rows.NewRowBatch("t", []rows.ColumnSchema{
		rows.Timestamp("ts", rows.TimestampMillisecond),
		rows.Field("v", rows.Int64),
	}, [][]any{
		{int64(1000), int64(2000)},
		{int64(7), nil},
	})
	require.NoError(t, err)

	req, err := EncodeInsert("public", batch)
	require.NoError(t, err)
	require.Equal(t, common.KindInsert, req.Kind)
	require.Equal(t, "public", req.Database)
	require.Equal(t, "t", req.Table)
	require.Equal(t, uint32(2), req.RowCount)
	require.Len(t, req.Columns, 2)

	v := req.Columns[1]
	require.Equal(t, "v", v.Name)
	require.Equal(t, uint8(rows.Int64), v.DataType)
	require.Equal(t, uint8(rows.SemanticField), v.Semantic)
	require.Equal(t, []byte{0x02}, v.NullMask)
	require.Len(t, v.Values, 16)
	require.Equal(t, uint64(7), binary.LittleEndian.Uint64(v.Values[:8]))
	require.Equal(t, make([]byte, 8), v.Values[8:])

	ts := req.Columns[0]
	require.Equal(t, []byte{0x00}, ts.NullMask)
	require.Equal(t, uint64(2000), binary.LittleEndian.Uint64(ts.Values[8:]))
}

func TestEncodeInsert_NullMaskAndValueLengths(t *testing.T) {
	for _, n := range []int{0, 1, 7, 8, 9, 64, 100} {
		batch := allTypesBatch(t, n)
		req, err := EncodeInsert("db", batch)
		require.NoError(t, err)

		for i, col := range req.Columns {
			require.Len(t, col.NullMask, (n+7)/8, "column %s", col.Name)

			view := batch.Column(i)
			for row := 0; row < n; row++ {
				require.Equal(t, view.Nulls.IsNull(row), rows.NullMask(col.NullMask).IsNull(row))
			}

			if w := view.Schema.DataType.FixedWidth(); w > 0 {
				require.Len(t, col.Values, w*n, "column %s", col.Name)
			}
		}
	}
}

func TestEncodeInsert_EmptyBatch(t *testing.T) {
	batch := allTypesBatch(t, 0)
	req, err := EncodeInsert("db", batch)
	require.NoError(t, err)
	require.Equal(t, uint32(0), req.RowCount)
	require.Len(t, req.Columns, 14)
	for _, col := range req.Columns {
		require.NotEmpty(t, col.Name)
		require.Empty(t, col.NullMask)
		require.Empty(t, col.Values)
	}
}

func TestEncodeInsert_SchemaRoundTrip(t *testing.T) {
	batch := allTypesBatch(t, 5)
	req, err := EncodeInsert("db", batch)
	require.NoError(t, err)
	require.Equal(t, batch.Schemas(), DecodeSchema(req))

	decoded, err := DecodeBatch(req)
	require.NoError(t, err)
	require.Equal(t, batch.RowCount(), decoded.RowCount())
	for i := 0; i < batch.NumColumns(); i++ {
		require.Equal(t, batch.Column(i).Values, decoded.Column(i).Values, "column %d", i)
	}
}

func TestEncodeInsert_Deterministic(t *testing.T) {
	batch := allTypesBatch(t, 33)
	s := serializer.NewBinarySerializer()

	first, err := EncodeInsert("db", batch)
	require.NoError(t, err)
	second, err := EncodeInsert("db", batch)
	require.NoError(t, err)

	a, err := s.SerializeRequest(first)
	require.NoError(t, err)
	b, err := s.SerializeRequest(second)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestEncodeInsert_RequiresTimestamp(t *testing.T) {
	batch, err := rows.NewRowBatch("t", []rows.ColumnSchema{rows.Tag("host", rows.String)}, [][]any{{"a"}})
	require.NoError(t, err)

	_, err = EncodeInsert("db", batch)
	var encodeErr *common.EncodeError
	require.ErrorAs(t, err, &encodeErr)

	_, err = EncodeInsert("db", nil)
	require.ErrorAs(t, err, &encodeErr)
}

func TestEncodeColumn_TypeMismatch(t *testing.T) {
	view := rows.ColumnView{
		Schema: rows.Field("v", rows.Int32),
		Values: []any{int32(1), "two"},
		Nulls:  rows.NewNullMask(2),
	}
	_, err := EncodeColumn("t", view, 2)
	var encodeErr *common.EncodeError
	require.ErrorAs(t, err, &encodeErr)
	require.Equal(t, "v", encodeErr.Column)

	_, err = EncodeColumn("t", view, 3)
	require.ErrorAs(t, err, &encodeErr)
}

func TestEncodeDelete(t *testing.T) {
	batch := allTypesBatch(t, 4)

	req, err := EncodeDelete("db", "all_types", []string{"host", "ts"}, batch)
	require.NoError(t, err)
	require.Equal(t, common.KindDelete, req.Kind)
	require.Equal(t, uint32(4), req.RowCount)
	require.Equal(t, []rows.ColumnSchema{
		rows.Tag("host", rows.String),
		rows.Timestamp("ts", rows.TimestampNanosecond),
	}, DecodeSchema(req))

	var encodeErr *common.EncodeError
	_, err = EncodeDelete("db", "all_types", nil, batch)
	require.ErrorAs(t, err, &encodeErr)
	_, err = EncodeDelete("db", "all_types", []string{"nope"}, batch)
	require.ErrorAs(t, err, &encodeErr)
	_, err = EncodeDelete("db", "other", []string{"host"}, batch)
	require.ErrorAs(t, err, &encodeErr)
}

func TestDecodeColumn_Corrupt(t *testing.T) {
	col := common.EncodedColumn{
		Name:     "v",
		DataType: uint8(rows.Int32),
		NullMask: []byte{0},
		Values:   []byte{1, 2, 3},
	}
	_, _, err := DecodeColumn(col, 1)
	require.Error(t, err)

	col.Values = []byte{1, 0, 0, 0, 9}
	_, _, err = DecodeColumn(col, 1)
	require.Error(t, err)

	col.Values = []byte{1, 0, 0, 0}
	col.NullMask = nil
	_, _, err = DecodeColumn(col, 1)
	require.Error(t, err)

	col.DataType = 200
	col.NullMask = []byte{0}
	_, _, err = DecodeColumn(col, 1)
	require.Error(t, err)

	str := common.EncodedColumn{Name: "s", DataType: uint8(rows.String), NullMask: []byte{0}, Values: []byte{5, 'a'}}
	_, _, err = DecodeColumn(str, 1)
	require.Error(t, err)
}
