package util

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for internal hash distribution
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the current time
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// HashValues hashes a tuple of column values with a seed. Equal tuples (see
// ValuesEqual) always have the same hash. Nulls are hashed as well, so a null
// only collides with a null.
func HashValues(values []any, seed uint64) uint64 {
	buf := make([]byte, 0, 16*len(values))
	for _, v := range values {
		buf = AppendValueKey(buf, v)
	}
	return xxhash.Sum64(buf) ^ seed
}

// AppendValueKey appends an unambiguous binary representation of v to buf.
// Every value starts with a type tag, variable length values carry their length.
func AppendValueKey(buf []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(buf, 0)
	case int8:
		return binary.LittleEndian.AppendUint64(append(buf, 1), uint64(x))
	case int16:
		return binary.LittleEndian.AppendUint64(append(buf, 2), uint64(x))
	case int32:
		return binary.LittleEndian.AppendUint64(append(buf, 3), uint64(x))
	case int64:
		return binary.LittleEndian.AppendUint64(append(buf, 4), uint64(x))
	case uint8:
		return binary.LittleEndian.AppendUint64(append(buf, 5), uint64(x))
	case uint16:
		return binary.LittleEndian.AppendUint64(append(buf, 6), uint64(x))
	case uint32:
		return binary.LittleEndian.AppendUint64(append(buf, 7), uint64(x))
	case uint64:
		return binary.LittleEndian.AppendUint64(append(buf, 8), x)
	case float32:
		return binary.LittleEndian.AppendUint32(append(buf, 9), math.Float32bits(x))
	case float64:
		return binary.LittleEndian.AppendUint64(append(buf, 10), math.Float64bits(x))
	case bool:
		if x {
			return append(buf, 11, 1)
		}
		return append(buf, 11, 0)
	case string:
		buf = binary.AppendUvarint(append(buf, 12), uint64(len(x)))
		return append(buf, x...)
	case []byte:
		buf = binary.AppendUvarint(append(buf, 13), uint64(len(x)))
		return append(buf, x...)
	default:
		return append(buf, 255)
	}
}

// ValuesEqual reports whether two column values are equal. Two nulls are equal.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := a.([]byte); ok {
		y, ok := b.([]byte)
		return ok && string(x) == string(y)
	}
	if _, ok := b.([]byte); ok {
		return false
	}
	return a == b
}
