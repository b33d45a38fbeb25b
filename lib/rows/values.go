package rows

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampValue converts t into the unit of a timestamp data type.
func TimestampValue(dataType ColumnDataType, t time.Time) (int64, error) {
	switch dataType {
	case TimestampSecond:
		return t.Unix(), nil
	case TimestampMillisecond:
		return t.UnixMilli(), nil
	case TimestampMicrosecond:
		return t.UnixMicro(), nil
	case TimestampNanosecond:
		return t.UnixNano(), nil
	default:
		return 0, fmt.Errorf("%s is not a timestamp data type", dataType)
	}
}

// ParseValue converts the textual representation of a value into the Go type
// of the data type. An empty string or NULL (any case) yields nil.
//
// Binary values are expected base64 encoded. Timestamps accept either an
// integer in the column's unit or an RFC 3339 time.
func ParseValue(dataType ColumnDataType, s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}

	switch dataType {
	case Int8, Int16, Int32, Int64:
		bits := dataType.FixedWidth() * 8
		v, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return nil, err
		}
		switch dataType {
		case Int8:
			return int8(v), nil
		case Int16:
			return int16(v), nil
		case Int32:
			return int32(v), nil
		default:
			return v, nil
		}
	case Uint8, Uint16, Uint32, Uint64:
		bits := dataType.FixedWidth() * 8
		v, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return nil, err
		}
		switch dataType {
		case Uint8:
			return uint8(v), nil
		case Uint16:
			return uint16(v), nil
		case Uint32:
			return uint32(v), nil
		default:
			return v, nil
		}
	case Float32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		return float32(v), nil
	case Float64:
		return strconv.ParseFloat(s, 64)
	case Boolean:
		return strconv.ParseBool(s)
	case String:
		return s, nil
	case Binary:
		return base64.StdEncoding.DecodeString(s)
	case TimestampSecond, TimestampMillisecond, TimestampMicrosecond, TimestampNanosecond:
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		return TimestampValue(dataType, t)
	default:
		return nil, fmt.Errorf("unsupported data type %s", dataType)
	}
}
