package rows

import (
	"fmt"
	"reflect"
	"strings"
)

// --------------------------------------------------------------------------
// Column Data Types
// --------------------------------------------------------------------------

// ColumnDataType is the declared data type of a column.
// The numeric value is the type code used on the wire.
type ColumnDataType uint8

const (
	Unknown ColumnDataType = iota

	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Boolean
	String
	Binary
	TimestampSecond
	TimestampMillisecond
	TimestampMicrosecond
	TimestampNanosecond
)

var dataTypeNames = map[ColumnDataType]string{
	Int8:                 "int8",
	Int16:                "int16",
	Int32:                "int32",
	Int64:                "int64",
	Uint8:                "uint8",
	Uint16:               "uint16",
	Uint32:               "uint32",
	Uint64:               "uint64",
	Float32:              "float32",
	Float64:              "float64",
	Boolean:              "boolean",
	String:               "string",
	Binary:               "binary",
	TimestampSecond:      "timestamp_second",
	TimestampMillisecond: "timestamp_millisecond",
	TimestampMicrosecond: "timestamp_microsecond",
	TimestampNanosecond:  "timestamp_nanosecond",
}

// short aliases accepted by ParseColumnDataType
var dataTypeAliases = map[string]ColumnDataType{
	"bool":    Boolean,
	"text":    String,
	"bytes":   Binary,
	"ts_s":    TimestampSecond,
	"ts_ms":   TimestampMillisecond,
	"ts_us":   TimestampMicrosecond,
	"ts_ns":   TimestampNanosecond,
	"float":   Float64,
	"double":  Float64,
	"integer": Int64,
}

// String returns the canonical name of the data type.
func (t ColumnDataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is one of the declared data types.
func (t ColumnDataType) Valid() bool {
	_, ok := dataTypeNames[t]
	return ok
}

// IsTimestamp reports whether t is one of the timestamp variants.
func (t ColumnDataType) IsTimestamp() bool {
	return t >= TimestampSecond && t <= TimestampNanosecond
}

// FixedWidth returns the number of bytes a single value occupies on the wire,
// or 0 for variable-length types (String, Binary).
func (t ColumnDataType) FixedWidth() int {
	switch t {
	case Int8, Uint8, Boolean:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64,
		TimestampSecond, TimestampMillisecond, TimestampMicrosecond, TimestampNanosecond:
		return 8
	default:
		return 0
	}
}

// GoType returns the Go type a non-null value of this column must have.
func (t ColumnDataType) GoType() reflect.Type {
	switch t {
	case Int8:
		return reflect.TypeOf(int8(0))
	case Int16:
		return reflect.TypeOf(int16(0))
	case Int32:
		return reflect.TypeOf(int32(0))
	case Int64, TimestampSecond, TimestampMillisecond, TimestampMicrosecond, TimestampNanosecond:
		return reflect.TypeOf(int64(0))
	case Uint8:
		return reflect.TypeOf(uint8(0))
	case Uint16:
		return reflect.TypeOf(uint16(0))
	case Uint32:
		return reflect.TypeOf(uint32(0))
	case Uint64:
		return reflect.TypeOf(uint64(0))
	case Float32:
		return reflect.TypeOf(float32(0))
	case Float64:
		return reflect.TypeOf(float64(0))
	case Boolean:
		return reflect.TypeOf(false)
	case String:
		return reflect.TypeOf("")
	case Binary:
		return reflect.TypeOf([]byte(nil))
	default:
		return nil
	}
}

// Accepts reports whether v is a valid non-null value for the data type.
func (t ColumnDataType) Accepts(v any) bool {
	switch t {
	case Int8:
		_, ok := v.(int8)
		return ok
	case Int16:
		_, ok := v.(int16)
		return ok
	case Int32:
		_, ok := v.(int32)
		return ok
	case Int64, TimestampSecond, TimestampMillisecond, TimestampMicrosecond, TimestampNanosecond:
		_, ok := v.(int64)
		return ok
	case Uint8:
		_, ok := v.(uint8)
		return ok
	case Uint16:
		_, ok := v.(uint16)
		return ok
	case Uint32:
		_, ok := v.(uint32)
		return ok
	case Uint64:
		_, ok := v.(uint64)
		return ok
	case Float32:
		_, ok := v.(float32)
		return ok
	case Float64:
		_, ok := v.(float64)
		return ok
	case Boolean:
		_, ok := v.(bool)
		return ok
	case String:
		_, ok := v.(string)
		return ok
	case Binary:
		_, ok := v.([]byte)
		return ok
	default:
		return false
	}
}

// ParseColumnDataType parses a data type name (case-insensitive) as printed by
// ColumnDataType.String, or one of a few short aliases (bool, text, ts_ms, ...).
func ParseColumnDataType(name string) (ColumnDataType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for t, tn := range dataTypeNames {
		if tn == n {
			return t, nil
		}
	}
	if t, ok := dataTypeAliases[n]; ok {
		return t, nil
	}
	return Unknown, fmt.Errorf("unknown column data type %q", name)
}

// --------------------------------------------------------------------------
// Semantic Types
// --------------------------------------------------------------------------

// SemanticType is the role a column plays in its table.
type SemanticType uint8

const (
	SemanticUnknown SemanticType = iota
	SemanticTag
	SemanticField
	SemanticTimestamp
)

// String returns the name of the semantic type.
func (s SemanticType) String() string {
	switch s {
	case SemanticTag:
		return "tag"
	case SemanticField:
		return "field"
	case SemanticTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Valid reports whether s is tag, field or timestamp.
func (s SemanticType) Valid() bool {
	return s >= SemanticTag && s <= SemanticTimestamp
}

// ParseSemanticType parses "tag", "field" or "timestamp" (case-insensitive).
func ParseSemanticType(name string) (SemanticType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tag":
		return SemanticTag, nil
	case "field":
		return SemanticField, nil
	case "timestamp", "ts", "time":
		return SemanticTimestamp, nil
	default:
		return SemanticUnknown, fmt.Errorf("unknown semantic type %q", name)
	}
}

// --------------------------------------------------------------------------
// Column Schema
// --------------------------------------------------------------------------

// ColumnSchema describes one column of a RowBatch.
type ColumnSchema struct {
	Name     string
	DataType ColumnDataType
	Semantic SemanticType
}

// String returns the schema as name:type:role.
func (c ColumnSchema) String() string {
	return fmt.Sprintf("%s:%s:%s", c.Name, c.DataType, c.Semantic)
}

// Tag creates the schema of a tag column
func Tag(name string, dataType ColumnDataType) ColumnSchema {
	return ColumnSchema{Name: name, DataType: dataType, Semantic: SemanticTag}
}

// Field creates the schema of a field column
func Field(name string, dataType ColumnDataType) ColumnSchema {
	return ColumnSchema{Name: name, DataType: dataType, Semantic: SemanticField}
}

// Timestamp creates the schema of the time index column
func Timestamp(name string, dataType ColumnDataType) ColumnSchema {
	return ColumnSchema{Name: name, DataType: dataType, Semantic: SemanticTimestamp}
}

// ParseColumnSchema parses a column definition of the form name:type[:role].
// The role defaults to field.
func ParseColumnSchema(def string) (ColumnSchema, error) {
	parts := strings.Split(def, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ColumnSchema{}, fmt.Errorf("invalid column definition %q (expected name:type[:role])", def)
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return ColumnSchema{}, fmt.Errorf("invalid column definition %q: empty name", def)
	}

	dataType, err := ParseColumnDataType(parts[1])
	if err != nil {
		return ColumnSchema{}, err
	}

	semantic := SemanticField
	if len(parts) == 3 {
		if semantic, err = ParseSemanticType(parts[2]); err != nil {
			return ColumnSchema{}, err
		}
	}

	return ColumnSchema{Name: name, DataType: dataType, Semantic: semantic}, nil
}
