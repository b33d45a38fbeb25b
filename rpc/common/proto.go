package common

import (
	"encoding/json"
	"fmt"
)

// NodeAddress identifies a database node: host:port for network transports,
// a socket path for the unix transport.
type NodeAddress = string

// --------------------------------------------------------------------------
// Request Structure
// --------------------------------------------------------------------------

// EncodedColumn is the wire representation of one column of a row batch.
type EncodedColumn struct {
	Name     string `json:"name"`
	DataType uint8  `json:"datatype"`
	Semantic uint8  `json:"semantic"`

	// NullMask holds ceil(RowCount/8) bytes, bit i set means row i is null
	NullMask []byte `json:"null_mask,omitempty"`

	// Values holds the encoded values of all rows, null rows as placeholders
	Values []byte `json:"values,omitempty"`
}

// EncodedRequest is the fully encoded form of a write (or control) request.
// Columns are positional, their order matches the row batch declaration order.
type EncodedRequest struct {
	Kind     RequestKind     `json:"kind"`
	Database string          `json:"database"`
	Table    string          `json:"table,omitempty"`
	RowCount uint32          `json:"row_count"`
	Columns  []EncodedColumn `json:"columns,omitempty"`
}

// NewHealthCheckRequest creates a request that only checks that a node answers
func NewHealthCheckRequest(database string) *EncodedRequest {
	return &EncodedRequest{
		Kind:     KindHealthCheck,
		Database: database,
	}
}

// --------------------------------------------------------------------------
// Response Structure
// --------------------------------------------------------------------------

// Response is the acknowledgment a node sends for every request.
type Response struct {
	Kind         RequestKind `json:"kind"`
	AffectedRows uint32      `json:"affected_rows"`
	Code         StatusCode  `json:"code"`
	Err          string      `json:"err,omitempty"` // empty if Code is StatusOK
}

// NewResponse creates a successful response
func NewResponse(kind RequestKind, affectedRows uint32) *Response {
	return &Response{
		Kind:         kind,
		AffectedRows: affectedRows,
		Code:         StatusOK,
	}
}

// NewErrorResponse creates a response carrying an application level error
func NewErrorResponse(kind RequestKind, code StatusCode, err error) *Response {
	resp := &Response{
		Kind: kind,
		Code: code,
	}
	if err != nil {
		resp.Err = err.Error()
	}
	return resp
}

// --------------------------------------------------------------------------
// Request Kind
// --------------------------------------------------------------------------

// RequestKind selects the operation of a request
type RequestKind uint8

const (
	KindUnknown     RequestKind = iota
	KindInsert                  // Insert the rows of a batch
	KindDelete                  // Delete the rows matching the key columns
	KindHealthCheck             // Check that a node answers
)

// String returns a string representation of the request kind
func (k RequestKind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	case KindHealthCheck:
		return "health"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for RequestKind.
func (k RequestKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for RequestKind.
func (k *RequestKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "insert":
		*k = KindInsert
	case "delete":
		*k = KindDelete
	case "health":
		*k = KindHealthCheck
	case "unknown":
		*k = KindUnknown
	default:
		return fmt.Errorf("unknown request kind: %s", s)
	}
	return nil
}

// --------------------------------------------------------------------------
// Status Codes
// --------------------------------------------------------------------------

// StatusCode is the application level result code of a response
type StatusCode uint32

const (
	StatusOK              StatusCode = 0
	StatusInvalidRequest  StatusCode = 1 // request could not be decoded
	StatusUnknownDatabase StatusCode = 2
	StatusTableNotFound   StatusCode = 3
	StatusSchemaMismatch  StatusCode = 4 // column types differ from the table schema
	StatusInternal        StatusCode = 5
	StatusUnsupported     StatusCode = 6
)

// String returns a string representation of the status code
func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusInvalidRequest:
		return "invalid request"
	case StatusUnknownDatabase:
		return "unknown database"
	case StatusTableNotFound:
		return "table not found"
	case StatusSchemaMismatch:
		return "schema mismatch"
	case StatusInternal:
		return "internal error"
	case StatusUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("status(%d)", uint32(c))
	}
}
