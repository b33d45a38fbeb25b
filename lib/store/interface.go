package store

import (
	"fmt"

	"github.com/ValentinKolb/dRow/lib/db"
	"github.com/ValentinKolb/dRow/lib/rows"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates the table database of one logical
// database served by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func(database string) (db.TableDB, error)

// IStore is the generic interface for interacting with the tables of a set of
// logical databases. Every method returns a *Error (nil on success).
type IStore interface {
	// Insert appends all rows of the batch to its table. The first batch written
	// to a table (or a declared schema) fixes the schema of the table, later batches
	// may only use columns of that schema with the same data and semantic type.
	Insert(database string, batch *rows.RowBatch) (affected uint32, err error)
	// Delete removes every row of table whose key columns equal one of the key
	// tuples in keys. The key columns must exist in the table schema.
	Delete(database, table string, keys *rows.RowBatch) (affected uint32, err error)
	// DeclareTable registers the schema of a table before any row is written.
	// Declaring the same schema twice is a no-op.
	DeclareTable(database, table string, schemas []rows.ColumnSchema) (err error)
	// Schema returns the registered schema of a table. The boolean return value
	// indicates whether the table is known.
	Schema(database, table string) (schemas []rows.ColumnSchema, loaded bool, err error)
	// Count returns the number of rows stored in a table.
	Count(database, table string) (n int, err error)
	// HasDatabase reports whether the database is served by the store.
	HasDatabase(database string) bool
	// Databases returns the names of all served databases in sorted order.
	Databases() []string
	// GetDBInfo returns metadata about the table database underlying a database.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo(database string) (info db.DatabaseInfo, err error)
	// Close closes all underlying table databases.
	Close() error
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new StoreError with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCUnknownDatabase                     // 4: The database is not served by the store.
	RetCTableNotFound                       // 5: The table has no registered schema.
	RetCSchemaMismatch                      // 6: A column does not match the registered schema.
)

// String returns the name of the return code
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCUnknownDatabase:
		return "UnknownDatabase"
	case RetCTableNotFound:
		return "TableNotFound"
	case RetCSchemaMismatch:
		return "SchemaMismatch"
	default:
		return "Unknown"
	}
}
