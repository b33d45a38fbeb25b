package db

import (
	"github.com/ValentinKolb/dRow/lib/rows"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemory Implementation = "memory"
	ImplSQLite Implementation = "sqlite"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureInsert     Feature = 1 << iota // Support for Insert operations
	FeatureDelete                         // Support for Delete operations
	FeatureCount                          // Support for Count operations
	FeaturePersistent                     // Rows survive a restart of the process
)

func (f Feature) String() string {
	switch f {
	case FeatureInsert:
		return "Insert"
	case FeatureDelete:
		return "Delete"
	case FeatureCount:
		return "Count"
	case FeaturePersistent:
		return "Persistent"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	Tables            int            `json:"tables"`
	Rows              int            `json:"rows"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// TableDB defines an interface for row storage engines. A TableDB stores the
// rows of any number of tables. It does not validate schemas: all batches
// written to the same table are expected to carry the same column schemas, the
// caller (see lib/store) enforces this.
type TableDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Insert appends all rows of batch to the table of the batch. The table is
	// created on the first insert. It returns the number of rows written.
	Insert(batch *rows.RowBatch) (affected uint32, err error)

	// Delete removes every row of the table of keys whose values in the key
	// columns equal one row of keys. Only the columns of keys are compared, a
	// null matches a null. Deleting from an unknown table removes nothing.
	Delete(keys *rows.RowBatch) (affected uint32, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Count returns the number of rows stored for table
	Count(table string) (n int, err error)

	// Tables returns the names of all tables, sorted
	Tables() (tables []string)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
