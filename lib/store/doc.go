// Package store provides a high-level interface for table storage operations
// across several logical databases, with schema enforcement and unified error
// handling. It serves as an abstraction layer over the lower-level db.TableDB
// implementations.
//
// The package focuses on:
//   - A unified interface (IStore) for insert and delete operations across different backends
//   - Pluggable storage backend architecture through the DBFactory pattern
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations on the tables of
//     the served databases. Requests for a database the store does not serve fail
//     with RetCUnknownDatabase, writes that do not fit the registered table schema
//     fail with RetCSchemaMismatch.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages. The RPC server maps the codes to the status codes
//     of its responses.
//
//   - DBFactory: A function type that creates the db.TableDB of one database,
//     providing dependency injection and flexible configuration of storage backends
//     (for example one sqlite file per database).
//
// Implementations:
//
//	The package includes a local implementation of the IStore interface in the
//	"github.com/ValentinKolb/dRow/lib/store/lstore" package. It keeps one
//	db.TableDB per database and a concurrent schema registry per table.
package store
