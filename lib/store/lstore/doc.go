// Package lstore implements a local, single-node table store based on the
// store.IStore interface. It provides a thin wrapper around any db.TableDB
// implementation and adds a schema registry per database.
//
// Key Features:
//   - One db.TableDB per served database, created through a store.DBFactory
//   - Schema registration on the first insert or through DeclareTable
//   - Feature detection to handle unsupported operations gracefully
//   - Thread-safe operations for concurrent access
//
// Implementation Details:
//
//   - Schema Registry: The schemas of all tables of a database are kept in an
//     xsync.MapOf. The first batch written to a table registers its schema
//     atomically, concurrent first writers with different schemas are checked
//     against the winner. A batch may leave out columns of the registered schema,
//     but every column it carries must match by name, data type and role.
//
//   - Delete Keys: The key columns of a delete must exist in the table schema with
//     the same data type. Tables that only exist in a persistent engine (after a
//     restart) are deleted from without a schema check.
//
//   - Feature Detection: Before executing operations, the store checks if the
//     underlying db.TableDB supports the requested feature through the
//     SupportsFeature method. Unsupported operations return
//     RetCUnsupportedOperation rather than failing silently.
//
// Thread Safety:
//
//	All operations in the local store are thread-safe. The set of databases is
//	fixed at construction, the schema registry is a concurrent map and the
//	underlying db.TableDB implementations provide their own thread safety.
package lstore
