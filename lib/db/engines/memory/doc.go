// Package memory implements an in-memory table database (db.TableDB). It is the
// default engine of the dRow reference node.
//
// The package focuses on:
//   - Concurrent inserts through per-table sharding
//   - Exact key matching for deletes, including null keys
//
// Key Components:
//
//   - memoryImpl: Implements db.TableDB. Tables are created on their first
//     insert and kept in an xsync.MapOf. Each table stores its rows in
//     column declaration order.
//
//   - Shards: Every table is split into a fixed number of shards, each guarded by
//     its own lock. A row is placed in the shard selected by the seeded xxhash of
//     its values, GetInfo reports the resulting distribution per table.
//
//   - Deletes: The key rows of a delete request are indexed by the hash of their
//     values. Every stored row is hashed over the key columns and compared exactly
//     with the candidates of its hash bucket.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Inserts into different shards do
//	not block each other. Rows are not persisted.
package memory
