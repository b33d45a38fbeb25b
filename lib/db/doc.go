// Package db provides a standardized interface for row storage engines.
// It defines the TableDB interface that allows for consistent interaction
// with various storage backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for writing batches of typed rows
//   - Feature discovery through capability flags
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - TableDB Interface: The core interface that all engines must satisfy.
//     It provides methods for the write operations (Insert, Delete), simple
//     queries (Count, Tables), metadata retrieval (GetInfo) and Close.
//
//   - Feature Flags: The Feature type defines capability flags that engines
//     can advertise through the SupportsFeature method. This allows callers to
//     discover supported operations at runtime.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for the available engines ("memory", "sqlite").
//
//   - Database Information: The DatabaseInfo structure reports the number of
//     tables and rows, the engine type and engine specific metadata.
//
// Note on Schemas:
//   - Engines do not validate schemas. All batches written to one table are
//     expected to carry the same column schemas, lib/store enforces this.
//   - Delete compares only the columns of the key batch. A null key value
//     matches a null, deleting from an unknown table removes nothing.
//
// Related Packages:
//
// The engines/memory package keeps all rows in memory, every table is split into
// shards selected by the hash of the row. The engines/sqlite package stores every
// table in a sqlite table and survives restarts.
//
// The testing package (github.com/ValentinKolb/dRow/lib/db/testing) provides
// standardized tests and benchmarks for engines that satisfy db.TableDB.
//   - RunTableDBTests: Runs a standardized test suite to validate implementations
//   - RunTableDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
