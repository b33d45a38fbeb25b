// Package testing provides standardised tests and benchmarks for
// table engines that satisfy the db.TableDB interface.
//
// The package contains:
//   - testing: A conformance suite for the TableDB contract (insert, delete with
//     null keys, all data types, concurrent writers)
//   - benchmark: Throughput tests for inserts, deletes and mixed usage
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.TableDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunTableDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunTableDBBenchmarks(b, "MyDatabase", factory)
package testing
