// Package util provides utility functions shared by the storage engines and
// the command line tools.
//
// The package contains:
//   - functions: Seeded xxhash hashing of row values, value equality
//   - statistics: Descriptive statistics and percentiles, used for the shard
//     distribution of the memory engine and the latency report of `drow db perf`
package util
