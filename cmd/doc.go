// Package cmd implements the command-line interface of dRow. It provides a
// hierarchical command structure with operations for running a reference node
// and for writing rows to a set of nodes as a client.
//
// The package is organized into several subpackages:
//
//   - db: Client commands (insert, delete, health, perf)
//   - serve: Command for starting and configuring a reference node
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See drow -help for a list of all commands.
package cmd
