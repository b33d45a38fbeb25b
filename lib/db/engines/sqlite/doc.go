// Package sqlite implements a persistent table database (db.TableDB) on top of
// sqlite, using the github.com/mattn/go-sqlite3 driver.
//
// Every dRow table is stored in a sqlite table of the same name, created on
// the first insert from the column schemas of the batch. Integer, boolean and
// timestamp columns are stored as INTEGER, floats as REAL, strings as TEXT and
// binary values as BLOB. Deletes compare the key columns with IS, so null keys
// match null values.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Writes are serialized since
//	sqlite allows a single writer.
package sqlite
