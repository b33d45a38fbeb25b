// Package encoder turns row batches into the positional wire representation
// of write requests and back.
//
// Every column is encoded as a schema descriptor (name, data type code,
// semantic type code), a null mask of ceil(rows/8) bytes (bit i set means row
// i is null, least significant bit first) and a values section. Fixed width
// types are written little endian, booleans as a single byte and strings or
// binaries as a uvarint length followed by the bytes. Null rows keep their
// position with a zero placeholder, so a reader can always locate row i.
//
// Encoding never performs I/O and is deterministic: the same batch always
// yields the same request.
package encoder
