// Package serializer provides envelope serialization for the dRow RPC system.
// It defines a common interface and multiple implementations for turning
// encoded requests and node responses into bytes and back.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - A compact, deterministic binary format for production use
//   - A human-readable format for debugging
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Writes the protobuf wire format with
//     google.golang.org/protobuf/encoding/protowire. Fields are written in field
//     number order and zero values are skipped, so equal requests produce
//     byte-identical output. Unknown fields are skipped when reading.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems, but with lower performance.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  serializer := serializer.NewBinarySerializer()
//	  data, err := serializer.SerializeRequest(req)
//	  // ... send data ...
//	  var resp common.Response
//	  err = serializer.DeserializeResponse(receivedData, &resp)
package serializer
