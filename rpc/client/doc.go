// Package client implements the dRow database client. It turns row batches into
// encoded requests, picks a node per request and returns the acknowledged row
// count or a typed failure.
//
// The package focuses on:
//   - One pooled, multiplexed channel per node, created lazily and replaced after it broke
//   - Bounded failover: a request is tried on every node at most once
//   - Integration with the encoder, serialization and transport layers
//
// Key Components:
//
//   - Database: The client facade. Binds a database name and a node list to a
//     ChannelPool and a Dispatcher and exposes Insert, Delete and HealthCheck.
//
//   - ChannelPool: Holds at most one Channel per node address. Concurrent callers
//     for the same address share one connection attempt.
//
//   - Dispatcher: Sends a request to the node selected by the LoadBalancer and
//     fails over to the next node on transport errors. Node rejections are
//     returned immediately.
//
//   - LoadBalancer: Picks the first node of a request (round-robin with a random
//     start, random, or key-hash on the table name).
//
//   - StreamInserter: Writes a stream of batches in the background.
//
// Usage Example:
//
//	config := common.DefaultClientConfig()
//	config.Endpoints = []string{"node-1:8080", "node-2:8080", "node-3:8080"}
//
//	db, _ := client.NewDatabase(config, tcp.NewTCPClientConnector(), serializer.NewBinarySerializer())
//	defer db.Close()
//
//	b := rows.NewBuilder("cpu", rows.Timestamp("ts", rows.TimestampMillisecond), rows.Field("usage", rows.Float64))
//	_ = b.AddRow(int64(1700000000000), 0.42)
//	batch, _ := b.Build()
//
//	affected, err := db.Insert(ctx, batch)
//
// Thread Safety:
//
//	Database, ChannelPool and Dispatcher are safe for concurrent use. A
//	StreamInserter may be fed from multiple goroutines.
package client
