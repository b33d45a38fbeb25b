package serializer

import (
	"testing"

	"github.com/ValentinKolb/dRow/rpc/common"
)

// benchmarkRequests returns a set of requests for targeted benchmarking
func benchmarkRequests() map[string]*common.EncodedRequest {
	column := func(name string, rows int) common.EncodedColumn {
		return common.EncodedColumn{
			Name:     name,
			DataType: 4,
			Semantic: 2,
			NullMask: make([]byte, (rows+7)/8),
			Values:   make([]byte, 8*rows),
		}
	}

	wide := &common.EncodedRequest{Kind: common.KindInsert, Database: "public", Table: "wide", RowCount: 100}
	for i := 0; i < 64; i++ {
		wide.Columns = append(wide.Columns, column("field_"+string(rune('a'+i%26))+string(rune('a'+i/26)), 100))
	}

	return map[string]*common.EncodedRequest{
		"HealthCheck": common.NewHealthCheckRequest("public"),
		"SmallBatch": {
			Kind: common.KindInsert, Database: "public", Table: "cpu", RowCount: 10,
			Columns: []common.EncodedColumn{column("ts", 10), column("v", 10)},
		},
		"LargeBatch": {
			Kind: common.KindInsert, Database: "public", Table: "cpu", RowCount: 10_000,
			Columns: []common.EncodedColumn{column("ts", 10_000), column("v", 10_000)},
		},
		"WideBatch": wide,
	}
}

// BenchmarkSerializeRequest benchmarks serialization for all implementations with various requests
func BenchmarkSerializeRequest(b *testing.B) {
	requests := benchmarkRequests()

	for name, factory := range testSerializers {
		for reqName, req := range requests {
			b.Run(name+"_"+reqName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := serializer.SerializeRequest(req); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserializeRequest benchmarks deserialization for all implementations with various requests
func BenchmarkDeserializeRequest(b *testing.B) {
	requests := benchmarkRequests()

	for name, factory := range testSerializers {
		for reqName, req := range requests {
			b.Run(name+"_"+reqName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.SerializeRequest(req)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ReportMetric(float64(len(data)), "bytes")
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var decoded common.EncodedRequest
					if err := serializer.DeserializeRequest(data, &decoded); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}
