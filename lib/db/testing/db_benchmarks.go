package testing

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dRow/lib/db"
	"github.com/ValentinKolb/dRow/lib/rows"
)

// RunTableDBBenchmarks runs all benchmarks for a table database implementation
func RunTableDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("InsertSmallBatch", func(b *testing.B) {
			benchmarkInsert(b, factory(), 10)
		})

		b.Run("InsertLargeBatch", func(b *testing.B) {
			benchmarkInsert(b, factory(), 1000)
		})

		b.Run("Delete", func(b *testing.B) {
			benchmarkDelete(b, factory())
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkInsert(b *testing.B, database db.TableDB, batchSize int) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	batch := metricBatch(b, "cpu", batchSize, "a", "b", "c", "d")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := database.Insert(batch); err != nil {
				b.Errorf("Insert failed: %v", err)
				return
			}
		}
	})
	b.ReportMetric(float64(batchSize), "rows/op")
}

func benchmarkDelete(b *testing.B, database db.TableDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureDelete)

	hosts := make([]string, 100)
	for i := range hosts {
		hosts[i] = fmt.Sprintf("host-%d", i)
	}
	if _, err := database.Insert(metricBatch(b, "cpu", 10_000, hosts...)); err != nil {
		b.Fatalf("Insert failed: %v", err)
	}

	keys := make([]*rows.RowBatch, len(hosts))
	for i, host := range hosts {
		keys[i] = hostKeys(b, "cpu", host)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.Delete(keys[i%len(keys)]); err != nil {
			b.Fatalf("Delete failed: %v", err)
		}
	}
}

func benchmarkMixedUsage(b *testing.B, database db.TableDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureDelete|db.FeatureCount)

	insert := metricBatch(b, "cpu", 100, "a", "b", "c", "d")
	keys := hostKeys(b, "cpu", "a")

	var counter atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			var err error
			switch counter.Add(1) % 10 {
			case 0:
				_, err = database.Delete(keys)
			case 1, 2:
				_, err = database.Count("cpu")
			default:
				_, err = database.Insert(insert)
			}
			if err != nil {
				b.Errorf("Operation failed: %v", err)
				return
			}
		}
	})
}
