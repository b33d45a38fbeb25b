package testing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dRow/lib/db"
	"github.com/ValentinKolb/dRow/lib/rows"
)

// DBFactory is a function that creates a new instance of a TableDB implementation
type DBFactory func() db.TableDB

// RunTableDBTests runs a comprehensive test suite for a TableDB implementation.
func RunTableDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("InsertCount", func(t *testing.T) {
			testInsertCount(t, factory())
		})

		t.Run("EmptyBatch", func(t *testing.T) {
			testEmptyBatch(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("DeleteNullKeys", func(t *testing.T) {
			testDeleteNullKeys(t, factory())
		})

		t.Run("DeleteUnknownTable", func(t *testing.T) {
			testDeleteUnknownTable(t, factory())
		})

		t.Run("AllTypes", func(t *testing.T) {
			testAllTypes(t, factory())
		})

		t.Run("Tables", func(t *testing.T) {
			testTables(t, factory())
		})

		t.Run("ConcurrentInsert", func(t *testing.T) {
			testConcurrentInsert(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.TableDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

var metricSchemas = []rows.ColumnSchema{
	rows.Timestamp("ts", rows.TimestampMillisecond),
	rows.Tag("host", rows.String),
	rows.Field("value", rows.Float64),
}

// metricBatch creates a batch of n rows, the host cycles through hosts
func metricBatch(t testing.TB, table string, n int, hosts ...string) *rows.RowBatch {
	t.Helper()
	b := rows.NewBuilder(table, metricSchemas...)
	for i := 0; i < n; i++ {
		if err := b.AddRow(int64(1000*i), hosts[i%len(hosts)], float64(i)); err != nil {
			t.Fatalf("Failed to add row: %v", err)
		}
	}
	batch, err := b.Build()
	if err != nil {
		t.Fatalf("Failed to build batch: %v", err)
	}
	return batch
}

func hostKeys(t testing.TB, table string, hosts ...any) *rows.RowBatch {
	t.Helper()
	batch, err := rows.NewRowBatch(table, []rows.ColumnSchema{rows.Tag("host", rows.String)}, [][]any{hosts})
	if err != nil {
		t.Fatalf("Failed to build key batch: %v", err)
	}
	return batch
}

func expectCount(t testing.TB, database db.TableDB, table string, expected int) {
	t.Helper()
	n, err := database.Count(table)
	if err != nil {
		t.Fatalf("Count(%q) failed: %v", table, err)
	}
	if n != expected {
		t.Errorf("Expected %d rows in %q, got %d", expected, table, n)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertCount(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureCount)

	n, err := database.Insert(metricBatch(t, "cpu", 10, "a", "b"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if n != 10 {
		t.Errorf("Expected 10 affected rows, got %d", n)
	}
	expectCount(t, database, "cpu", 10)

	n, err = database.Insert(metricBatch(t, "cpu", 5, "c"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Expected 5 affected rows, got %d", n)
	}
	expectCount(t, database, "cpu", 15)
	expectCount(t, database, "nonexistent", 0)
}

func testEmptyBatch(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureCount)

	batch, err := rows.NewBuilder("empty", metricSchemas...).Build()
	if err != nil {
		t.Fatalf("Failed to build batch: %v", err)
	}

	n, err := database.Insert(batch)
	if err != nil {
		t.Fatalf("Insert of empty batch failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 affected rows, got %d", n)
	}
	expectCount(t, database, "empty", 0)
}

func testDelete(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeatureCount)

	if _, err := database.Insert(metricBatch(t, "cpu", 9, "a", "b", "c")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	n, err := database.Delete(hostKeys(t, "cpu", "a", "c", "unknown"))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 6 {
		t.Errorf("Expected 6 deleted rows, got %d", n)
	}
	expectCount(t, database, "cpu", 3)

	// deleting again removes nothing
	n, err = database.Delete(hostKeys(t, "cpu", "a"))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 deleted rows, got %d", n)
	}
}

func testDeleteNullKeys(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeatureCount)

	b := rows.NewBuilder("cpu", metricSchemas...)
	_ = b.AddRow(int64(1), "a", 1.0)
	_ = b.AddRow(int64(2), nil, 2.0)
	_ = b.AddRow(int64(3), nil, nil)
	batch, err := b.Build()
	if err != nil {
		t.Fatalf("Failed to build batch: %v", err)
	}
	if _, err := database.Insert(batch); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	n, err := database.Delete(hostKeys(t, "cpu", nil))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 deleted rows, got %d", n)
	}
	expectCount(t, database, "cpu", 1)
}

func testDeleteUnknownTable(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureDelete)

	n, err := database.Delete(hostKeys(t, "nonexistent", "a"))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 deleted rows, got %d", n)
	}
}

func testAllTypes(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeatureCount)

	schemas := []rows.ColumnSchema{
		rows.Timestamp("ts", rows.TimestampNanosecond),
		rows.Tag("i8", rows.Int8),
		rows.Tag("i16", rows.Int16),
		rows.Tag("i32", rows.Int32),
		rows.Tag("i64", rows.Int64),
		rows.Tag("u8", rows.Uint8),
		rows.Tag("u16", rows.Uint16),
		rows.Tag("u32", rows.Uint32),
		rows.Tag("u64", rows.Uint64),
		rows.Tag("f32", rows.Float32),
		rows.Tag("f64", rows.Float64),
		rows.Tag("b", rows.Boolean),
		rows.Tag("s", rows.String),
		rows.Tag("bin", rows.Binary),
	}
	row := []any{
		int64(1), int8(-8), int16(-16), int32(-32), int64(-64),
		uint8(8), uint16(16), uint32(32), uint64(1 << 63),
		float32(3.5), 6.25, true, "str", []byte{0, 1, 2},
	}

	b := rows.NewBuilder("types", schemas...)
	if err := b.AddRow(row...); err != nil {
		t.Fatalf("Failed to add row: %v", err)
	}
	batch, err := b.Build()
	if err != nil {
		t.Fatalf("Failed to build batch: %v", err)
	}
	if _, err := database.Insert(batch); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// every column must match its own value exactly
	names := make([]string, 0, len(schemas)-1)
	for _, schema := range schemas[1:] {
		names = append(names, schema.Name)
	}
	keys, err := batch.Project(names)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}

	n, err := database.Delete(keys)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 deleted row, got %d", n)
	}
	expectCount(t, database, "types", 0)
}

func testTables(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert)

	for _, table := range []string{"mem", "cpu", "disk"} {
		if _, err := database.Insert(metricBatch(t, table, 1, "a")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	tables := database.Tables()
	expected := []string{"cpu", "disk", "mem"}
	if fmt.Sprint(tables) != fmt.Sprint(expected) {
		t.Errorf("Expected tables %v, got %v", expected, tables)
	}
}

func testConcurrentInsert(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureCount)

	const (
		workers = 8
		batches = 20
		size    = 50
	)

	// batches are built up front, t.Fatalf must not be called from a worker
	perWorker := make([]*rows.RowBatch, workers)
	for w := range perWorker {
		perWorker[w] = metricBatch(t, "cpu", size, fmt.Sprintf("host-%d", w))
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers*batches)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(batch *rows.RowBatch) {
			defer wg.Done()
			for i := 0; i < batches; i++ {
				if _, err := database.Insert(batch); err != nil {
					errs <- err
				}
			}
		}(perWorker[w])
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent insert failed: %v", err)
	}
	expectCount(t, database, "cpu", workers*batches*size)
}

func testInfo(t *testing.T, database db.TableDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert)

	if _, err := database.Insert(metricBatch(t, "cpu", 4, "a")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := database.Insert(metricBatch(t, "mem", 2, "a")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	info := database.GetInfo()
	if info.Tables != 2 {
		t.Errorf("Expected 2 tables, got %d", info.Tables)
	}
	if info.Rows != 6 {
		t.Errorf("Expected 6 rows, got %d", info.Rows)
	}
	if info.DbType == "" {
		t.Errorf("Expected a db type")
	}
	for _, feature := range info.SupportedFeatures {
		if !database.SupportsFeature(feature) {
			t.Errorf("Reported feature %s is not supported", feature)
		}
	}
}
