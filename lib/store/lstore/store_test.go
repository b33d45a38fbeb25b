package lstore

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ValentinKolb/dRow/lib/db"
	"github.com/ValentinKolb/dRow/lib/db/engines/memory"
	"github.com/ValentinKolb/dRow/lib/db/engines/sqlite"
	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/lib/store"
	"github.com/stretchr/testify/require"
)

func memoryFactory(string) (db.TableDB, error) {
	return memory.NewMemoryDB(nil), nil
}

func newStore(t *testing.T, databases ...string) store.IStore {
	t.Helper()
	s, err := NewLocalStore(memoryFactory, databases...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func cpuBatch(t *testing.T, hosts ...string) *rows.RowBatch {
	t.Helper()
	b := rows.NewBuilder("cpu",
		rows.Timestamp("ts", rows.TimestampMillisecond),
		rows.Tag("host", rows.String),
		rows.Field("usage", rows.Float64),
	)
	for i, host := range hosts {
		require.NoError(t, b.AddRow(int64(i), host, float64(i)))
	}
	batch, err := b.Build()
	require.NoError(t, err)
	return batch
}

func hostKeys(t *testing.T, dataType rows.ColumnDataType, hosts ...any) *rows.RowBatch {
	t.Helper()
	keys, err := rows.NewRowBatch("cpu", []rows.ColumnSchema{rows.Tag("host", dataType)}, [][]any{hosts})
	require.NoError(t, err)
	return keys
}

func requireCode(t *testing.T, err error, code store.RetCode) {
	t.Helper()
	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr), "expected a store error, got %v", err)
	require.Equal(t, code, storeErr.Code, storeErr.Msg)
}

func TestInsertAndDelete(t *testing.T) {
	s := newStore(t, "metrics")

	n, err := s.Insert("metrics", cpuBatch(t, "a", "b", "a"))
	require.NoError(t, err)
	require.Equal(t, uint32(3), n)

	count, err := s.Count("metrics", "cpu")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	n, err = s.Delete("metrics", "cpu", hostKeys(t, rows.String, "a"))
	require.NoError(t, err)
	require.Equal(t, uint32(2), n)

	count, err = s.Count("metrics", "cpu")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestUnknownDatabase(t *testing.T) {
	s := newStore(t, "metrics")

	require.False(t, s.HasDatabase("other"))

	_, err := s.Insert("other", cpuBatch(t, "a"))
	requireCode(t, err, store.RetCUnknownDatabase)

	_, err = s.Delete("other", "cpu", hostKeys(t, rows.String, "a"))
	requireCode(t, err, store.RetCUnknownDatabase)

	_, err = s.GetDBInfo("other")
	requireCode(t, err, store.RetCUnknownDatabase)
}

func TestSchemaRegistration(t *testing.T) {
	s := newStore(t, "metrics")

	_, ok, err := s.Schema("metrics", "cpu")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Insert("metrics", cpuBatch(t, "a"))
	require.NoError(t, err)

	schemas, ok, err := s.Schema("metrics", "cpu")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cpuBatch(t).Schemas(), schemas)

	// a subset of the columns is accepted
	b := rows.NewBuilder("cpu", rows.Timestamp("ts", rows.TimestampMillisecond), rows.Tag("host", rows.String))
	require.NoError(t, b.AddRow(int64(10), "c"))
	subset, err := b.Build()
	require.NoError(t, err)
	_, err = s.Insert("metrics", subset)
	require.NoError(t, err)

	// a different data type is rejected
	b = rows.NewBuilder("cpu", rows.Timestamp("ts", rows.TimestampMillisecond), rows.Tag("host", rows.Int64))
	require.NoError(t, b.AddRow(int64(10), int64(1)))
	mismatch, err := b.Build()
	require.NoError(t, err)
	_, err = s.Insert("metrics", mismatch)
	requireCode(t, err, store.RetCSchemaMismatch)

	// an unknown column is rejected
	b = rows.NewBuilder("cpu", rows.Timestamp("ts", rows.TimestampMillisecond), rows.Field("temp", rows.Float64))
	require.NoError(t, b.AddRow(int64(10), 1.5))
	extra, err := b.Build()
	require.NoError(t, err)
	_, err = s.Insert("metrics", extra)
	requireCode(t, err, store.RetCSchemaMismatch)

	count, err := s.Count("metrics", "cpu")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

// failingInserts is an engine whose inserts always fail
type failingInserts struct {
	db.TableDB
}

func (failingInserts) Insert(*rows.RowBatch) (uint32, error) {
	return 0, errors.New("disk full")
}

func TestFailedFirstInsertKeepsTableUnregistered(t *testing.T) {
	s, err := NewLocalStore(func(string) (db.TableDB, error) {
		return failingInserts{memory.NewMemoryDB(nil)}, nil
	}, "metrics")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Insert("metrics", cpuBatch(t, "a"))
	requireCode(t, err, store.RetCInternalError)

	_, ok, err := s.Schema("metrics", "cpu")
	require.NoError(t, err)
	require.False(t, ok)

	// a later batch with another schema may still claim the table
	b := rows.NewBuilder("cpu", rows.Timestamp("ts", rows.TimestampMillisecond), rows.Tag("host", rows.Int64))
	require.NoError(t, b.AddRow(int64(10), int64(1)))
	other, err := b.Build()
	require.NoError(t, err)
	_, err = s.Insert("metrics", other)
	requireCode(t, err, store.RetCInternalError)

	schemas, ok, err := s.Schema("metrics", "cpu")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, schemas)
}

func TestInsertWithoutTimestamp(t *testing.T) {
	s := newStore(t, "metrics")

	batch, err := rows.NewRowBatch("cpu", []rows.ColumnSchema{rows.Tag("host", rows.String)}, [][]any{{"a"}})
	require.NoError(t, err)

	_, err = s.Insert("metrics", batch)
	requireCode(t, err, store.RetCInvalidOperation)
}

func TestDeleteChecks(t *testing.T) {
	s := newStore(t, "metrics")

	_, err := s.Delete("metrics", "cpu", hostKeys(t, rows.String, "a"))
	requireCode(t, err, store.RetCTableNotFound)

	_, err = s.Insert("metrics", cpuBatch(t, "a"))
	require.NoError(t, err)

	_, err = s.Delete("metrics", "cpu", hostKeys(t, rows.Int32, int32(1)))
	requireCode(t, err, store.RetCSchemaMismatch)

	unknown, err := rows.NewRowBatch("cpu", []rows.ColumnSchema{rows.Tag("region", rows.String)}, [][]any{{"eu"}})
	require.NoError(t, err)
	_, err = s.Delete("metrics", "cpu", unknown)
	requireCode(t, err, store.RetCSchemaMismatch)

	_, err = s.Delete("metrics", "mem", hostKeys(t, rows.String, "a"))
	requireCode(t, err, store.RetCInvalidOperation)
}

func TestDeclareTable(t *testing.T) {
	s := newStore(t, "metrics")
	schemas := cpuBatch(t).Schemas()

	require.NoError(t, s.DeclareTable("metrics", "cpu", schemas))
	require.NoError(t, s.DeclareTable("metrics", "cpu", schemas))

	err := s.DeclareTable("metrics", "cpu", schemas[:2])
	requireCode(t, err, store.RetCSchemaMismatch)

	err = s.DeclareTable("metrics", "mem", []rows.ColumnSchema{rows.Field("value", rows.Float64)})
	requireCode(t, err, store.RetCInvalidOperation)

	// a declared table can be deleted from before any insert
	n, err := s.Delete("metrics", "cpu", hostKeys(t, rows.String, "a"))
	require.NoError(t, err)
	require.Equal(t, uint32(0), n)
}

func TestDatabases(t *testing.T) {
	s := newStore(t, "b", "a", "b")
	require.Equal(t, []string{"a", "b"}, s.Databases())

	_, err := NewLocalStore(memoryFactory)
	require.Error(t, err)

	_, err = NewLocalStore(memoryFactory, "")
	require.Error(t, err)

	_, err = NewLocalStore(func(string) (db.TableDB, error) {
		return nil, errors.New("boom")
	}, "a")
	require.Error(t, err)
}

func TestConcurrentFirstInsert(t *testing.T) {
	s := newStore(t, "metrics")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	batch := cpuBatch(t, "a", "b")
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Insert("metrics", batch); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent insert failed: %v", err)
	}
	count, err := s.Count("metrics", "cpu")
	require.NoError(t, err)
	require.Equal(t, 32, count)
}

func TestSQLiteRestart(t *testing.T) {
	dir := t.TempDir()
	factory := func(name string) (db.TableDB, error) {
		return sqlite.NewSQLiteDB(sqlite.DBOptions{Path: filepath.Join(dir, name+".db")})
	}

	s, err := NewLocalStore(factory, "metrics")
	require.NoError(t, err)
	_, err = s.Insert("metrics", cpuBatch(t, "a", "b"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewLocalStore(factory, "metrics")
	require.NoError(t, err)
	defer reopened.Close()

	// the table is known to the engine only
	n, err := reopened.Delete("metrics", "cpu", hostKeys(t, rows.String, "a"))
	require.NoError(t, err)
	require.Equal(t, uint32(1), n)

	info, err := reopened.GetDBInfo("metrics")
	require.NoError(t, err)
	require.Equal(t, db.ImplSQLite, info.DbType)
}
