package memory

import (
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dRow/lib/db"
	"github.com/ValentinKolb/dRow/lib/db/util"
	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Core structures
// --------------------------------------------------------------------------

// memoryImpl keeps all rows in memory. Every table is split into shards,
// a row is placed in the shard selected by the hash of its values.
type memoryImpl struct {
	numShards int
	seed      uint64
	tables    *xsync.MapOf[string, *table]
	rowCount  atomic.Int64
	closed    atomic.Bool
}

// table holds the rows of one table in column declaration order
type table struct {
	name    string
	schemas []rows.ColumnSchema
	shards  []*shard
}

type shard struct {
	mu   sync.RWMutex
	rows [][]any
}

// DBOptions configures the memory engine
type DBOptions struct {
	NumShards int // Number of shards per table (0 = number of CPUs)
}

// DefaultOptions returns the default options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMemoryDB creates a new in-memory table database with the specified options (optional)
func NewMemoryDB(opts *DBOptions) db.TableDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = runtime.NumCPU()
	}

	return &memoryImpl{
		numShards: numShards,
		seed:      util.GenerateSeed(),
		tables:    xsync.NewMapOf[string, *table](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.TableDB)
// --------------------------------------------------------------------------

func (m *memoryImpl) Insert(batch *rows.RowBatch) (uint32, error) {
	if m.closed.Load() {
		return 0, fmt.Errorf("database is closed")
	}

	t, _ := m.tables.LoadOrCompute(batch.Table(), func() *table {
		return m.newTable(batch.Table(), batch.Schemas())
	})

	// map the batch columns to the positions of the table
	positions := make([]int, batch.NumColumns())
	for i, schema := range batch.Schemas() {
		positions[i] = slices.IndexFunc(t.schemas, func(s rows.ColumnSchema) bool { return s.Name == schema.Name })
		if positions[i] < 0 {
			return 0, fmt.Errorf("table %q has no column %q", t.name, schema.Name)
		}
	}

	columns := batch.Columns()
	for r := 0; r < batch.RowCount(); r++ {
		row := make([]any, len(t.schemas))
		for i, col := range columns {
			row[positions[i]] = col.Values[r]
		}

		s := t.shards[util.HashValues(row, m.seed)%uint64(len(t.shards))]
		s.mu.Lock()
		s.rows = append(s.rows, row)
		s.mu.Unlock()
	}

	m.rowCount.Add(int64(batch.RowCount()))
	return uint32(batch.RowCount()), nil
}

func (m *memoryImpl) Delete(keys *rows.RowBatch) (uint32, error) {
	if m.closed.Load() {
		return 0, fmt.Errorf("database is closed")
	}

	t, ok := m.tables.Load(keys.Table())
	if !ok || keys.RowCount() == 0 {
		return 0, nil
	}

	// positions of the key columns in the table rows
	positions := make([]int, keys.NumColumns())
	for i, schema := range keys.Schemas() {
		positions[i] = slices.IndexFunc(t.schemas, func(s rows.ColumnSchema) bool { return s.Name == schema.Name })
		if positions[i] < 0 {
			return 0, fmt.Errorf("table %q has no column %q", t.name, schema.Name)
		}
	}

	// index the key tuples by hash
	keyColumns := keys.Columns()
	tuples := make([][]any, keys.RowCount())
	index := make(map[uint64][]int, keys.RowCount())
	for r := range tuples {
		tuple := make([]any, len(keyColumns))
		for i, col := range keyColumns {
			tuple[i] = col.Values[r]
		}
		tuples[r] = tuple
		h := util.HashValues(tuple, m.seed)
		index[h] = append(index[h], r)
	}

	matches := func(row []any) bool {
		tuple := make([]any, len(positions))
		for i, pos := range positions {
			tuple[i] = row[pos]
		}
		for _, candidate := range index[util.HashValues(tuple, m.seed)] {
			if tupleEqual(tuple, tuples[candidate]) {
				return true
			}
		}
		return false
	}

	var deleted int
	for _, s := range t.shards {
		s.mu.Lock()
		kept := s.rows[:0]
		for _, row := range s.rows {
			if matches(row) {
				deleted++
				continue
			}
			kept = append(kept, row)
		}
		clear(s.rows[len(kept):])
		s.rows = kept
		s.mu.Unlock()
	}

	m.rowCount.Add(-int64(deleted))
	return uint32(deleted), nil
}

func (m *memoryImpl) Count(name string) (int, error) {
	t, ok := m.tables.Load(name)
	if !ok {
		return 0, nil
	}
	n := 0
	for _, size := range t.shardSizes() {
		n += size
	}
	return n, nil
}

func (m *memoryImpl) Tables() []string {
	names := make([]string, 0, m.tables.Size())
	m.tables.Range(func(name string, _ *table) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

func (m *memoryImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureInsert | db.FeatureDelete | db.FeatureCount
	return feature&supported == feature
}

func (m *memoryImpl) GetInfo() db.DatabaseInfo {
	distribution := make(map[string]util.DistributionStats, m.tables.Size())
	m.tables.Range(func(name string, t *table) bool {
		sizes := t.shardSizes()
		values := make([]float64, len(sizes))
		for i, size := range sizes {
			values[i] = float64(size)
		}
		distribution[name] = util.NewDistributionStats(values)
		return true
	})

	return db.DatabaseInfo{
		Tables:            m.tables.Size(),
		Rows:              int(m.rowCount.Load()),
		DbType:            db.ImplMemory,
		SupportedFeatures: []db.Feature{db.FeatureInsert, db.FeatureDelete, db.FeatureCount},
		Metadata: map[string]any{
			"shards":       m.numShards,
			"distribution": distribution,
		},
	}
}

func (m *memoryImpl) Close() error {
	m.closed.Store(true)
	m.tables.Clear()
	m.rowCount.Store(0)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *memoryImpl) newTable(name string, schemas []rows.ColumnSchema) *table {
	t := &table{
		name:    name,
		schemas: schemas,
		shards:  make([]*shard, m.numShards),
	}
	for i := range t.shards {
		t.shards[i] = &shard{}
	}
	return t
}

func (t *table) shardSizes() []int {
	sizes := make([]int, len(t.shards))
	for i, s := range t.shards {
		s.mu.RLock()
		sizes[i] = len(s.rows)
		s.mu.RUnlock()
	}
	return sizes
}

func tupleEqual(a, b []any) bool {
	for i := range a {
		if !util.ValuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
