package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ValentinKolb/dRow/lib/db"
	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/puzpuzpuz/xsync/v3"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a database that only lives as long as the process
const MemoryPath = ":memory:"

// DBOptions configures the sqlite engine
type DBOptions struct {
	Path string // Database file, MemoryPath for a transient database
}

// sqliteImpl stores every dRow table in a sqlite table of the same name
type sqliteImpl struct {
	path    string
	db      *sql.DB
	created *xsync.MapOf[string, struct{}]

	// sqlite allows a single writer, writes are serialized here instead of
	// failing with SQLITE_BUSY
	mu sync.Mutex
}

// NewSQLiteDB opens (or creates) the sqlite database at opts.Path
func NewSQLiteDB(opts DBOptions) (db.TableDB, error) {
	dsn := MemoryPath
	if opts.Path != "" && opts.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = opts.Path + "?_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: would see its own database
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &sqliteImpl{
		path:    opts.Path,
		db:      sqlDB,
		created: xsync.NewMapOf[string, struct{}](),
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.TableDB)
// --------------------------------------------------------------------------

func (s *sqliteImpl) Insert(batch *rows.RowBatch) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schemas := batch.Schemas()
	if err := s.createTable(batch.Table(), schemas); err != nil {
		return 0, err
	}
	if batch.RowCount() == 0 {
		return 0, nil
	}

	names := make([]string, len(schemas))
	placeholders := make([]string, len(schemas))
	for i, schema := range schemas {
		names[i] = quoteIdent(schema.Name)
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(batch.Table()), strings.Join(names, ", "), strings.Join(placeholders, ", "))

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	columns := batch.Columns()
	args := make([]any, len(columns))
	for r := 0; r < batch.RowCount(); r++ {
		for i, col := range columns {
			args[i] = toSQL(col.Values[r])
		}
		if _, err := stmt.Exec(args...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d: %w", r, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return uint32(batch.RowCount()), nil
}

func (s *sqliteImpl) Delete(keys *rows.RowBatch) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.tableExists(keys.Table())
	if err != nil || !exists || keys.RowCount() == 0 {
		return 0, err
	}

	// IS compares nulls like values
	conditions := make([]string, keys.NumColumns())
	for i, schema := range keys.Schemas() {
		conditions[i] = quoteIdent(schema.Name) + " IS ?"
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(keys.Table()), strings.Join(conditions, " AND "))

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var deleted int64
	columns := keys.Columns()
	args := make([]any, len(columns))
	for r := 0; r < keys.RowCount(); r++ {
		for i, col := range columns {
			args[i] = toSQL(col.Values[r])
		}
		res, err := stmt.Exec(args...)
		if err != nil {
			return 0, fmt.Errorf("failed to delete rows: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return uint32(deleted), nil
}

func (s *sqliteImpl) Count(table string) (int, error) {
	exists, err := s.tableExists(table)
	if err != nil || !exists {
		return 0, err
	}
	var n int
	err = s.db.QueryRow("SELECT COUNT(*) FROM " + quoteIdent(table)).Scan(&n)
	return n, err
}

func (s *sqliteImpl) Tables() []string {
	res, err := s.db.Query("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil
	}
	defer res.Close()

	var names []string
	for res.Next() {
		var name string
		if err := res.Scan(&name); err == nil {
			names = append(names, name)
		}
	}
	return names
}

func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureInsert | db.FeatureDelete | db.FeatureCount
	if s.path != "" && s.path != MemoryPath {
		supported |= db.FeaturePersistent
	}
	return feature&supported == feature
}

func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	tables := s.Tables()
	total := 0
	for _, table := range tables {
		n, _ := s.Count(table)
		total += n
	}

	features := []db.Feature{db.FeatureInsert, db.FeatureDelete, db.FeatureCount}
	if s.SupportsFeature(db.FeaturePersistent) {
		features = append(features, db.FeaturePersistent)
	}

	return db.DatabaseInfo{
		Tables:            len(tables),
		Rows:              total,
		DbType:            db.ImplSQLite,
		SupportedFeatures: features,
		Metadata: map[string]any{
			"path": s.path,
		},
	}
}

func (s *sqliteImpl) Close() error {
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *sqliteImpl) createTable(table string, schemas []rows.ColumnSchema) error {
	if _, ok := s.created.Load(table); ok {
		return nil
	}

	columns := make([]string, len(schemas))
	for i, schema := range schemas {
		columns[i] = quoteIdent(schema.Name) + " " + columnType(schema.DataType)
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(columns, ", "))
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create table %q: %w", table, err)
	}

	s.created.Store(table, struct{}{})
	return nil
}

func (s *sqliteImpl) tableExists(table string) (bool, error) {
	if _, ok := s.created.Load(table); ok {
		return true, nil
	}
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// columnType returns the sqlite storage class of a data type
func columnType(dataType rows.ColumnDataType) string {
	switch dataType {
	case rows.Float32, rows.Float64:
		return "REAL"
	case rows.String:
		return "TEXT"
	case rows.Binary:
		return "BLOB"
	default:
		return "INTEGER"
	}
}

// toSQL converts a column value to a value the driver accepts. uint64 is stored
// with the same bits as int64, the driver rejects values above MaxInt64.
func toSQL(v any) any {
	switch x := v.(type) {
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
