package lstore

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ValentinKolb/dRow/lib/db"
	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("store")

type storeImpl struct {
	databases map[string]*database
}

// database is one served logical database
type database struct {
	name    string
	db      db.TableDB
	schemas *xsync.MapOf[string, []rows.ColumnSchema]
}

// NewLocalStore creates a new local store instance serving the given databases.
// This store implementation is not distributed and only works on a single node.
// The factory is called once per database.
func NewLocalStore(factory store.DBFactory, databases ...string) (store.IStore, error) {
	if len(databases) == 0 {
		return nil, fmt.Errorf("at least one database is required")
	}

	s := &storeImpl{databases: make(map[string]*database, len(databases))}
	for _, name := range databases {
		if name == "" {
			s.Close()
			return nil, fmt.Errorf("database name must not be empty")
		}
		if _, dup := s.databases[name]; dup {
			continue
		}
		tdb, err := factory(name)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open database %q: %w", name, err)
		}
		s.databases[name] = &database{
			name:    name,
			db:      tdb,
			schemas: xsync.NewMapOf[string, []rows.ColumnSchema](),
		}
		log.Debugf("opened database %q (%s)", name, tdb.GetInfo().DbType)
	}
	return s, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Insert(name string, batch *rows.RowBatch) (uint32, error) {
	d, err := s.get(name)
	if err != nil {
		return 0, err
	}
	if !d.db.SupportsFeature(db.FeatureInsert) {
		return 0, store.NewError(store.RetCUnsupportedOperation, "Insert operation is not supported")
	}
	if err := batch.ValidateForInsert(); err != nil {
		return 0, store.NewError(store.RetCInvalidOperation, err.Error())
	}

	// the first batch of a table registers its schema
	registered, loaded := d.schemas.LoadOrStore(batch.Table(), batch.Schemas())
	for _, schema := range batch.Schemas() {
		idx := slices.IndexFunc(registered, func(s rows.ColumnSchema) bool { return s.Name == schema.Name })
		if idx < 0 {
			return 0, store.Errorf(store.RetCSchemaMismatch, "table %q has no column %q", batch.Table(), schema.Name)
		}
		if registered[idx] != schema {
			return 0, store.Errorf(store.RetCSchemaMismatch, "column %q of table %q is %s, got %s",
				schema.Name, batch.Table(), registered[idx], schema)
		}
	}

	n, err := d.db.Insert(batch)
	if err != nil {
		if !loaded {
			d.dropEmptySchema(batch.Table())
		}
		return 0, store.NewError(store.RetCInternalError, err.Error())
	}
	return n, nil
}

func (s *storeImpl) Delete(name, table string, keys *rows.RowBatch) (uint32, error) {
	d, err := s.get(name)
	if err != nil {
		return 0, err
	}
	if !d.db.SupportsFeature(db.FeatureDelete) {
		return 0, store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	if keys.Table() != table {
		return 0, store.Errorf(store.RetCInvalidOperation, "key batch targets table %q, not %q", keys.Table(), table)
	}

	registered, ok := d.schemas.Load(table)
	if !ok {
		// tables of persistent engines survive a restart without a registered schema
		if !slices.Contains(d.db.Tables(), table) {
			return 0, store.Errorf(store.RetCTableNotFound, "table %q does not exist", table)
		}
	} else {
		for _, key := range keys.Schemas() {
			idx := slices.IndexFunc(registered, func(s rows.ColumnSchema) bool { return s.Name == key.Name })
			if idx < 0 {
				return 0, store.Errorf(store.RetCSchemaMismatch, "table %q has no column %q", table, key.Name)
			}
			if registered[idx].DataType != key.DataType {
				return 0, store.Errorf(store.RetCSchemaMismatch, "key column %q of table %q is %s, got %s",
					key.Name, table, registered[idx].DataType, key.DataType)
			}
		}
	}

	n, err := d.db.Delete(keys)
	if err != nil {
		return 0, store.NewError(store.RetCInternalError, err.Error())
	}
	return n, nil
}

func (s *storeImpl) DeclareTable(name, table string, schemas []rows.ColumnSchema) error {
	d, err := s.get(name)
	if err != nil {
		return err
	}

	// validate the declaration the same way a batch is validated
	probe, err := rows.NewRowBatch(table, schemas, make([][]any, len(schemas)))
	if err != nil {
		return store.NewError(store.RetCInvalidOperation, err.Error())
	}
	if err := probe.ValidateForInsert(); err != nil {
		return store.NewError(store.RetCInvalidOperation, err.Error())
	}

	registered, loaded := d.schemas.LoadOrStore(table, probe.Schemas())
	if loaded && !slices.Equal(registered, schemas) {
		return store.Errorf(store.RetCSchemaMismatch, "table %q is already declared with a different schema", table)
	}
	return nil
}

func (s *storeImpl) Schema(name, table string) ([]rows.ColumnSchema, bool, error) {
	d, err := s.get(name)
	if err != nil {
		return nil, false, err
	}
	schemas, ok := d.schemas.Load(table)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(schemas), true, nil
}

func (s *storeImpl) Count(name, table string) (int, error) {
	d, err := s.get(name)
	if err != nil {
		return 0, err
	}
	if !d.db.SupportsFeature(db.FeatureCount) {
		return 0, store.NewError(store.RetCUnsupportedOperation, "Count operation is not supported")
	}
	n, err := d.db.Count(table)
	if err != nil {
		return 0, store.NewError(store.RetCInternalError, err.Error())
	}
	return n, nil
}

func (s *storeImpl) HasDatabase(name string) bool {
	_, ok := s.databases[name]
	return ok
}

func (s *storeImpl) Databases() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *storeImpl) GetDBInfo(name string) (db.DatabaseInfo, error) {
	d, err := s.get(name)
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	return d.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	var errs []error
	for _, d := range s.databases {
		if err := d.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database %q: %w", d.name, err))
		}
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *storeImpl) get(name string) (*database, error) {
	d, ok := s.databases[name]
	if !ok {
		return nil, store.Errorf(store.RetCUnknownDatabase, "database %q is not served by this node", name)
	}
	return d, nil
}

// dropEmptySchema removes the registered schema of table as long as the engine
// holds no rows for it
func (d *database) dropEmptySchema(table string) {
	d.schemas.Compute(table, func(old []rows.ColumnSchema, loaded bool) ([]rows.ColumnSchema, bool) {
		if !loaded {
			return old, true
		}
		n, err := d.db.Count(table)
		return old, err == nil && n == 0
	})
}
