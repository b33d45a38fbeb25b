package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/lib/store"
	"gopkg.in/yaml.v3"
)

// --------------------------------------------------------------------------
// Table Declarations
// --------------------------------------------------------------------------

// TableDef declares the schema of one table. Columns use the name:type[:role]
// notation of rows.ParseColumnSchema.
//
// Example (toml):
//
//	[[tables]]
//	database = "metrics"
//	name = "cpu"
//	columns = ["ts:ts_ms:timestamp", "host:string:tag", "usage:float64"]
type TableDef struct {
	Database string   `toml:"database" yaml:"database"`
	Name     string   `toml:"name" yaml:"name"`
	Columns  []string `toml:"columns" yaml:"columns"`
}

// TablesFile is the content of a table declaration file
type TablesFile struct {
	Tables []TableDef `toml:"tables" yaml:"tables"`
}

// LoadTablesFile reads a table declaration file. The format is chosen by the
// file extension (.toml, .yaml or .yml).
func LoadTablesFile(path string) (TablesFile, error) {
	var file TablesFile

	content, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("failed to read tables file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(content, &file); err != nil {
			return file, fmt.Errorf("toml parse error in %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &file); err != nil {
			return file, fmt.Errorf("yaml parse error in %s: %w", path, err)
		}
	default:
		return file, fmt.Errorf("unsupported tables file format %q (expected .toml, .yaml or .yml)", ext)
	}

	return file, nil
}

// Schemas parses the column definitions of the table
func (d TableDef) Schemas() ([]rows.ColumnSchema, error) {
	schemas := make([]rows.ColumnSchema, 0, len(d.Columns))
	for _, def := range d.Columns {
		schema, err := rows.ParseColumnSchema(def)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", d.Name, err)
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// DeclareTables registers all tables of the file in the store
func DeclareTables(s store.IStore, file TablesFile) error {
	for _, def := range file.Tables {
		schemas, err := def.Schemas()
		if err != nil {
			return err
		}
		if err := s.DeclareTable(def.Database, def.Name, schemas); err != nil {
			return fmt.Errorf("failed to declare table %q in %q: %w", def.Name, def.Database, err)
		}
		Logger.Infof("declared table %s.%s (%d columns)", def.Database, def.Name, len(schemas))
	}
	return nil
}
