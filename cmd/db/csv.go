package db

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ValentinKolb/dRow/lib/rows"
)

// ParseColumns parses a comma-separated list of name:type[:role] definitions
func ParseColumns(defs string) ([]rows.ColumnSchema, error) {
	var schemas []rows.ColumnSchema
	for _, def := range strings.Split(defs, ",") {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		schema, err := rows.ParseColumnSchema(def)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	if len(schemas) == 0 {
		return nil, errors.New("no columns given")
	}
	return schemas, nil
}

// ReadBatches reads csv records from r and groups them into batches of at most
// batchSize rows. Every record holds one value per column in schema order, an
// empty field or NULL is a null. If skipHeader is set the first record is
// ignored.
func ReadBatches(r io.Reader, table string, schemas []rows.ColumnSchema, batchSize int, skipHeader bool) ([]*rows.RowBatch, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(schemas)
	reader.TrimLeadingSpace = true

	var batches []*rows.RowBatch
	builder := rows.NewBuilder(table, schemas...)

	flush := func() error {
		batch, err := builder.Build()
		if err != nil {
			return err
		}
		batches = append(batches, batch)
		return nil
	}

	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && skipHeader {
			continue
		}

		values := make([]any, len(schemas))
		for i, field := range record {
			if values[i], err = rows.ParseValue(schemas[i].DataType, field); err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", line, schemas[i].Name, err)
			}
		}
		if err := builder.AddRow(values...); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if builder.Len() >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	// an empty input still yields one (empty) batch
	if builder.Len() > 0 || len(batches) == 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	return batches, nil
}
