package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/ValentinKolb/dRow/cmd/util"
	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/ValentinKolb/dRow/rpc/client"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	insertCmd = &cobra.Command{
		Use:   "insert [table] [file]",
		Short: "Insert the rows of a csv file (or stdin) into a table",
		Long: `Insert the rows of a csv file into a table. Every record holds one value per
column, in the order given by --columns. Empty fields and NULL are nulls,
timestamps may be integers in the column's unit or RFC 3339 times.

Example:
  drow db insert cpu metrics.csv --columns ts:ts_ms:timestamp,host:string:tag,usage:float64`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			batches, err := readInput(args)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			start := time.Now()
			var total uint64
			if len(batches) == 1 {
				n, err := database.Insert(ctx, batches[0])
				if err != nil {
					return err
				}
				total = uint64(n)
			} else {
				if total, err = streamBatches(ctx, database, batches, viper.GetInt("stream-buffer")); err != nil {
					return err
				}
			}

			return printWriteResult("insert", args[0], len(batches), total, time.Since(start))
		},
	}

	deleteCmd = &cobra.Command{
		Use:   "delete [table] [file]",
		Short: "Delete all rows matching the key values of a csv file (or stdin)",
		Long: `Delete all rows of a table whose key columns match a record of the csv file.
--columns describes the records, --keys selects the key columns (default: all).

Example:
  drow db delete cpu hosts.csv --columns host:string:tag`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			batches, err := readInput(args)
			if err != nil {
				return err
			}

			keys := util.SplitList(viper.GetString("keys"))
			if len(keys) == 0 {
				for _, schema := range batches[0].Schemas() {
					keys = append(keys, schema.Name)
				}
			}

			ctx, cancel := commandContext()
			defer cancel()

			start := time.Now()
			var total uint64
			for _, batch := range batches {
				n, err := database.Delete(ctx, args[0], keys, batch)
				if err != nil {
					return err
				}
				total += uint64(n)
			}

			return printWriteResult("delete", args[0], len(batches), total, time.Since(start))
		},
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check whether every node serves the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			results := database.HealthCheck(ctx)

			type nodeStatus struct {
				Node      string  `json:"node" yaml:"node"`
				Healthy   bool    `json:"healthy" yaml:"healthy"`
				LatencyMs float64 `json:"latency_ms" yaml:"latency_ms"`
				Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
			}

			statuses := make([]nodeStatus, len(results))
			unhealthy := 0
			for i, r := range results {
				statuses[i] = nodeStatus{Node: r.Addr, Healthy: r.Err == nil, LatencyMs: util.Millis(r.Latency)}
				if r.Err != nil {
					statuses[i].Error = r.Err.Error()
					unhealthy++
				}
			}

			written, err := util.WriteStructured(os.Stdout, viper.GetString("output"), statuses)
			if err != nil {
				return err
			}
			if !written {
				data := pterm.TableData{{"Node", "Status", "Latency", "Error"}}
				for _, s := range statuses {
					status := pterm.FgGreen.Sprint("ok")
					if !s.Healthy {
						status = pterm.FgRed.Sprint("failed")
					}
					data = append(data, []string{s.Node, status, fmt.Sprintf("%.2f ms", s.LatencyMs), s.Error})
				}
				if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
					return err
				}
			}

			if unhealthy > 0 {
				return fmt.Errorf("%d of %d node(s) unhealthy", unhealthy, len(results))
			}
			return nil
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{insertCmd, deleteCmd} {
		cmd.Flags().String("columns", "", util.WrapString("Comma-separated column definitions name:type[:role] (role: tag, field, timestamp)"))
		cmd.Flags().Int("batch-size", 1000, util.WrapString("Maximum number of rows per request"))
		cmd.Flags().Bool("skip-header", false, util.WrapString("Ignore the first record of the csv input"))
		_ = cmd.MarkFlagRequired("columns")
	}
	insertCmd.Flags().Int("stream-buffer", 16, util.WrapString("Number of batches buffered while streaming large inputs"))
	deleteCmd.Flags().String("keys", "", util.WrapString("Comma-separated key columns (default: all columns)"))
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// readInput parses --columns and reads the batches from args[1] or stdin
func readInput(args []string) ([]*rows.RowBatch, error) {
	schemas, err := ParseColumns(viper.GetString("columns"))
	if err != nil {
		return nil, err
	}

	var r io.Reader = os.Stdin
	if len(args) > 1 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	return ReadBatches(r, args[0], schemas, viper.GetInt("batch-size"), viper.GetBool("skip-header"))
}

// streamBatches inserts batches through a stream inserter. A batch that cannot
// be queued stops the stream, the rows written so far are still reported.
func streamBatches(ctx context.Context, database *client.Database, batches []*rows.RowBatch, buffer int) (uint64, error) {
	var insertErr error
	inserter := database.StreamInserter(buffer)
	for _, batch := range batches {
		if insertErr = inserter.Insert(ctx, batch); insertErr != nil {
			break
		}
	}
	total, err := inserter.Finish()
	return total, errors.Join(insertErr, err)
}

// commandContext is canceled on SIGINT, every attempt is bounded by --timeout
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func printWriteResult(op, table string, batches int, affected uint64, took time.Duration) error {
	result := struct {
		Operation    string  `json:"operation" yaml:"operation"`
		Table        string  `json:"table" yaml:"table"`
		Batches      int     `json:"batches" yaml:"batches"`
		AffectedRows uint64  `json:"affected_rows" yaml:"affected_rows"`
		DurationMs   float64 `json:"duration_ms" yaml:"duration_ms"`
	}{op, table, batches, affected, util.Millis(took)}

	written, err := util.WriteStructured(os.Stdout, viper.GetString("output"), result)
	if err != nil || written {
		return err
	}
	pterm.Success.Printfln("%s: %d row(s) affected in %s (%d batch(es), %.2f ms)", op, affected, table, batches, result.DurationMs)
	return nil
}
