package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dRow/cmd/util"
	dbutil "github.com/ValentinKolb/dRow/lib/db/util"
	"github.com/ValentinKolb/dRow/lib/rows"
	"github.com/pterm/pterm"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dRow nodes",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfTable       = "__perf"
	perfBatchSize   = 100
	perfLargeFactor = 100
	perfNumThreads  = 10
	perfHosts       = 100
	perfSkip        = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,delete)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines sending requests"))
	key = "rows"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("Rows per batch"))
	key = "large-factor"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many times more rows the batches of the insert-large test hold"))
	key = "hosts"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different tag values to use for the tests"))
	key = "table"
	perfTestCmd.Flags().String(key, perfTable, util.WrapString("Table the benchmark writes to"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfBatchSize = max(1, viper.GetInt("rows"))
	perfLargeFactor = max(1, viper.GetInt("large-factor"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfHosts = max(1, viper.GetInt("hosts"))
	perfTable = viper.GetString("table")
	perfSkip = util.SplitList(viper.GetString("skip"))
	return nil
}

// perfResult is the outcome of one benchmark
type perfResult struct {
	Test      string
	Result    testing.BenchmarkResult
	Rows      int
	Errors    int64
	Latencies dbutil.Stats // milliseconds
	P50, P99  float64      // milliseconds
	RowsPerOp int
}

func runPerf(_ *cobra.Command, _ []string) error {
	pterm.DefaultHeader.Println("Performance testing tool for dRow nodes")

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}
	pterm.Println(config.String())
	pterm.Printfln("Threads: %d, rows per batch: %d, table: %s", perfNumThreads, perfBatchSize, perfTable)
	pterm.Println()

	batch := perfBatch(perfBatchSize)
	largeBatch := perfBatch(perfBatchSize * perfLargeFactor)

	insert := func(ctx context.Context, b *rows.RowBatch) error {
		_, err := database.Insert(ctx, b)
		return err
	}
	remove := func(ctx context.Context, b *rows.RowBatch) error {
		_, err := database.Delete(ctx, perfTable, []string{"host"}, b)
		return err
	}

	var results []perfResult
	results = append(results, benchmark("insert", batch, nil, insert))
	results = append(results, benchmark("insert-large", largeBatch, nil, insert))
	results = append(results, benchmark("delete", batch, insert, remove))
	results = append(results, benchmark("mixed", batch, nil, func(ctx context.Context, b *rows.RowBatch) error {
		if err := insert(ctx, b); err != nil {
			return err
		}
		return remove(ctx, b)
	}))

	// cleanup
	ctx, cancel := commandContext()
	defer cancel()
	if err := remove(ctx, perfBatch(perfHosts)); err != nil {
		pterm.Warning.Printfln("cleanup failed: %v", err)
	}

	if err := printResults(results); err != nil {
		return err
	}

	stats := database.Pool().Stats()
	pterm.Printfln("\nchannels: %d dial(s), %d failed, %d marked broken, %d live",
		stats.Dials, stats.DialFailures, stats.MarkedBroken, stats.Live)

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		pterm.Info.Printfln("Exporting results to CSV: %s", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// benchmark runs op in parallel. prepare (if set) runs once per benchmark
// before the timer starts.
func benchmark(test string, batch *rows.RowBatch, prepare, op func(context.Context, *rows.RowBatch) error) perfResult {
	res := perfResult{Test: test, RowsPerOp: batch.RowCount()}
	if slices.Contains(perfSkip, test) {
		return res
	}

	timer := metrics.NewTimer()
	errorsTotal := metrics.NewCounter()

	var mu sync.Mutex
	var samples []float64

	spinner, _ := pterm.DefaultSpinner.Start("running " + test)

	res.Result = testing.Benchmark(func(b *testing.B) {
		ctx := context.Background()
		if prepare != nil {
			if err := prepare(ctx, batch); err != nil {
				errorsTotal.Inc(1)
			}
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			local := make([]float64, 0, 64)
			for pb.Next() {
				start := time.Now()
				err := op(ctx, batch)
				took := time.Since(start)
				timer.Update(took)
				local = append(local, util.Millis(took))
				if err != nil {
					errorsTotal.Inc(1)
				}
			}
			mu.Lock()
			samples = append(samples, local...)
			mu.Unlock()
		})
	})

	if spinner != nil {
		_ = spinner.Stop()
	}

	res.Errors = errorsTotal.Count()
	res.Latencies = dbutil.NewStats(samples)
	res.P50 = dbutil.Percentile(samples, 50)
	res.P99 = dbutil.Percentile(samples, 99)
	res.Rows = int(timer.Count()) * res.RowsPerOp
	return res
}

// perfBatch builds n rows spread over perfHosts tag values
func perfBatch(n int) *rows.RowBatch {
	b := rows.NewBuilder(perfTable,
		rows.Timestamp("ts", rows.TimestampMillisecond),
		rows.Tag("host", rows.String),
		rows.Field("value", rows.Float64),
	)
	now := time.Now().UnixMilli()
	for i := 0; i < n; i++ {
		_ = b.AddRow(now+int64(i), fmt.Sprintf("host-%d", i%perfHosts), float64(i))
	}
	batch, _ := b.Build()
	return batch
}

func opsPerSec(result testing.BenchmarkResult) float64 {
	if result.NsPerOp() == 0 {
		return 0
	}
	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	return 1.0 / (nsPerOp / 1e9)
}

// printResults renders all benchmark results
func printResults(results []perfResult) error {
	written, err := util.WriteStructured(os.Stdout, viper.GetString("output"), results)
	if err != nil || written {
		return err
	}

	data := pterm.TableData{{"Test", "Ops/sec", "Rows/sec", "Mean", "P50", "P99", "Max", "Errors"}}
	for _, r := range results {
		if r.Result.N == 0 {
			data = append(data, []string{r.Test, "skipped", "", "", "", "", "", ""})
			continue
		}
		ops := opsPerSec(r.Result)
		data = append(data, []string{
			r.Test,
			fmt.Sprintf("%.0f", ops),
			fmt.Sprintf("%.0f", ops*float64(r.RowsPerOp)),
			fmt.Sprintf("%.2f ms", r.Latencies.Mean),
			fmt.Sprintf("%.2f ms", r.P50),
			fmt.Sprintf("%.2f ms", r.P99),
			fmt.Sprintf("%.2f ms", r.Latencies.Max),
			strconv.FormatInt(r.Errors, 10),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult) error {
	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "OpsPerSec", "RowsPerOp", "MeanMs", "P50Ms", "P99Ms", "MaxMs", "Errors",
		"Endpoints", "Database", "Timeout", "Balancer", "Serializer", "Transport", "Threads",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		row := []string{
			r.Test,
			strconv.FormatInt(r.Result.NsPerOp(), 10),
			fmt.Sprintf("%.0f", opsPerSec(r.Result)),
			strconv.Itoa(r.RowsPerOp),
			fmt.Sprintf("%.3f", r.Latencies.Mean),
			fmt.Sprintf("%.3f", r.P50),
			fmt.Sprintf("%.3f", r.P99),
			fmt.Sprintf("%.3f", r.Latencies.Max),
			strconv.FormatInt(r.Errors, 10),
			strings.Join(config.Endpoints, ";"),
			config.Database,
			config.Timeout.String(),
			config.Balancer,
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.Test, err)
		}
	}
	return nil
}
