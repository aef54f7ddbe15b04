// Package cli runs a load test without a terminal UI and prints the
// header and summary blocks to a writer.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"steadydb/internal/dummy"
	"steadydb/internal/runner"
	"steadydb/internal/stats"
	"steadydb/internal/tui/result"
	"steadydb/internal/tui/styles"
)

const rule = "======================================================================"

// Start runs r to completion. Progress goes to the logger; out gets the
// header before the run and the summary after it.
func Start(ctx context.Context, r *runner.Runner, out io.Writer) (stats.Summary, error) {
	printHeader(out, r.Cfg)

	sum, err := r.Run(ctx)
	if err != nil {
		return sum, err
	}

	printSummary(out, sum)
	return sum, nil
}

func printHeader(out io.Writer, cfg runner.Config) {
	ds := cfg.Datastore
	target := ds.Driver
	switch ds.Driver {
	case dummy.Driver:
		target = "simulated datastore"
	default:
		if ds.DSN == "" && ds.Host != "" {
			target = fmt.Sprintf("%s %s:%d/%s", ds.Driver, ds.Host, ds.Port, ds.Database)
		}
	}

	lines := []string{
		"",
		styles.Title.Render("STARTING STEADYDB LOAD TEST"),
		rule,
		styles.Row("Target", target),
		styles.Row("Table", ds.Table),
		styles.Row("Workers", humanize.Comma(int64(cfg.Workers))),
		styles.Row("Records/worker", humanize.Comma(int64(cfg.RecordsPerWorker))),
		styles.Row("Total inserts", humanize.Comma(int64(cfg.TotalAttempts()))),
		styles.Row("Pool size", humanize.Comma(int64(ds.PoolSize))),
		styles.Row("Report every", cfg.ReportInterval.String()),
		styles.Row("Conn timeout", ds.ConnTimeout.Round(time.Millisecond).String()),
		rule,
		"",
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func printSummary(out io.Writer, sum stats.Summary) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Title.Render("LOAD TEST RESULTS"))
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, result.Render(sum))
	fmt.Fprintln(out, rule)
}
