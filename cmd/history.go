package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"steadydb/internal/storage"
	"steadydb/internal/tui/result"
	"steadydb/internal/tui/styles"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs, or show one run in full",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(viper.GetViper())
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()

		if len(args) == 1 {
			item, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, result.Render(item.Summary))
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		items, err := store.List(limit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(out, styles.Subtle.Render("No runs recorded yet."))
			return nil
		}

		fmt.Fprintln(out, historyTable(items, time.Now()))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "l", 20, "Maximum number of runs to list (0 for all)")
}

func historyTable(items []storage.HistoryItem, now time.Time) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.ColorBorder)).
		Headers("RUN", "WHEN", "DRIVER", "WORKERS", "RECORDS", "SUCCESS", "FAILED", "RATE/S")

	for _, it := range items {
		t.Row(
			it.ID,
			humanize.RelTime(it.Timestamp, now, "ago", "from now"),
			it.Settings.Driver,
			humanize.Comma(int64(it.Settings.Workers)),
			humanize.Comma(int64(it.Settings.RecordsPerWorker)),
			humanize.Comma(int64(it.Summary.Success)),
			humanize.Comma(int64(it.Summary.Failure)),
			humanize.CommafWithDigits(it.Summary.AverageRate, 1),
		)
	}
	return t.String()
}
