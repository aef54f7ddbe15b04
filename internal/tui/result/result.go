package result

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"steadydb/internal/stats"
	"steadydb/internal/tui/styles"
)

type Model struct {
	Summary stats.Summary

	Width  int
	Height int
}

func NewModel(sum stats.Summary) Model {
	return Model{Summary: sum}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
	}
	return m, nil
}

// Render formats a summary block. Shared with headless output.
func Render(sum stats.Summary) string {
	s := strings.Builder{}

	s.WriteString(styles.Active.Render("Overview"))
	s.WriteString("\n")

	overview := strings.Join([]string{
		styles.Row("Run", sum.RunID),
		styles.Row("Duration", sum.Duration.Round(time.Millisecond).String()),
		styles.Row("Success", humanize.Comma(int64(sum.Success))),
		styles.Row("Failed", humanize.Comma(int64(sum.Failure))),
		styles.Row("Error rate", fmt.Sprintf("%.2f%%", stats.ErrorRate(sum.Success, sum.Failure))),
		styles.Row("No connection", humanize.Comma(int64(sum.AcquireFailures))),
		styles.Row("Average rate", fmt.Sprintf("%s inserts/s", humanize.CommafWithDigits(sum.AverageRate, 2))),
	}, "\n")
	s.WriteString(styles.Box.Render(overview))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render("Insert latency"))
	s.WriteString("\n")

	latency := strings.Join([]string{
		styles.Row("Mean", fmt.Sprintf("%.2f ms", sum.MeanMs)),
		styles.Row("P50", fmt.Sprintf("%.2f ms", sum.P50Ms)),
		styles.Row("P90", fmt.Sprintf("%.2f ms", sum.P90Ms)),
		styles.Row("P99", fmt.Sprintf("%.2f ms", sum.P99Ms)),
		styles.Row("Max", fmt.Sprintf("%.2f ms", sum.MaxMs)),
	}, "\n")
	s.WriteString(styles.Box.Render(latency))

	if dropped := int64(sum.Success) - sum.LatencySamples; sum.LatencySamples > 0 && dropped > 0 {
		s.WriteString("\n\n")
		s.WriteString(styles.Warn.Render(fmt.Sprintf("%d latencies were out of range and are missing from the percentiles", dropped)))
	}

	if sum.CallerRuns > 0 {
		s.WriteString("\n\n")
		s.WriteString(styles.Warn.Render(fmt.Sprintf("%d workers ran on the submitting goroutine", sum.CallerRuns)))
	}
	if sum.ShutdownTimedOut {
		s.WriteString("\n\n")
		s.WriteString(styles.Warn.Render("Shutdown grace period elapsed, totals are a lower bound"))
	}

	return s.String()
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("Load test complete"))
	s.WriteString("\n\n")
	s.WriteString(Render(m.Summary))
	s.WriteString("\n\n")
	s.WriteString(styles.RenderKey("q", "quit"))

	return s.String()
}
