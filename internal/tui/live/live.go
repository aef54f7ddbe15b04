package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"steadydb/internal/runner"
	"steadydb/internal/stats"
	"steadydb/internal/tui/components"
	"steadydb/internal/tui/styles"
)

// Snapshot is read from the runner on every UI tick.
type Snapshot struct {
	Success         uint64
	Failure         uint64
	AcquireFailures uint64
	Active          int64
	Progress        float64
	Elapsed         time.Duration
}

// Model shows counters, progress and the reporter's rate history.
type Model struct {
	Stats    Snapshot
	Total    uint64
	Progress progress.Model
	RateLine components.Sparkline

	// Reporter samples seen so far, including the baseline
	Samples int

	Width  int
	Height int
}

func NewModel(total uint64) Model {
	return Model{
		Total:    total,
		Progress: progress.New(progress.WithDefaultGradient()),
		RateLine: components.NewSparkline(40, "Inserts/s (per report interval)", styles.Active),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case Snapshot:
		m.Stats = msg
		return m, m.Progress.SetPercent(msg.Progress)

	case runner.Sample:
		m.Samples++
		if msg.HasRate {
			m.RateLine.Add(msg.Rate)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		w := msg.Width - 8
		if w < 10 {
			w = 10
		}
		m.RateLine.Width = w
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (s Snapshot) ErrorRate() float64 {
	return stats.ErrorRate(s.Success, s.Failure)
}

func (m Model) View() string {
	s := strings.Builder{}

	done := m.Stats.Success + m.Stats.Failure
	col1 := fmt.Sprintf("DONE: %s / %s\nOK:   %s",
		humanize.Comma(int64(done)), humanize.Comma(int64(m.Total)),
		humanize.Comma(int64(m.Stats.Success)))

	errRate := m.Stats.ErrorRate()
	col2 := fmt.Sprintf("FAIL: %s\nERR:  %.2f%%",
		humanize.Comma(int64(m.Stats.Failure)), errRate)

	col3 := fmt.Sprintf("ACTIVE: %d\nNO CONN: %d", m.Stats.Active, m.Stats.AcquireFailures)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(styles.ErrorRateStyle(errRate).Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	rate := "waiting for second sample"
	if len(m.RateLine.Data) > 0 {
		rate = fmt.Sprintf("%.2f inserts/s", m.RateLine.Last())
	}
	s.WriteString(styles.Box.Render(m.RateLine.View() + "\n" + styles.Subtle.Render(rate)))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("Elapsed: %s", m.Stats.Elapsed.Round(time.Second))))

	return s.String()
}
