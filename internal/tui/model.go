package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"steadydb/internal/runner"
	"steadydb/internal/stats"
	"steadydb/internal/tui/live"
	"steadydb/internal/tui/result"
	"steadydb/internal/tui/styles"
)

const (
	tickInterval = 200 * time.Millisecond
)

type tickMsg time.Time

// DoneMsg carries the outcome of Runner.Run.
type DoneMsg struct {
	Summary stats.Summary
	Err     error
}

// Model drives one run: the live view while workers insert, then the summary.
type Model struct {
	Runner *runner.Runner
	Live   live.Model
	Result result.Model

	Done    bool
	Summary stats.Summary
	Err     error

	ctx       context.Context
	startTime time.Time
	Width     int
	Height    int
}

func NewModel(ctx context.Context, r *runner.Runner) Model {
	return Model{
		Runner:    r,
		Live:      live.NewModel(r.Cfg.TotalAttempts()),
		ctx:       ctx,
		startTime: time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(runCmd(m.ctx, m.Runner), waitForSample(m.Runner.Updates), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		m.Result, _ = m.Result.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q", "esc":
			// Workers cannot be interrupted, so q only works once they are done
			if m.Done {
				return m, tea.Quit
			}
		}
		return m, nil

	case tickMsg:
		if m.Done {
			return m, nil
		}
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(m.snapshot(time.Time(msg)))
		return m, tea.Batch(cmd, tickCmd())

	case runner.Sample:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, tea.Batch(cmd, waitForSample(m.Runner.Updates))

	case DoneMsg:
		m.Done = true
		m.Summary = msg.Summary
		m.Err = msg.Err
		m.Result = result.NewModel(msg.Summary)
		m.Result.Width, m.Result.Height = m.Width, m.Height
		return m, nil

	default:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd
	}
}

func (m Model) snapshot(now time.Time) live.Snapshot {
	st := m.Runner.Stats
	return live.Snapshot{
		Success:         st.Success(),
		Failure:         st.Failure(),
		AcquireFailures: st.AcquireFailures(),
		Active:          m.Runner.ActiveWorkers(),
		Progress:        m.Runner.Progress(),
		Elapsed:         now.Sub(m.startTime),
	}
}

func (m Model) View() string {
	s := strings.Builder{}

	if m.Err != nil {
		s.WriteString(styles.Error.Render(fmt.Sprintf("Load test failed: %v", m.Err)))
		s.WriteString("\n\n")
		s.WriteString(styles.RenderKey("q", "quit"))
		return s.String()
	}

	if m.Done {
		return m.Result.View()
	}

	cfg := m.Runner.Cfg
	s.WriteString(styles.Title.Render("steadydb load test"))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf(
		"driver %s | table %s | %d workers x %d records | pool %d",
		cfg.Datastore.Driver, cfg.Datastore.Table, cfg.Workers, cfg.RecordsPerWorker, cfg.Datastore.PoolSize,
	)))
	s.WriteString("\n\n")
	s.WriteString(m.Live.View())
	s.WriteString("\n")
	s.WriteString(styles.RenderKey("ctrl+c", "abort"))

	return s.String()
}

func runCmd(ctx context.Context, r *runner.Runner) tea.Cmd {
	return func() tea.Msg {
		sum, err := r.Run(ctx)
		return DoneMsg{Summary: sum, Err: err}
	}
}

// waitForSample relays one reporter sample; it is re-issued after each one
// and ends quietly when the runner closes the channel.
func waitForSample(ch runner.SampleChan) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return s
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
