// Package tui is the interactive dashboard shown with --tui.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"loadq/internal/runner"
	"loadq/internal/stats"
	"loadq/internal/styles"
	"loadq/internal/tui/live"
	"loadq/internal/tui/result"
)

type snapshotMsg stats.Snapshot

type runDoneMsg struct {
	report *stats.Report
	err    error
}

// runState is written once by the run goroutine and read after done closes.
type runState struct {
	done   chan struct{}
	report *stats.Report
	err    error
}

type Model struct {
	Cfg     runner.Config
	Live    live.Model
	Result  result.Model
	Updates runner.StatsUpdateChan

	finished bool
	stopping bool
	cancel   context.CancelFunc
	state    *runState

	Width  int
	Height int
}

func newModel(cfg runner.Config, updates runner.StatsUpdateChan, state *runState, cancel context.CancelFunc) Model {
	return Model{
		Cfg:     cfg,
		Live:    live.NewModel(cfg.Duration),
		Updates: updates,
		cancel:  cancel,
		state:   state,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.Updates, m.state.done), waitForResult(m.state))
}

func waitForUpdate(ch runner.StatsUpdateChan, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-ch:
			return snapshotMsg(s)
		case <-done:
			return nil
		}
	}
}

func waitForResult(s *runState) tea.Cmd {
	return func() tea.Msg {
		<-s.done
		return runDoneMsg{report: s.report, err: s.err}
	}
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
		case "ctrl+c", "q", "esc":
			if m.finished || m.stopping {
				return m, tea.Quit
			}
			// First press stops dispatch; in-flight requests still drain.
			m.stopping = true
			m.cancel()
			return m, nil
		}

	case snapshotMsg:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(stats.Snapshot(msg))
		if msg.Done {
			return m, cmd
		}
		return m, tea.Batch(cmd, waitForUpdate(m.Updates, m.state.done))

	case runDoneMsg:
		m.finished = true
		m.Result = result.NewModel(msg.report, msg.err)
		m.Result.Width, m.Result.Height = m.Width, m.Height
		return m, nil

	default:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Heading.Render("🚀 loadq"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("%s %s | %g req/s for %s\n", m.Cfg.Method, m.Cfg.URL, m.Cfg.Rate, m.Cfg.Duration))
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("Elapsed: %s", time.Since(m.Live.StartTime).Round(time.Second))))
	s.WriteString("\n\n")

	if m.finished {
		s.WriteString(m.Result.View())
		return s.String()
	}

	s.WriteString(m.Live.View())
	s.WriteString("\n")
	if m.stopping {
		s.WriteString(styles.Warn.Render("Stopping, waiting for in-flight requests (press q again to leave now)"))
	} else {
		s.WriteString(styles.Subtle.Render("Press q to stop the run"))
	}
	return s.String()
}

// Run drives cfg under the dashboard and returns the report once the user
// leaves the result screen. Leaving early still waits for the run to drain.
func Run(ctx context.Context, cfg runner.Config, log logrus.FieldLogger, opts ...runner.Option) (*stats.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(runner.StatsUpdateChan, 100)
	opts = append([]runner.Option{runner.WithLogger(log), runner.WithUpdates(updates)}, opts...)
	r := runner.NewRunner(cfg, opts...)
	defer r.Close()

	state := &runState{done: make(chan struct{})}
	go func() {
		defer close(state.done)
		state.report, state.err = r.Run(ctx)
	}()

	p := tea.NewProgram(newModel(r.Cfg, updates, state, cancel), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		cancel()
		<-state.done
		return state.report, fmt.Errorf("dashboard: %w", err)
	}

	cancel()
	<-state.done
	return state.report, state.err
}
