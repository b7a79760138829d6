package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"loadq/internal/stats"
	"loadq/internal/styles"
	"loadq/internal/tui/components"
)

// Model is the in-run dashboard: counters, sparklines and a progress bar.
type Model struct {
	Stats    stats.Snapshot
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	StartTime  time.Time
	Duration   time.Duration
	LastUpdate time.Time
	LastIssued uint64

	Width  int
	Height int
}

func NewModel(totalDur time.Duration) Model {
	now := time.Now()
	return Model{
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "Issued req/s", styles.Success),
		LatencyLine: components.NewSparkline(40, "Latency P90 (ms)", styles.Warn),
		StartTime:   now,
		Duration:    totalDur,
		LastUpdate:  now,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stats.Snapshot:
		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		var delta uint64
		if msg.Issued > m.LastIssued {
			delta = msg.Issued - m.LastIssued
		}
		m.RpsLine.Add(float64(delta) / dt)
		m.LatencyLine.Add(msg.P90Ms)

		m.Stats = msg
		m.LastIssued = msg.Issued
		m.LastUpdate = now

		return m, m.Progress.SetPercent(m.Percent())

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 6
		if half < 10 {
			half = 10
		}
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// Percent is the share of the dispatch window that has elapsed.
func (m Model) Percent() float64 {
	if m.Duration <= 0 {
		return 1
	}
	pct := float64(time.Since(m.StartTime)) / float64(m.Duration)
	if pct > 1.0 {
		pct = 1.0
	}
	return pct
}

// ErrorRate is the percentage of completed units that failed or got a 4xx/5xx.
func (m Model) ErrorRate() float64 {
	if m.Stats.Completed == 0 {
		return 0
	}
	bad := m.Stats.Completed - m.Stats.Success
	return float64(bad) / float64(m.Stats.Completed) * 100
}

func (m Model) View() string {
	s := strings.Builder{}

	errRate := m.ErrorRate()
	col1 := fmt.Sprintf("REQ: %d\nINF: %d", m.Stats.Issued, m.Stats.Inflight)
	col2 := fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", errRate, m.Stats.Failures)
	col3 := fmt.Sprintf("RESP: %d\nKB: %d", m.Stats.Responses, m.Stats.Bytes/1024)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(styles.ErrorRateStyle(errRate).Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %.2f ms",
		m.Stats.P50Ms, m.Stats.P90Ms, m.Stats.P99Ms, m.Stats.MaxMs,
	)
	box := styles.Box
	if m.Width > 8 {
		box = box.Width(m.Width - 4)
	}
	s.WriteString(box.Render(latencies))
	s.WriteString("\n\n")

	if m.Percent() >= 1.0 && m.Stats.Inflight > 0 {
		s.WriteString(styles.Warn.Render(fmt.Sprintf("Draining %d in-flight requests...", m.Stats.Inflight)))
		s.WriteString("\n")
	}
	s.WriteString(m.Progress.View())

	return s.String()
}
