package result

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"loadq/internal/stats"
	"loadq/internal/styles"
)

// Model shows a finished run's report.
type Model struct {
	Report *stats.Report
	Err    error

	Width  int
	Height int
}

func NewModel(r *stats.Report, err error) Model {
	return Model{Report: r, Err: err}
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

func (m Model) View() string {
	s := strings.Builder{}

	if m.Report == nil {
		s.WriteString(styles.Error.Render(fmt.Sprintf("Run failed: %v", m.Err)))
		s.WriteString("\n\n")
		s.WriteString(styles.Subtle.Render("Press q to quit"))
		return s.String()
	}
	r := m.Report

	title := "📊 Test Complete"
	if r.Interrupted {
		title = "📊 Test Interrupted (partial results)"
	}
	s.WriteString(styles.Heading.Render(title))
	s.WriteString("\n\n")

	s.WriteString(styles.Success.Render("Overview"))
	s.WriteString("\n")
	overview := fmt.Sprintf(
		"Total:     %d\nResponses: %d\nErrors:    %d\nSuccess:   %.1f%%\nRate:      %.2f req/s",
		r.Total, r.ResponseCount, r.ErrorCount, r.SuccessRate(), r.AchievedRate,
	)
	s.WriteString(styles.Box.Render(overview))
	s.WriteString("\n\n")

	s.WriteString(styles.Success.Render("Latency"))
	s.WriteString("\n")
	s.WriteString(styles.Box.Render(latencyBlock("all responses", r.Overall) + "\n" + latencyBlock("success", r.SuccessLatency)))
	s.WriteString("\n\n")

	if m.Err != nil {
		s.WriteString(styles.Warn.Render(m.Err.Error()))
		s.WriteString("\n")
	}
	s.WriteString(styles.Subtle.Render("Press q to quit, the full report is printed on exit"))

	return s.String()
}

func latencyBlock(label string, l *stats.LatencySummary) string {
	if l == nil {
		return fmt.Sprintf("%-14s n/a", label)
	}
	return fmt.Sprintf("%-14s avg %.1fms  p50 %.1fms  p75 %.1fms  p95 %.1fms  p99 %.1fms",
		label,
		l.Mean.Seconds()*1000, l.P50.Seconds()*1000, l.P75.Seconds()*1000,
		l.P95.Seconds()*1000, l.P99.Seconds()*1000)
}
