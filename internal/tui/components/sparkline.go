package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []rune(" ▁▂▃▄▅▆▇█")

// Sparkline is a one-row scrolling chart of the last Width samples.
type Sparkline struct {
	Label string
	Width int
	Style lipgloss.Style

	data []float64
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Label: label,
		Width: width,
		Style: style,
		data:  make([]float64, 0, width),
	}
}

func (s *Sparkline) Add(v float64) {
	if v < 0 {
		v = 0
	}
	s.data = append(s.data, v)
	if s.Width > 0 && len(s.data) > s.Width {
		s.data = s.data[len(s.data)-s.Width:]
	}
}

// Last returns the newest sample, or 0.
func (s Sparkline) Last() float64 {
	if len(s.data) == 0 {
		return 0
	}
	return s.data[len(s.data)-1]
}

// Line renders just the chart, scaled to the visible window's maximum.
func (s Sparkline) Line() string {
	if s.Width <= 0 {
		return ""
	}

	peak := 0.0
	for _, v := range s.data {
		if v > peak {
			peak = v
		}
	}

	var b strings.Builder
	for _, v := range s.data {
		idx := 0
		if peak > 0 {
			idx = int(v / peak * float64(len(levels)-1))
		}
		b.WriteRune(levels[idx])
	}
	if pad := s.Width - len(s.data); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	return b.String()
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}
	return s.Style.Render(s.Label) + "\n" + s.Style.Render(s.Line())
}
