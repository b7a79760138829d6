package storage

import (
	"time"

	"loadq/internal/runner"
	"loadq/internal/report"
)

// MaxItems is how many runs the history keeps before pruning the oldest.
const MaxItems = 100

// HistoryItem is one stored run: its configuration and reduced summary.
type HistoryItem struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Config    runner.Config  `json:"config"`
	Summary   report.Summary `json:"summary"`
}
