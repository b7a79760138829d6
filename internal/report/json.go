package report

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"loadq/internal/runner"
	"loadq/internal/stats"
)

// Summary is the machine-readable form of a run: its configuration and the
// reduced report. Raw outcomes are never included.
type Summary struct {
	RunID     string    `json:"run_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	URL      string  `json:"url"`
	Method   string  `json:"method"`
	Rate     float64 `json:"rate"`
	Duration string  `json:"duration"`

	Total              int     `json:"total"`
	ErrorCount         int     `json:"error_count"`
	ResponseCount      int     `json:"response_count"`
	UnknownStatusCount int     `json:"unknown_status_count"`
	SuccessRate        float64 `json:"success_rate"`
	ElapsedMs          float64 `json:"elapsed_ms"`
	AchievedRate       float64 `json:"achieved_rate"`
	Interrupted        bool    `json:"interrupted,omitempty"`

	Overall     *Latency `json:"latency,omitempty"`
	Success     *Latency `json:"latency_success,omitempty"`
	ClientError *Latency `json:"latency_client_error,omitempty"`
	ServerError *Latency `json:"latency_server_error,omitempty"`

	ClassCounts  map[stats.StatusClass]int `json:"class_counts"`
	ErrorsByKind map[stats.FailureKind]int `json:"errors_by_kind"`
	StatusCodes  map[int]int               `json:"status_codes"`
}

// Latency is a stats.LatencySummary in milliseconds.
type Latency struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P75Ms  float64 `json:"p75_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

func NewSummary(runID string, cfg runner.Config, r *stats.Report) Summary {
	return Summary{
		RunID:              runID,
		Timestamp:          time.Now().UTC(),
		URL:                cfg.URL,
		Method:             cfg.Method,
		Rate:               cfg.Rate,
		Duration:           cfg.Duration.String(),
		Total:              r.Total,
		ErrorCount:         r.ErrorCount,
		ResponseCount:      r.ResponseCount,
		UnknownStatusCount: r.UnknownStatusCount,
		SuccessRate:        r.SuccessRate(),
		ElapsedMs:          toMs(r.Elapsed),
		AchievedRate:       r.AchievedRate,
		Interrupted:        r.Interrupted,
		Overall:            latency(r.Overall),
		Success:            latency(r.SuccessLatency),
		ClientError:        latency(r.ClientError.Latency),
		ServerError:        latency(r.ServerError.Latency),
		ClassCounts: map[stats.StatusClass]int{
			stats.ClassSuccess:     r.Success.Count,
			stats.ClassClientError: r.ClientError.Count,
			stats.ClassServerError: r.ServerError.Count,
			stats.ClassUnknown:     r.UnknownStatusCount,
		},
		ErrorsByKind: r.ErrorsByKind,
		StatusCodes:  r.StatusCodes,
	}
}

func latency(s *stats.LatencySummary) *Latency {
	if s == nil {
		return nil
	}
	return &Latency{
		Count:  s.Count,
		MeanMs: toMs(s.Mean),
		MinMs:  toMs(s.Min),
		MaxMs:  toMs(s.Max),
		P50Ms:  toMs(s.P50),
		P75Ms:  toMs(s.P75),
		P95Ms:  toMs(s.P95),
		P99Ms:  toMs(s.P99),
	}
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ExportSummary writes the summary to <prefix>_summary.json and returns the path.
func ExportSummary(s Summary, prefix string) (string, error) {
	path := prefix + "_summary.json"
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := WriteJSON(f, s); err != nil {
		return "", err
	}
	return path, f.Close()
}
