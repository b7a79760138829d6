package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"loadq/internal/report"
	"loadq/internal/runner"
	"loadq/internal/stats"
	"loadq/internal/storage"
)

// Options controls what happens around a headless run.
type Options struct {
	// OutPrefix, when set, exports <prefix>_summary.json.
	OutPrefix string

	// History stores the summary in the bbolt history at HistoryPath.
	History     bool
	HistoryPath string

	Stdout   io.Writer
	Progress io.Writer

	// Transport overrides the HTTP transport, used by tests.
	Transport runner.Transport
}

func (o *Options) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Progress == nil {
		o.Progress = os.Stderr
	}
}

type runResult struct {
	report *stats.Report
	err    error
}

// Start runs cfg headless: header, progress line, then the report.
func Start(ctx context.Context, cfg runner.Config, opts Options, log logrus.FieldLogger) (*stats.Report, error) {
	opts.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	updates := make(runner.StatsUpdateChan, 100)
	ropts := []runner.Option{runner.WithLogger(log), runner.WithUpdates(updates)}
	if opts.Transport != nil {
		ropts = append(ropts, runner.WithTransport(opts.Transport))
	}
	r := runner.NewRunner(cfg, ropts...)
	defer r.Close()
	cfg = r.Cfg

	printHeader(opts.Stdout, cfg)

	results := make(chan runResult, 1)
	startTime := time.Now()
	go func() {
		rep, err := r.Run(ctx)
		results <- runResult{rep, err}
	}()

	var res runResult
monitor:
	for {
		select {
		case s := <-updates:
			printProgress(opts.Progress, s, time.Since(startTime), cfg.Duration)
		case res = <-results:
			break monitor
		}
	}
	fmt.Fprintln(opts.Progress)

	if res.report == nil {
		return nil, res.err
	}
	if res.err != nil {
		log.WithError(res.err).Error("run finished with an inconsistent outcome count")
	}

	if err := report.WriteText(opts.Stdout, res.report); err != nil {
		return res.report, err
	}
	AutoReport(opts, cfg, res.report, log)
	return res.report, res.err
}

func printHeader(w io.Writer, cfg runner.Config) {
	fmt.Fprintf(w, "\n🚀 STARTING LOADQ RUN\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Target URL : %s\n", cfg.URL)
	fmt.Fprintf(w, "Method     : %s\n", strings.ToUpper(cfg.Method))
	fmt.Fprintf(w, "Rate       : %g req/s (every %s)\n", cfg.Rate, cfg.Interval())
	fmt.Fprintf(w, "Duration   : %s\n", cfg.Duration)
	if cfg.Timeout > 0 {
		fmt.Fprintf(w, "Timeout    : %s\n", cfg.Timeout)
	} else {
		fmt.Fprintf(w, "Timeout    : none\n")
	}
	fmt.Fprintf(w, "======================================================================\n\n")
}

func printProgress(w io.Writer, s stats.Snapshot, elapsed, total time.Duration) {
	pct := elapsed.Seconds() / total.Seconds()
	if pct > 1.0 {
		pct = 1.0
	}

	if elapsed >= total && s.Inflight > 0 && !s.Done {
		fmt.Fprintf(w, "\r%s %3.0f%% | %s/%s | Draining: %d requests...                ",
			progressBar(1.0, 20), 100.0,
			elapsed.Round(time.Second), total,
			s.Inflight)
		return
	}

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(s.Issued) / elapsed.Seconds()
	}
	fmt.Fprintf(w, "\r%s %3.0f%% | %s/%s | Inf: %3d | RPS: %.1f | OK: %d | Err: %d | P90: %.1fms",
		progressBar(pct, 20), pct*100,
		elapsed.Round(time.Second), total,
		s.Inflight,
		rps,
		s.Success,
		s.Failures+(s.Responses-s.Success),
		s.P90Ms,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// AutoReport exports the summary and records history as opts ask.
func AutoReport(opts Options, cfg runner.Config, rep *stats.Report, log logrus.FieldLogger) {
	if opts.OutPrefix == "" && !opts.History {
		return
	}
	opts.defaults()

	runID := uuid.NewString()
	summary := report.NewSummary(runID, cfg, rep)

	if opts.OutPrefix != "" {
		path, err := report.ExportSummary(summary, opts.OutPrefix)
		if err != nil {
			log.WithError(err).Error("failed to export summary")
		} else {
			fmt.Fprintf(opts.Stdout, "💾 Summary saved to %s\n", path)
		}
	}

	if opts.History {
		if err := SaveHistory(opts.HistoryPath, cfg, summary); err != nil {
			log.WithError(err).Error("failed to save run history")
		}
	}
}

// SaveHistory appends a run summary to the history store.
func SaveHistory(path string, cfg runner.Config, summary report.Summary) error {
	store, err := storage.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Save(storage.HistoryItem{
		ID:        summary.RunID,
		Timestamp: summary.Timestamp,
		Config:    cfg,
		Summary:   summary,
	})
}
