package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"loadq/internal/stats"
)

// ErrAlreadyStarted is returned when Run is called twice on one Runner.
var ErrAlreadyStarted = errors.New("runner already started")

// StatsUpdateChan carries live snapshots to progress displays.
type StatsUpdateChan chan stats.Snapshot

// Runner issues requests open-loop: one unit per tick, whether or not earlier
// units have finished. There is no cap on in-flight units, so concurrency grows
// with rate × latency. A high rate against a slow target can exhaust sockets,
// file descriptors or memory; pick the rate with that in mind.
type Runner struct {
	Cfg  Config
	Live *stats.Live

	// Updates, when set, receives a snapshot every UpdateInterval. Sends never
	// block; a slow reader just misses snapshots.
	Updates        StatsUpdateChan
	UpdateInterval time.Duration

	transport Transport
	log       logrus.FieldLogger
	collector *stats.Collector
	started   int32

	static *Request
	tmpl   *requestTemplate
}

type Option func(*Runner)

func WithTransport(t Transport) Option {
	return func(r *Runner) { r.transport = t }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Runner) { r.log = l }
}

func WithUpdates(ch StatsUpdateChan) Option {
	return func(r *Runner) { r.Updates = ch }
}

func NewRunner(cfg Config, opts ...Option) *Runner {
	cfg = cfg.withDefaults()

	r := &Runner{
		Cfg:            cfg,
		Live:           stats.NewLive(),
		UpdateInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	if r.transport == nil {
		r.transport = NewHTTPTransport(cfg.Timeout, cfg.Insecure)
	}

	expected := int(cfg.Rate*cfg.Duration.Seconds()) + 1
	if expected < 0 || expected > 1<<20 {
		expected = 1 << 20
	}
	r.collector = stats.NewCollector(expected)
	return r
}

// Run executes the whole run and returns its report. Configuration problems are
// returned before anything is sent. Cancelling ctx stops new ticks at once; units
// already started are still awaited and included in the report.
func (r *Runner) Run(ctx context.Context) (*stats.Report, error) {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return nil, ErrAlreadyStarted
	}
	if err := r.Cfg.Validate(); err != nil {
		return nil, err
	}
	if err := r.prepare(); err != nil {
		return nil, err
	}

	log := r.log.WithFields(logrus.Fields{
		"url":      r.Cfg.URL,
		"method":   r.Cfg.Method,
		"rate":     r.Cfg.Rate,
		"duration": r.Cfg.Duration,
	})
	log.Info("starting run")

	updatesCtx, stopUpdates := context.WithCancel(ctx)
	defer stopUpdates()
	var loopDone <-chan struct{}
	if r.Updates != nil {
		loopDone = r.StartTickLoop(updatesCtx, r.UpdateInterval)
	}

	start := time.Now()
	issued, interrupted := r.dispatch(ctx, start)

	log.WithFields(logrus.Fields{
		"issued":   issued,
		"inflight": r.Live.Inflight(),
	}).Debug("dispatch finished, draining")

	report := r.collector.Finalize(r.log)
	report.Elapsed = time.Since(start)
	if secs := report.Elapsed.Seconds(); secs > 0 {
		report.AchievedRate = float64(report.Total) / secs
	}
	report.Interrupted = interrupted

	stopUpdates()
	if loopDone != nil {
		<-loopDone
	}
	r.sendUpdate(true)

	log.WithFields(logrus.Fields{
		"total":   report.Total,
		"errors":  report.ErrorCount,
		"elapsed": report.Elapsed.Round(time.Millisecond),
	}).Info("run complete")

	if report.Total != int(issued) {
		// Every unit records exactly one outcome; anything else is a bug.
		return report, fmt.Errorf("recorded %d outcomes for %d issued requests", report.Total, issued)
	}
	return report, nil
}

func (r *Runner) prepare() error {
	if r.Cfg.Template {
		rt, err := newRequestTemplate(r.Cfg)
		if err != nil {
			return err
		}
		r.tmpl = rt
		return nil
	}

	r.static = &Request{
		Method:  r.Cfg.Method,
		URL:     r.Cfg.URL,
		Headers: r.Cfg.Headers,
	}
	if r.Cfg.Body != "" {
		r.static.Body = []byte(r.Cfg.Body)
	}
	return nil
}

// dispatch is the pacing loop. Tick n is due at start + n/rate; a late tick is
// issued as soon as possible, so ticks drift but are never skipped or doubled.
// It returns once the window has closed and every started unit has finished.
func (r *Runner) dispatch(ctx context.Context, start time.Time) (issued int64, interrupted bool) {
	var wg sync.WaitGroup
	defer wg.Wait()

	// In-flight units outlive a cancelled run so they can be drained.
	unitCtx := context.WithoutCancel(ctx)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return issued, true
		}
		if time.Since(start) >= r.Cfg.Duration {
			return issued, false
		}

		seq := issued
		wg.Add(1)
		r.Live.Begin()
		go func() {
			defer wg.Done()
			r.execute(unitCtx, seq)
		}()
		issued++

		// A tick due after the window closes is never issued, so sleep at most
		// until the window ends.
		due := r.Cfg.tickOffset(issued)
		if due > r.Cfg.Duration {
			due = r.Cfg.Duration
		}
		wait := time.Until(start.Add(due))
		if wait <= 0 {
			continue
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return issued, true
		case <-timer.C:
		}
	}
}

// execute is one unit: build, send, record. It always records exactly one outcome.
func (r *Runner) execute(ctx context.Context, seq int64) {
	var outcome stats.Outcome

	req, err := r.request(seq)
	if err != nil {
		r.log.WithError(err).WithField("seq", seq).Warn("failed to render request")
		outcome = stats.Failed(stats.FailureOther, 0)
		outcome.TimeStamp = time.Now()
	} else {
		outcome = r.send(ctx, req)
	}

	r.collector.Record(outcome)
	r.Live.End(outcome)
}

func (r *Runner) request(seq int64) (*Request, error) {
	if r.tmpl == nil {
		return r.static, nil
	}
	return r.tmpl.render(TemplateData{RequestID: uuid.NewString(), Seq: seq})
}

func (r *Runner) send(ctx context.Context, req *Request) (o stats.Outcome) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("panic", p).Error("transport panicked")
			o = stats.Failed(stats.FailureOther, time.Since(start))
			o.TimeStamp = start
		}
	}()

	r.log.WithField("url", req.URL).Debug("making request")

	resp, err := r.transport.Send(ctx, req)
	latency := time.Since(start)

	if err != nil {
		kind := Classify(err)
		r.log.WithError(err).WithField("kind", kind).Debug("request failed")
		o = stats.Failed(kind, latency)
	} else {
		o = stats.Responded(resp.StatusCode, latency)
		o.Bytes = resp.Bytes
	}
	o.TimeStamp = start
	return o
}

// StartTickLoop pushes a snapshot to Updates every interval until ctx is done.
// The returned channel is closed once the loop has exited.
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate(false)
			}
		}
	}()
	return done
}

func (r *Runner) sendUpdate(done bool) {
	if r.Updates == nil {
		return
	}
	s := r.Live.Snapshot()
	s.Done = done

	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, the display acts as backpressure
	}
}

// Outcomes returns a copy of the outcomes recorded so far.
func (r *Runner) Outcomes() []stats.Outcome {
	return r.collector.Outcomes()
}

func (r *Runner) Close() {
	if t, ok := r.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}
