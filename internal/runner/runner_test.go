package runner

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadq/internal/stats"
)

type fakeTransport struct {
	calls int64
	fn    func(req *Request) (Response, error)
}

func (f *fakeTransport) Send(_ context.Context, req *Request) (Response, error) {
	atomic.AddInt64(&f.calls, 1)
	return f.fn(req)
}

func (f *fakeTransport) Calls() int64 {
	return atomic.LoadInt64(&f.calls)
}

func okTransport() *fakeTransport {
	return &fakeTransport{fn: func(*Request) (Response, error) {
		return Response{StatusCode: http.StatusOK, Bytes: 2}, nil
	}}
}

func newTestRunner(t *testing.T, cfg Config, tr Transport) *Runner {
	t.Helper()
	log, _ := test.NewNullLogger()
	return NewRunner(cfg, WithTransport(tr), WithLogger(log))
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero rate", Config{URL: "http://localhost", Rate: 0, Duration: time.Second}},
		{"negative rate", Config{URL: "http://localhost", Rate: -1, Duration: time.Second}},
		{"zero duration", Config{URL: "http://localhost", Rate: 5, Duration: 0}},
		{"missing url", Config{Rate: 5, Duration: time.Second}},
		{"bad scheme", Config{URL: "ftp://localhost", Rate: 5, Duration: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := okTransport()
			r := newTestRunner(t, tt.cfg, tr)

			report, err := r.Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Nil(t, report)
			assert.Equal(t, int64(0), tr.Calls())
		})
	}
}

func TestRunIssuesOneRequestPerTick(t *testing.T) {
	tr := okTransport()
	r := newTestRunner(t, Config{URL: "http://target", Rate: 5, Duration: 2 * time.Second}, tr)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 10, report.Total, 1)
	assert.Equal(t, int(tr.Calls()), report.Total)
	assert.Equal(t, report.Total, report.ResponseCount)
	assert.Equal(t, 0, report.ErrorCount)
	assert.Equal(t, 100.0, report.SuccessRate())
	require.NotNil(t, report.Overall)
	assert.GreaterOrEqual(t, report.Overall.P50, time.Duration(0))
	assert.GreaterOrEqual(t, report.Overall.P99, time.Duration(0))
	assert.False(t, report.Interrupted)
	assert.GreaterOrEqual(t, report.Elapsed, 2*time.Second)
}

func TestRunVeryLowRateIssuesOnlyFirstTick(t *testing.T) {
	tr := okTransport()
	r := newTestRunner(t, Config{URL: "http://target", Rate: 1e-9, Duration: 300 * time.Millisecond}, tr)

	start := time.Now()
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, int64(1), tr.Calls())
	assert.False(t, report.Interrupted)
	// The second tick is decades away; the window closing must still end the run.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunEndsAtWindowWhenNextTickIsLater(t *testing.T) {
	tr := okTransport()
	r := newTestRunner(t, Config{URL: "http://target", Rate: 0.1, Duration: 200 * time.Millisecond}, tr)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Less(t, report.Elapsed, 2*time.Second)
}

func TestRunTooLowRateRejected(t *testing.T) {
	tr := okTransport()
	r := newTestRunner(t, Config{URL: "http://target", Rate: 1e-11, Duration: 300 * time.Millisecond}, tr)

	report, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, report)
	assert.Zero(t, tr.Calls())
}

func TestRunCatchesUpWithoutDuplicating(t *testing.T) {
	const rate = 20000.0
	duration := 100 * time.Millisecond
	// Timers cannot fire every 50µs, so the loop runs behind and issues late
	// ticks back-to-back.
	tr := &fakeTransport{fn: func(*Request) (Response, error) {
		time.Sleep(time.Millisecond)
		return Response{StatusCode: http.StatusOK}, nil
	}}
	r := newTestRunner(t, Config{URL: "http://target", Rate: rate, Duration: duration}, tr)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	limit := int(duration.Seconds()*rate) + 1
	assert.LessOrEqual(t, report.Total, limit)
	assert.Greater(t, report.Total, limit/4)
	assert.Equal(t, int(tr.Calls()), report.Total)
	assert.Len(t, r.Outcomes(), report.Total)
	assert.Equal(t, report.Total, report.Success.Count)
}

func TestRunAllFailures(t *testing.T) {
	tr := &fakeTransport{fn: func(*Request) (Response, error) {
		return Response{}, &TransportError{Kind: stats.FailureConnectionRefused, Err: syscall.ECONNREFUSED}
	}}
	r := newTestRunner(t, Config{URL: "http://target", Rate: 50, Duration: 200 * time.Millisecond}, tr)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Greater(t, report.Total, 0)
	assert.Equal(t, report.Total, report.ErrorCount)
	assert.Equal(t, 0, report.ResponseCount)
	assert.Equal(t, map[stats.FailureKind]int{stats.FailureConnectionRefused: report.Total}, report.ErrorsByKind)
	assert.Nil(t, report.Overall)
}

func TestRunIsOpenLoop(t *testing.T) {
	var inflight, peak int64
	tr := &fakeTransport{fn: func(*Request) (Response, error) {
		n := atomic.AddInt64(&inflight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(300 * time.Millisecond)
		atomic.AddInt64(&inflight, -1)
		return Response{StatusCode: 200}, nil
	}}
	r := newTestRunner(t, Config{URL: "http://target", Rate: 50, Duration: 400 * time.Millisecond}, tr)

	start := time.Now()
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	// Slow responses must not slow down issuing.
	assert.InDelta(t, 20, report.Total, 2)
	assert.Greater(t, atomic.LoadInt64(&peak), int64(5))
	// The last unit is awaited even though it started right before the deadline.
	assert.GreaterOrEqual(t, time.Since(start), 650*time.Millisecond)
	assert.Equal(t, report.Total, report.ResponseCount)
	assert.Equal(t, int64(0), r.Live.Inflight())
}

func TestRunRecoversTransportPanic(t *testing.T) {
	var n int64
	tr := &fakeTransport{fn: func(*Request) (Response, error) {
		if atomic.AddInt64(&n, 1)%2 == 0 {
			panic("boom")
		}
		return Response{StatusCode: 204}, nil
	}}
	r := newTestRunner(t, Config{URL: "http://target", Rate: 40, Duration: 250 * time.Millisecond}, tr)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, report.Total, report.ResponseCount+report.ErrorCount)
	assert.Equal(t, report.ErrorCount, report.ErrorsByKind[stats.FailureOther])
	assert.Greater(t, report.ErrorCount, 0)
	assert.Greater(t, report.Success.Count, 0)
}

func TestRunCancelDrainsInflight(t *testing.T) {
	release := make(chan struct{})
	tr := &fakeTransport{fn: func(*Request) (Response, error) {
		<-release
		return Response{StatusCode: 200}, nil
	}}
	r := newTestRunner(t, Config{URL: "http://target", Rate: 20, Duration: time.Minute}, tr)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()

	start := time.Now()
	report, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, report.Interrupted)
	assert.Greater(t, report.Total, 0)
	assert.Equal(t, report.Total, report.ResponseCount)
	assert.Equal(t, int(tr.Calls()), report.Total)
}

func TestRunTwice(t *testing.T) {
	r := newTestRunner(t, Config{URL: "http://target", Rate: 10, Duration: 50 * time.Millisecond}, okTransport())

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestRunSendsFinalUpdate(t *testing.T) {
	updates := make(StatsUpdateChan, 100)
	log, _ := test.NewNullLogger()
	r := NewRunner(
		Config{URL: "http://target", Rate: 20, Duration: 300 * time.Millisecond},
		WithTransport(okTransport()),
		WithLogger(log),
		WithUpdates(updates),
	)
	r.UpdateInterval = 50 * time.Millisecond

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	var last stats.Snapshot
	var got int
	for len(updates) > 0 {
		last = <-updates
		got++
	}
	assert.Greater(t, got, 1)
	assert.True(t, last.Done)
	assert.Equal(t, uint64(report.Total), last.Completed)
	assert.Equal(t, int64(0), last.Inflight)
}

func TestRunAgainstHTTPServer(t *testing.T) {
	var (
		mu      sync.Mutex
		methods = map[string]int{}
		bodies  = map[string]int{}
		headers = map[string]int{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)

		mu.Lock()
		methods[req.Method]++
		bodies[string(b)]++
		headers[req.Header.Get("X-Test")]++
		mu.Unlock()

		if strings.HasSuffix(req.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
		}
		w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer srv.Close()

	cfg := Config{
		URL:      srv.URL + "/missing",
		Rate:     40,
		Duration: 250 * time.Millisecond,
		Method:   "post",
		Headers:  map[string]string{"X-Test": "yes"},
		Body:     "payload",
	}
	log, _ := test.NewNullLogger()
	r := NewRunner(cfg, WithLogger(log))
	defer r.Close()

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Greater(t, report.Total, 0)
	assert.Equal(t, report.Total, report.ClientError.Count)
	assert.Equal(t, report.Total, report.StatusCodes[http.StatusNotFound])
	assert.Equal(t, 0.0, report.SuccessRate())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, report.Total, methods[http.MethodPost])
	assert.Equal(t, report.Total, bodies["payload"])
	assert.Equal(t, report.Total, headers["yes"])
}

func TestRunTemplatedRequests(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	tr := &fakeTransport{fn: func(req *Request) (Response, error) {
		mu.Lock()
		seen[req.Headers["X-Request-ID"]+"|"+string(req.Body)] = true
		mu.Unlock()
		return Response{StatusCode: 200}, nil
	}}

	cfg := Config{
		URL:      "http://target/{{seq}}",
		Rate:     50,
		Duration: 200 * time.Millisecond,
		Headers:  map[string]string{"X-Request-ID": "{{requestID}}"},
		Body:     `{"n": {{seq}}}`,
		Template: true,
	}
	r := newTestRunner(t, cfg, tr)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, report.Total)
}

func TestRunRejectsBadTemplate(t *testing.T) {
	tr := okTransport()
	cfg := Config{
		URL:      "http://target/{{",
		Rate:     5,
		Duration: time.Second,
		Template: true,
	}
	r := newTestRunner(t, cfg, tr)

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, int64(0), tr.Calls())
}
