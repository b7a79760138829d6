package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadq/internal/stats"
)

func sampleReport() *stats.Report {
	ms := time.Millisecond
	log, _ := test.NewNullLogger()
	r := stats.Summarize([]stats.Outcome{
		stats.Responded(200, 10*ms),
		stats.Responded(200, 20*ms),
		stats.Responded(200, 30*ms),
		stats.Responded(200, 40*ms),
		stats.Responded(503, 100*ms),
		stats.Failed(stats.FailureTimeout, time.Second),
		stats.Failed(stats.FailureConnectionRefused, ms),
		stats.Failed(stats.FailureConnectionRefused, ms),
	}, log)
	r.Elapsed = 2 * time.Second
	r.AchievedRate = 4
	return r
}

func TestWriteTextOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport()))
	out := buf.String()

	ordered := []string{
		"Total requests sent: 8",
		"number of requests got errors: 3",
		"number of requests got responses: 5",
		"success rate: 80.0%",
		"p50 latency: 30.0ms",
		"p99 latency:",
		"average latency of success responses: 25.0ms",
		"p50 latency of success responses: 25.0ms",
		"-- More Details --",
		"Error count by type: connection_refused=2, timeout=1",
		"Response count by status code: 200=4, 503=1",
		"success=4, client_error=0, server_error=1, unknown=0",
		"Actual rate   : 4.00 req/s",
	}

	pos := 0
	for _, want := range ordered {
		idx := strings.Index(out[pos:], want)
		if !assert.GreaterOrEqual(t, idx, 0, "missing or out of order: %q\n%s", want, out) {
			return
		}
		pos += idx + len(want)
	}
}

func TestWriteTextNoResponses(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := stats.Summarize([]stats.Outcome{
		stats.Failed(stats.FailureDNS, time.Millisecond),
	}, log)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "number of requests got responses: 0")
	assert.NotContains(t, out, "success rate")
	assert.NotContains(t, out, "p50 latency")
	assert.Contains(t, out, "Error count by type: dns=1")
	assert.Contains(t, out, "Response count by status code: none")
}

func TestWriteTextInterrupted(t *testing.T) {
	r := sampleReport()
	r.Interrupted = true

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	assert.Contains(t, buf.String(), "results are partial")
}
