package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadq/internal/runner"
	"loadq/internal/stats"
)

func TestExportSummary(t *testing.T) {
	cfg := runner.Config{URL: "http://svc/", Method: "GET", Rate: 5, Duration: 2 * time.Second}
	s := NewSummary("run-1", cfg, sampleReport())

	prefix := filepath.Join(t.TempDir(), "out")
	path, err := ExportSummary(s, prefix)
	require.NoError(t, err)
	assert.Equal(t, prefix+"_summary.json", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, "2s", got["duration"])
	assert.Equal(t, 8.0, got["total"])
	assert.Equal(t, 80.0, got["success_rate"])
	assert.Equal(t, 2000.0, got["elapsed_ms"])

	success := got["latency_success"].(map[string]interface{})
	assert.Equal(t, 25.0, success["p50_ms"])

	assert.NotContains(t, got, "latency_client_error")
	assert.Equal(t, map[string]interface{}{"200": 4.0, "503": 1.0}, got["status_codes"])
}

func TestNewSummaryClassCounts(t *testing.T) {
	s := NewSummary("", runner.Config{}, sampleReport())
	assert.Equal(t, 4, s.ClassCounts[stats.ClassSuccess])
	assert.Equal(t, 1, s.ClassCounts[stats.ClassServerError])
	assert.Nil(t, s.ClientError)
	require.NotNil(t, s.ServerError)
	assert.Equal(t, 100.0, s.ServerError.P50Ms)
}
