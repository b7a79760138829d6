package stats

import (
	"math"
	"sort"
	"time"
)

// Percentile returns the p-th percentile (0..100) of an ascending sample using
// linear interpolation between the closest ranks, index = p/100 * (n-1).
// The second return value is false for an empty sample.
func Percentile(sorted []float64, p float64) (float64, bool) {
	n := len(sorted)
	if n == 0 {
		return 0, false
	}
	if p <= 0 {
		return sorted[0], true
	}
	if p >= 100 {
		return sorted[n-1], true
	}

	index := (p / 100.0) * float64(n-1)
	lower := int(math.Floor(index))
	upper := lower + 1
	if upper >= n {
		return sorted[n-1], true
	}

	weight := index - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight, true
}

// LatencySummary describes one group of latencies. A nil *LatencySummary means the
// group was empty.
type LatencySummary struct {
	Count int           `json:"count"`
	Mean  time.Duration `json:"mean"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P50   time.Duration `json:"p50"`
	P75   time.Duration `json:"p75"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

func summarizeLatencies(latencies []time.Duration) *LatencySummary {
	if len(latencies) == 0 {
		return nil
	}

	sorted := make([]float64, len(latencies))
	var sum int64
	for i, l := range latencies {
		sorted[i] = float64(l)
		sum += int64(l)
	}
	sort.Float64s(sorted)

	at := func(p float64) time.Duration {
		v, _ := Percentile(sorted, p)
		return time.Duration(math.Round(v))
	}

	return &LatencySummary{
		Count: len(latencies),
		Mean:  time.Duration(math.Round(float64(sum) / float64(len(latencies)))),
		Min:   time.Duration(sorted[0]),
		Max:   time.Duration(sorted[len(sorted)-1]),
		P50:   at(50),
		P75:   at(75),
		P95:   at(95),
		P99:   at(99),
	}
}
