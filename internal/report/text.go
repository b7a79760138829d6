// Package report renders a finished run's stats.Report for people and machines.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"loadq/internal/stats"
	"loadq/internal/styles"
)

const rule = "======================================================================"

// WriteText prints the report: totals first, then latency figures when there
// were responses, then the breakdown by failure category and status code.
func WriteText(w io.Writer, r *stats.Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n%s\n", styles.Heading.Render("📊 LOAD TEST RESULTS"), rule)
	if r.Interrupted {
		fmt.Fprintf(&b, "%s\n", styles.Warn.Render("run interrupted, results are partial"))
	}

	fmt.Fprintf(&b, "Total requests sent: %d\n", r.Total)
	fmt.Fprintf(&b, "  - number of requests got errors: %d\n", r.ErrorCount)
	fmt.Fprintf(&b, "  - number of requests got responses: %d\n", r.ResponseCount)

	if r.ResponseCount > 0 {
		fmt.Fprintf(&b, "    - success rate: %.1f%%\n", r.SuccessRate())
		writeLatency(&b, "", r.Overall)
		writeLatency(&b, " of success responses", r.SuccessLatency)
	}

	fmt.Fprintf(&b, "\n-- More Details --\n")
	fmt.Fprintf(&b, "  - Error count by type: %s\n", formatKinds(r.ErrorsByKind))
	fmt.Fprintf(&b, "  - Response count by status code: %s\n", formatStatuses(r.StatusCodes))
	fmt.Fprintf(&b, "  - Response count by class: success=%d, client_error=%d, server_error=%d, unknown=%d\n",
		r.Success.Count, r.ClientError.Count, r.ServerError.Count, r.UnknownStatusCount)

	if r.Elapsed > 0 {
		fmt.Fprintf(&b, "\nTotal duration: %s\n", r.Elapsed.Round(time.Millisecond))
		fmt.Fprintf(&b, "Actual rate   : %.2f req/s\n", r.AchievedRate)
	}
	fmt.Fprintf(&b, "%s\n", rule)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeLatency(b *strings.Builder, suffix string, s *stats.LatencySummary) {
	if s == nil {
		return
	}
	fmt.Fprintf(b, "    - average latency%s: %s\n", suffix, ms(s.Mean))
	fmt.Fprintf(b, "    - p50 latency%s: %s\n", suffix, ms(s.P50))
	fmt.Fprintf(b, "    - p75 latency%s: %s\n", suffix, ms(s.P75))
	fmt.Fprintf(b, "    - p95 latency%s: %s\n", suffix, ms(s.P95))
	fmt.Fprintf(b, "    - p99 latency%s: %s\n", suffix, ms(s.P99))
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}

func formatKinds(m map[stats.FailureKind]int) string {
	if len(m) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[stats.FailureKind(k)])
	}
	return strings.Join(parts, ", ")
}

func formatStatuses(m map[int]int) string {
	if len(m) == 0 {
		return "none"
	}
	codes := make([]int, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Ints(codes)

	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("%d=%d", c, m[c])
	}
	return strings.Join(parts, ", ")
}
