package stats

import (
	"time"

	"github.com/sirupsen/logrus"
)

// StatusClass is the semantic bucket of an HTTP status code.
type StatusClass string

const (
	ClassSuccess     StatusClass = "success"
	ClassClientError StatusClass = "client_error"
	ClassServerError StatusClass = "server_error"
	ClassUnknown     StatusClass = "unknown"
)

// ClassifyStatus maps a status code onto its bucket: [200,400) success,
// [400,500) client error, [500,600) server error, anything else unknown.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 400:
		return ClassSuccess
	case code >= 400 && code < 500:
		return ClassClientError
	case code >= 500 && code < 600:
		return ClassServerError
	default:
		return ClassUnknown
	}
}

type ClassSummary struct {
	Count   int             `json:"count"`
	Latency *LatencySummary `json:"latency,omitempty"`
}

// Report is the immutable summary of a finished run.
type Report struct {
	Total              int `json:"total"`
	ErrorCount         int `json:"error_count"`
	ResponseCount      int `json:"response_count"`
	UnknownStatusCount int `json:"unknown_status_count"`

	Success     ClassSummary `json:"success"`
	ClientError ClassSummary `json:"client_error"`
	ServerError ClassSummary `json:"server_error"`

	// Overall covers every response, including unknown status codes.
	Overall        *LatencySummary `json:"overall,omitempty"`
	SuccessLatency *LatencySummary `json:"success_latency,omitempty"`
	FailureLatency *LatencySummary `json:"failure_latency,omitempty"`

	ErrorsByKind map[FailureKind]int `json:"errors_by_kind"`
	StatusCodes  map[int]int         `json:"status_codes"`

	// Filled in by the runner once the run is over.
	Elapsed      time.Duration `json:"elapsed"`
	AchievedRate float64       `json:"achieved_rate"`
	Interrupted  bool          `json:"interrupted,omitempty"`
}

// SuccessRate is the share of responses in the success class, in percent.
// It is zero when there were no responses.
func (r *Report) SuccessRate() float64 {
	if r.ResponseCount == 0 {
		return 0
	}
	return float64(r.Success.Count) / float64(r.ResponseCount) * 100
}

// Summarize reduces a complete outcome collection into a Report. It does not
// depend on the order of outcomes and does not modify the slice.
func Summarize(outcomes []Outcome, log logrus.FieldLogger) *Report {
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := &Report{
		Total:        len(outcomes),
		ErrorsByKind: make(map[FailureKind]int),
		StatusCodes:  make(map[int]int),
	}

	var (
		all      []time.Duration
		failures []time.Duration
		byClass  = make(map[StatusClass][]time.Duration)
	)

	for _, o := range outcomes {
		if o.IsFailure() {
			r.ErrorCount++
			r.ErrorsByKind[o.ErrorKind]++
			failures = append(failures, o.Latency)
			continue
		}

		r.ResponseCount++
		r.StatusCodes[o.StatusCode]++
		all = append(all, o.Latency)

		class := ClassifyStatus(o.StatusCode)
		if class == ClassUnknown {
			r.UnknownStatusCount++
			log.WithField("status", o.StatusCode).Warn("unknown HTTP status code")
			continue
		}
		byClass[class] = append(byClass[class], o.Latency)
	}

	r.Success = classSummary(byClass[ClassSuccess])
	r.ClientError = classSummary(byClass[ClassClientError])
	r.ServerError = classSummary(byClass[ClassServerError])

	r.Overall = summarizeLatencies(all)
	r.SuccessLatency = r.Success.Latency
	r.FailureLatency = summarizeLatencies(failures)

	return r
}

func classSummary(latencies []time.Duration) ClassSummary {
	return ClassSummary{
		Count:   len(latencies),
		Latency: summarizeLatencies(latencies),
	}
}
