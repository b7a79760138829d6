package stats

import "time"

// FailureKind is the stable category of a transport failure. The set is small on
// purpose so reports stay comparable between runs and transports.
type FailureKind string

const (
	FailureTimeout           FailureKind = "timeout"
	FailureConnectionRefused FailureKind = "connection_refused"
	FailureConnectionReset   FailureKind = "connection_reset"
	FailureDNS               FailureKind = "dns"
	FailureTLS               FailureKind = "tls"
	FailureProtocol          FailureKind = "protocol_error"
	FailureCanceled          FailureKind = "canceled"
	FailureOther             FailureKind = "other"
)

// Outcome is the record of one request attempt. Exactly one of StatusCode or
// ErrorKind is set: a response was received, or the transport failed first.
type Outcome struct {
	TimeStamp  time.Time
	StatusCode int
	ErrorKind  FailureKind
	Latency    time.Duration
	Bytes      int64
}

// Responded builds the outcome of a request that received a status code.
func Responded(status int, latency time.Duration) Outcome {
	return Outcome{StatusCode: status, Latency: latency}
}

// Failed builds the outcome of a request that failed before a status code arrived.
func Failed(kind FailureKind, latency time.Duration) Outcome {
	if kind == "" {
		kind = FailureOther
	}
	return Outcome{ErrorKind: kind, Latency: latency}
}

// IsFailure reports whether the outcome is a transport failure.
func (o Outcome) IsFailure() bool {
	return o.ErrorKind != ""
}
