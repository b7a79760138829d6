package runner

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"loadq/internal/stats"
)

// TransportError is a transport failure already mapped onto a stable category.
type TransportError struct {
	Kind stats.FailureKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Classify maps a transport error onto a FailureKind. Typed errors are checked
// first, the message is only consulted for errors net/http reports as plain strings.
func Classify(err error) stats.FailureKind {
	if err == nil {
		return ""
	}

	var te *TransportError
	if errors.As(err, &te) && te.Kind != "" {
		return te.Kind
	}

	if errors.Is(err, context.Canceled) {
		return stats.FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return stats.FailureTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return stats.FailureTimeout
		}
		return stats.FailureDNS
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return stats.FailureConnectionRefused
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return stats.FailureConnectionReset
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return stats.FailureTimeout
	}

	if isTLSError(err) {
		return stats.FailureTLS
	}

	return classifyMessage(err.Error())
}

func isTLSError(err error) bool {
	var (
		verifyErr  *tls.CertificateVerificationError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		authErr    x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}

func classifyMessage(msg string) stats.FailureKind {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "deadline exceeded"):
		return stats.FailureTimeout
	case strings.Contains(lower, "connection refused"):
		return stats.FailureConnectionRefused
	case strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "broken pipe"),
		strings.Contains(lower, "server closed idle connection"):
		return stats.FailureConnectionReset
	case strings.Contains(lower, "no such host"):
		return stats.FailureDNS
	case strings.Contains(lower, "tls:"),
		strings.Contains(lower, "x509:"),
		strings.Contains(lower, "certificate"):
		return stats.FailureTLS
	case strings.Contains(lower, "malformed http"),
		strings.Contains(lower, "unsupported protocol scheme"),
		strings.Contains(lower, "stopped after"),
		strings.Contains(lower, "http2:"),
		strings.Contains(lower, "protocol error"),
		strings.Contains(lower, "invalid header"),
		strings.Contains(lower, "bad request"):
		return stats.FailureProtocol
	}
	return stats.FailureOther
}
