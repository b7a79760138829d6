package runner

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request is one fully rendered HTTP request. Units of a static run share the
// same Request and must treat it as read-only.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

type Response struct {
	StatusCode int
	Bytes      int64
}

// Transport sends one request and returns once the whole response body has been
// read. Failures should be *TransportError; anything else goes through Classify.
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, req *Request) (Response, error)
}

// HTTPTransport is the net/http Transport. All units share its connection pool.
type HTTPTransport struct {
	Client *http.Client
}

func NewHTTPTransport(timeout time.Duration, insecure bool) *HTTPTransport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	// MaxConnsPerHost stays 0: a connection cap would queue requests and turn the
	// open-loop model into a closed one.
	t.MaxConnsPerHost = 0
	if insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &HTTPTransport{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
	}
}

func (t *HTTPTransport) Send(ctx context.Context, req *Request) (Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, &TransportError{Kind: Classify(err), Err: err}
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "Host") {
			httpReq.Host = v
			continue
		}
		httpReq.Header.Set(k, v)
	}

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return Response{}, &TransportError{Kind: Classify(err), Err: err}
	}
	defer resp.Body.Close()

	// Read everything so latency includes the transfer.
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return Response{}, &TransportError{Kind: Classify(err), Err: err}
	}

	return Response{StatusCode: resp.StatusCode, Bytes: n}, nil
}

// CloseIdleConnections releases pooled connections after a run.
func (t *HTTPTransport) CloseIdleConnections() {
	t.Client.CloseIdleConnections()
}
