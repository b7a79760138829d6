package runner

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultRate     = 5.0
	DefaultDuration = 10 * time.Second
	DefaultMethod   = "GET"
)

// ErrInvalidConfig is wrapped by every validation failure so callers can tell a
// misconfigured run apart from anything else.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config describes one open-loop run. It is not modified once a run starts.
type Config struct {
	URL      string            `json:"url"`
	Rate     float64           `json:"rate"`
	Duration time.Duration     `json:"duration"`
	Method   string            `json:"method"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     string            `json:"body,omitempty"`

	// Per-request transport timeout, zero means none.
	Timeout  time.Duration `json:"timeout,omitempty"`
	Insecure bool          `json:"insecure,omitempty"`

	// Template renders URL, headers and body per request (see templating.go).
	Template bool `json:"template,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Rate:     DefaultRate,
		Duration: DefaultDuration,
		Method:   DefaultMethod,
		Headers:  map[string]string{},
	}
}

func (c Config) withDefaults() Config {
	if c.Method == "" {
		c.Method = DefaultMethod
	}
	c.Method = strings.ToUpper(c.Method)
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	return c
}

// Validate checks everything that must hold before the first request is issued.
func (c Config) Validate() error {
	if math.IsNaN(c.Rate) || math.IsInf(c.Rate, 0) || c.Rate <= 0 {
		return fmt.Errorf("%w: rate must be a positive number, got %v", ErrInvalidConfig, c.Rate)
	}
	if float64(time.Second)/c.Rate >= float64(maxDuration) {
		return fmt.Errorf("%w: rate %v is too low, one request would take longer than %s", ErrInvalidConfig, c.Rate, maxDuration)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidConfig, c.Duration)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative, got %s", ErrInvalidConfig, c.Timeout)
	}
	if err := validateURL(c.URL, c.Template); err != nil {
		return err
	}
	if strings.ContainsAny(c.Method, " \t\r\n") {
		return fmt.Errorf("%w: invalid HTTP method %q", ErrInvalidConfig, c.Method)
	}
	for k := range c.Headers {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: empty header name", ErrInvalidConfig)
		}
	}
	return nil
}

func validateURL(raw string, templated bool) error {
	if raw == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}

	// A templated URL is only parseable once rendered, so just check the scheme.
	if templated && strings.Contains(raw, "{{") {
		lower := strings.ToLower(raw)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			return fmt.Errorf("%w: url %q must start with http:// or https://", ErrInvalidConfig, raw)
		}
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: url %q: %v", ErrInvalidConfig, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url %q must use http or https", ErrInvalidConfig, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url %q has no host", ErrInvalidConfig, raw)
	}
	return nil
}

// maxDuration is the longest time.Duration; larger float values wrap negative.
const maxDuration = time.Duration(math.MaxInt64)

// Interval is the time between two ticks, 1/rate seconds.
func (c Config) Interval() time.Duration {
	return toDuration(float64(time.Second) / c.Rate)
}

// tickOffset is the due time of tick n relative to the start of the run.
// Computed from n directly so rounding does not accumulate.
func (c Config) tickOffset(n int64) time.Duration {
	return toDuration(float64(n) * float64(time.Second) / c.Rate)
}

// toDuration converts nanoseconds, saturating at maxDuration.
func toDuration(ns float64) time.Duration {
	if ns >= float64(maxDuration) {
		return maxDuration
	}
	return time.Duration(ns)
}
