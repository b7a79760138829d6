package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{URL: "https://example.com/path", Rate: 5, Duration: 10 * time.Second, Method: "GET"}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"fractional rate", func(c *Config) { c.Rate = 0.5 }, false},
		{"zero rate", func(c *Config) { c.Rate = 0 }, true},
		{"rate too low for interval", func(c *Config) { c.Rate = 1e-11 }, true},
		{"very low rate", func(c *Config) { c.Rate = 1e-9 }, false},
		{"negative duration", func(c *Config) { c.Duration = -time.Second }, true},
		{"zero duration", func(c *Config) { c.Duration = 0 }, true},
		{"negative timeout", func(c *Config) { c.Timeout = -1 }, true},
		{"empty url", func(c *Config) { c.URL = "" }, true},
		{"no host", func(c *Config) { c.URL = "http://" }, true},
		{"relative url", func(c *Config) { c.URL = "/just/a/path" }, true},
		{"method with space", func(c *Config) { c.Method = "GE T" }, true},
		{"empty header name", func(c *Config) { c.Headers = map[string]string{" ": "v"} }, true},
		{"templated url", func(c *Config) { c.URL = "http://{{randomChoice \"a\" \"b\"}}.test/"; c.Template = true }, false},
		{"templated url bad scheme", func(c *Config) { c.URL = "{{.RequestID}}"; c.Template = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigInterval(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, Config{Rate: 5}.Interval())
	assert.Equal(t, 2*time.Second, Config{Rate: 0.5}.Interval())

	c := Config{Rate: 3}
	assert.Equal(t, time.Second, c.tickOffset(3))
	assert.Equal(t, 100*time.Second, c.tickOffset(300))

	low := Config{Rate: 1e-9}
	assert.Greater(t, low.Interval(), time.Duration(0))
	assert.Equal(t, maxDuration, low.tickOffset(100))
	assert.Equal(t, maxDuration, Config{Rate: 1e-12}.Interval())
}

func TestTickOffsetStrictlyIncreasing(t *testing.T) {
	c := Config{Rate: 1e6}
	prev := c.tickOffset(0)
	for n := int64(1); n <= 10000; n++ {
		cur := c.tickOffset(n)
		require.Greater(t, cur, prev, "tick %d", n)
		prev = cur
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{Method: "post"}.withDefaults()
	assert.Equal(t, "POST", c.Method)
	assert.NotNil(t, c.Headers)

	d := DefaultConfig()
	assert.Equal(t, DefaultRate, d.Rate)
	assert.Equal(t, DefaultDuration, d.Duration)
	assert.Equal(t, DefaultMethod, d.Method)
}
