package tensorwire

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

const (
	// defaultTagCutoff bounds the recognized tag values; tags above it are
	// treated as not present rather than parsed further.
	defaultTagCutoff = 127
	// defaultMaxRecursionDepth bounds nested sub-message parsing against
	// pathologically deep input.
	defaultMaxRecursionDepth = 64
)

// Config is used to pass multiple configuration options to the decoder and
// the Receiver. Values are used at construction time; mutating a Config after
// handing it to a component has no effect.
type Config struct {
	// Decoder is the namespace for tunables of a single message decode.
	Decoder struct {
		// MaxRecursionDepth is the bound on nested sub-message parsing
		// (defaults to 64).
		MaxRecursionDepth int
		// TagCutoff is the largest tag value recognized at any level
		// (defaults to 127). Larger tags end the message with an error.
		TagCutoff uint32
	}

	// Receiver is the namespace for configuration related to concurrent
	// message handling.
	Receiver struct {
		// Parallelism caps the number of messages decoded concurrently
		// (defaults to 8).
		Parallelism int
		// Breaker configures the circuit breaker that trips after repeated
		// consecutive decode failures (defaults to 3 failures, 1 success to
		// close, 10s open timeout).
		Breaker struct {
			ErrorThreshold   int
			SuccessThreshold int
			Timeout          time.Duration
		}
	}

	// MetricRegistry is the registry decode metrics are published to
	// (defaults to a fresh registry).
	MetricRegistry metrics.Registry
}

// NewConfig returns a new configuration instance with sane defaults.
func NewConfig() *Config {
	c := &Config{}

	c.Decoder.MaxRecursionDepth = defaultMaxRecursionDepth
	c.Decoder.TagCutoff = defaultTagCutoff

	c.Receiver.Parallelism = 8
	c.Receiver.Breaker.ErrorThreshold = 3
	c.Receiver.Breaker.SuccessThreshold = 1
	c.Receiver.Breaker.Timeout = 10 * time.Second

	c.MetricRegistry = metrics.NewRegistry()

	return c
}

// Validate checks a Config instance. It will return a ConfigurationError if
// the specified values don't make sense.
func (c *Config) Validate() error {
	switch {
	case c.Decoder.MaxRecursionDepth <= 0:
		return ConfigurationError("Decoder.MaxRecursionDepth must be > 0")
	case c.Decoder.TagCutoff == 0:
		return ConfigurationError("Decoder.TagCutoff must be > 0")
	case c.Receiver.Parallelism <= 0:
		return ConfigurationError("Receiver.Parallelism must be > 0")
	case c.Receiver.Breaker.ErrorThreshold <= 0:
		return ConfigurationError("Receiver.Breaker.ErrorThreshold must be > 0")
	case c.Receiver.Breaker.SuccessThreshold <= 0:
		return ConfigurationError("Receiver.Breaker.SuccessThreshold must be > 0")
	case c.Receiver.Breaker.Timeout <= 0:
		return ConfigurationError("Receiver.Breaker.Timeout must be > 0")
	case c.MetricRegistry == nil:
		return ConfigurationError("MetricRegistry must not be nil")
	}

	return nil
}
