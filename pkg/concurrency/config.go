package concurrency

import (
	"fmt"
	"time"
)

const (
	// DefaultMaxConcurrent is the number of requests the game's web server is asked to
	// handle at once.
	DefaultMaxConcurrent = 10

	// DefaultFailureThreshold is the number of consecutive upstream failures that open
	// the circuit breaker.
	DefaultFailureThreshold = 100

	// DefaultResetTimeout is how long an open circuit waits before probing again.
	DefaultResetTimeout = 30 * time.Second
)

// Config holds throttle configuration parameters
type Config struct {
	MaxConcurrent int

	// FailureThreshold is the number of consecutive upstream failures that open the
	// circuit breaker. 0 disables the breaker.
	FailureThreshold int64
	ResetTimeout     time.Duration
}

// DefaultConfig returns the throttle settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:    DefaultMaxConcurrent,
		FailureThreshold: DefaultFailureThreshold,
		ResetTimeout:     DefaultResetTimeout,
	}
}

// String returns a formatted string representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{MaxConcurrent: %d, FailureThreshold: %d, ResetTimeout: %s}",
		c.MaxConcurrent,
		c.FailureThreshold,
		c.ResetTimeout,
	)
}
