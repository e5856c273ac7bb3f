package dispatcher

import (
	"fmt"
	"time"
)

// Unlimited disables the retry bound
const Unlimited = -1

// Config represents the dispatcher resiliency policy
type Config struct {
	// Timeout is the ceiling for one outstanding request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// MaxRetries bounds resubmissions after the first attempt; -1 retries until success.
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`
	// RetryDelay is the fixed backoff interval.
	RetryDelay time.Duration `json:"retryDelay" yaml:"retryDelay"`
	// RetryTimeouts treats a timeout as retryable; when false a timeout is terminal.
	RetryTimeouts bool `json:"retryTimeouts" yaml:"retryTimeouts"`
	// DedupeWindow is how long resolved correlation ids are remembered.
	DedupeWindow time.Duration `json:"dedupeWindow" yaml:"dedupeWindow"`
}

// DefaultConfig returns the default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       12 * time.Hour,
		MaxRetries:    Unlimited,
		RetryDelay:    5 * time.Second,
		RetryTimeouts: true,
		DedupeWindow:  time.Hour,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("dispatcher timeout must be positive")
	}
	if c.MaxRetries < Unlimited {
		return fmt.Errorf("dispatcher maxRetries must be -1 or greater, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("dispatcher retryDelay must not be negative")
	}
	return nil
}
