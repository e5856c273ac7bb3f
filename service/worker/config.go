package worker

import "fmt"

// Config represents the local worker configuration
type Config struct {
	// ID identifies the worker in responses.
	ID string `json:"id" yaml:"id"`
	// Concurrency bounds operations executing at once.
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

func DefaultConfig() Config {
	return Config{ID: "local", Concurrency: 4}
}

func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}
