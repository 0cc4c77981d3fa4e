package worker

import (
	"fmt"
	"time"
)

// Config controls the notification job worker.
type Config struct {
	// Concurrency is the number of polling goroutines.
	Concurrency int

	// PollInterval is how long an idle goroutine waits before polling again.
	// Lead notifications are at most this late on a quiet queue.
	PollInterval time.Duration

	// JobTimeout bounds one Handle call, covering the SMTP and SNS round trips.
	JobTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for in-flight jobs.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is the age after which a 'running' job is assumed
	// orphaned by a crashed process and put back to pending on Start.
	StaleJobThreshold time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:       4,
		PollInterval:      2 * time.Second,
		JobTimeout:        time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Concurrency < 1 || c.Concurrency > 100:
		return fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency)
	case c.PollInterval < time.Second:
		return fmt.Errorf("poll interval must be at least 1s, got %v", c.PollInterval)
	case c.JobTimeout < time.Second:
		return fmt.Errorf("job timeout must be at least 1s, got %v", c.JobTimeout)
	case c.ShutdownTimeout < time.Second:
		return fmt.Errorf("shutdown timeout must be at least 1s, got %v", c.ShutdownTimeout)
	case c.StaleJobThreshold < time.Minute:
		return fmt.Errorf("stale job threshold must be at least 1m, got %v", c.StaleJobThreshold)
	}
	return nil
}
