/*
Package jobqueue configuration - tunable parameters for the River job queue.

## Quick Configuration Reference:

### Performance Tuning:
- Increase MaxWorkers for higher throughput (more discussions processed concurrently)
- Keep sources.hn_rps in mind: every worker shares the same page rate limit

### Reliability Tuning:
- Increase MaxRetries for better reliability against flaky upstreams
- Adjust RetryPolicy intervals for network conditions
- Malformed discussions are cancelled, never retried

## Database Requirements:
- PostgreSQL with River schema migrations applied (`threadrank migrate`)
- Connection pool shared with the discussion store
*/
package jobqueue

import (
	"math"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/threadrank/internal/config"
)

// QueueConfig holds all configurable parameters for the job queue
type QueueConfig struct {
	// Worker Configuration
	MaxWorkers int // Number of concurrent workers processing jobs (default: 4)

	// Retry Configuration
	MaxRetries  int           // Maximum retry attempts per job (default: 5)
	RetryPolicy RetryPolicy   // Retry timing and backoff configuration
	JobTimeout  time.Duration // Maximum time a single job can run (default: 5 minutes)

	// UniquePeriod collapses identical jobs inserted within the period
	UniquePeriod time.Duration // default: 1 minute
}

// RetryPolicy defines how failed jobs are retried
type RetryPolicy struct {
	// InitialInterval is the time to wait before the first retry
	InitialInterval time.Duration // default: 5 seconds

	// MaxInterval is the maximum time to wait between retries
	MaxInterval time.Duration // default: 10 minutes

	// Multiplier is the factor by which the interval increases after each retry
	Multiplier float64 // default: 2.0 (exponential backoff)
}

// NextRetry implements river.ClientRetryPolicy.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	return time.Now().Add(p.backoff(job.Attempt))
}

func (p *RetryPolicy) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxInterval) || math.IsInf(delay, 0) {
		return p.MaxInterval
	}
	return time.Duration(delay)
}

// DefaultQueueConfig returns the default configuration
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		// Worker settings - bounded by the HN page rate limit, not by CPU
		MaxWorkers: 4,

		MaxRetries: 5,
		RetryPolicy: RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaxInterval:     10 * time.Minute,
			Multiplier:      2.0,
		},

		JobTimeout:   5 * time.Minute,
		UniquePeriod: time.Minute,
	}
}

// ProductionQueueConfig returns a configuration optimized for production use
func ProductionQueueConfig() *QueueConfig {
	config := DefaultQueueConfig()

	config.MaxWorkers = 8
	config.MaxRetries = 10
	config.JobTimeout = 10 * time.Minute
	config.RetryPolicy.MaxInterval = time.Hour

	return config
}

// DevelopmentQueueConfig returns a configuration optimized for development
func DevelopmentQueueConfig() *QueueConfig {
	config := DefaultQueueConfig()

	config.MaxWorkers = 1
	config.MaxRetries = 1
	config.JobTimeout = 2 * time.Minute
	config.RetryPolicy.MaxInterval = 30 * time.Second

	return config
}

// ProfileQueueConfig returns the preset named by queue.profile. Unknown
// names fall back to the default preset; config.Validate rejects them earlier.
func ProfileQueueConfig(profile string) *QueueConfig {
	switch profile {
	case "production":
		return ProductionQueueConfig()
	case "development":
		return DevelopmentQueueConfig()
	default:
		return DefaultQueueConfig()
	}
}

// FromConfig applies the [queue] section on top of the selected preset.
func FromConfig(cfg *config.Config) *QueueConfig {
	if cfg == nil {
		return DefaultQueueConfig()
	}
	qc := ProfileQueueConfig(cfg.Queue.Profile)
	if cfg.Queue.MaxWorkers > 0 {
		qc.MaxWorkers = cfg.Queue.MaxWorkers
	}
	if cfg.Queue.MaxRetries > 0 {
		qc.MaxRetries = cfg.Queue.MaxRetries
	}
	if cfg.Queue.JobTimeout > 0 {
		qc.JobTimeout = cfg.Queue.JobTimeout
	}
	return qc
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
