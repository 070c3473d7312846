package bus

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidBackoff = errors.New("bus: invalid backoff config")

// BackoffConfig shapes reconnect delays after consecutive transport errors.
type BackoffConfig struct {
	InitialDelay   time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	ErrorThreshold int
	Ceiling        time.Duration
	// MaxEscalations bounds consecutive ceiling waits; 0 means unbounded.
	MaxEscalations int
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay:   time.Second,
		Multiplier:     1.0,
		MaxDelay:       time.Second,
		ErrorThreshold: 10,
		Ceiling:        5 * time.Second,
	}
}

func (c BackoffConfig) Validate() error {
	switch {
	case c.InitialDelay <= 0:
		return fmt.Errorf("%w: initial delay must be > 0", ErrInvalidBackoff)
	case c.Multiplier < 1.0:
		return fmt.Errorf("%w: multiplier must be >= 1", ErrInvalidBackoff)
	case c.MaxDelay < c.InitialDelay:
		return fmt.Errorf("%w: max delay %s below initial delay %s", ErrInvalidBackoff, c.MaxDelay, c.InitialDelay)
	case c.ErrorThreshold <= 0:
		return fmt.Errorf("%w: error threshold must be > 0", ErrInvalidBackoff)
	case c.Ceiling <= c.MaxDelay:
		return fmt.Errorf("%w: ceiling %s must exceed max delay %s", ErrInvalidBackoff, c.Ceiling, c.MaxDelay)
	case c.MaxEscalations < 0:
		return fmt.Errorf("%w: max escalations must be >= 0", ErrInvalidBackoff)
	}
	return nil
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// BackoffStep is the outcome of one recorded failure.
type BackoffStep struct {
	Delay     time.Duration
	Failures  int
	Escalated bool
	Exhausted bool
}

// Backoff tracks consecutive transport errors. It is owned by a single
// goroutine and is not safe for concurrent use.
type Backoff struct {
	cfg         BackoffConfig
	failures    int
	escalations int
}

func NewBackoff(cfg BackoffConfig) *Backoff {
	return &Backoff{cfg: cfg}
}

// Failure records one consecutive error and returns the wait before resuming.
// Reaching ErrorThreshold yields the Ceiling delay and restarts the count.
func (b *Backoff) Failure() BackoffStep {
	b.failures++
	if b.failures < b.cfg.ErrorThreshold {
		return BackoffStep{Delay: NextBackoffDelay(b.cfg, b.failures), Failures: b.failures}
	}

	step := BackoffStep{Delay: b.cfg.Ceiling, Failures: b.failures, Escalated: true}
	b.failures = 0
	b.escalations++
	if b.cfg.MaxEscalations > 0 && b.escalations > b.cfg.MaxEscalations {
		step.Exhausted = true
	}
	return step
}

func (b *Backoff) Reset() {
	b.failures = 0
	b.escalations = 0
}

func (b *Backoff) Failures() int {
	return b.failures
}
