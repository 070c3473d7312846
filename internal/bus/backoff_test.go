package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/headctl/internal/testutil/testlog"
)

func TestNextBackoffDelayCapsAtMax(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := NextBackoffDelay(cfg, i+1); got != w {
			t.Fatalf("attempt %d: got %s want %s", i+1, got, w)
		}
	}
}

func TestBackoffDefaultsMatchConstantDelayAndCeiling(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultBackoffConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
	b := NewBackoff(cfg)
	for i := 1; i < cfg.ErrorThreshold; i++ {
		step := b.Failure()
		if step.Delay != time.Second || step.Escalated {
			t.Fatalf("failure %d: unexpected step %+v", i, step)
		}
	}
	step := b.Failure()
	if !step.Escalated || step.Delay != 5*time.Second || step.Exhausted {
		t.Fatalf("expected ceiling escalation, got %+v", step)
	}
	if b.Failures() != 0 {
		t.Fatalf("expected counter reset after escalation, got %d", b.Failures())
	}
}

func TestBackoffDelaysNeverDecreaseWithinWindow(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay:   10 * time.Millisecond,
		Multiplier:     1.5,
		MaxDelay:       80 * time.Millisecond,
		ErrorThreshold: 8,
		Ceiling:        200 * time.Millisecond,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
	b := NewBackoff(cfg)
	var prev time.Duration
	for i := 0; i < cfg.ErrorThreshold; i++ {
		step := b.Failure()
		if step.Delay < prev {
			t.Fatalf("delay decreased at failure %d: %s < %s", i+1, step.Delay, prev)
		}
		if !step.Escalated && step.Delay >= cfg.Ceiling {
			t.Fatalf("pre-threshold delay %s reached ceiling", step.Delay)
		}
		prev = step.Delay
	}
	if prev != cfg.Ceiling {
		t.Fatalf("expected window to end at ceiling, got %s", prev)
	}
}

func TestBackoffResetClearsCounter(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultBackoffConfig()
	cfg.ErrorThreshold = 3
	b := NewBackoff(cfg)
	b.Failure()
	b.Failure()
	b.Reset()
	if step := b.Failure(); step.Escalated || step.Failures != 1 {
		t.Fatalf("expected fresh window after reset, got %+v", step)
	}
}

func TestBackoffExhaustsAfterMaxEscalations(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultBackoffConfig()
	cfg.ErrorThreshold = 1
	cfg.MaxEscalations = 2

	b := NewBackoff(cfg)
	if step := b.Failure(); !step.Escalated || step.Exhausted {
		t.Fatalf("first escalation: %+v", step)
	}
	if step := b.Failure(); !step.Escalated || step.Exhausted {
		t.Fatalf("second escalation: %+v", step)
	}
	if step := b.Failure(); !step.Exhausted {
		t.Fatalf("expected exhaustion, got %+v", step)
	}
}

func TestBackoffConfigValidate(t *testing.T) {
	testlog.Start(t)
	cases := map[string]func(*BackoffConfig){
		"zero initial":      func(c *BackoffConfig) { c.InitialDelay = 0 },
		"shrinking":         func(c *BackoffConfig) { c.Multiplier = 0.5 },
		"max below initial": func(c *BackoffConfig) { c.MaxDelay = time.Millisecond },
		"zero threshold":    func(c *BackoffConfig) { c.ErrorThreshold = 0 },
		"ceiling too low":   func(c *BackoffConfig) { c.Ceiling = c.MaxDelay },
		"negative limit":    func(c *BackoffConfig) { c.MaxEscalations = -1 },
	}
	for name, mutate := range cases {
		cfg := DefaultBackoffConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidBackoff) {
			t.Fatalf("%s: expected ErrInvalidBackoff, got %v", name, err)
		}
	}
}
