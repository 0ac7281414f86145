package executor

import (
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffOptions parameterizes the retry delay formula (§4.2).
type BackoffOptions struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// DefaultRetryOptions are the engine-wide defaults (§4.3).
func DefaultRetryOptions() BackoffOptions {
	return BackoffOptions{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		MaxAttempts:  3,
	}
}

// StageRetryOptions applies the dimensions/secondary MaxAttempts=4 override.
func StageRetryOptions(stage string) BackoffOptions {
	opts := DefaultRetryOptions()
	if stage == "dimensions" || stage == "secondary" {
		opts.MaxAttempts = 4
	}
	return opts
}

// Delay computes the retry delay for a 1-based attempt number:
// min(maxDelay, initialDelay * multiplier^(attempt-1) + jitter), jitter
// uniform in [0, 0.25*exponential). rng may be nil to use the package-level
// (non-seeded) source.
func Delay(attempt int, opts BackoffOptions, rng *rand.Rand) time.Duration {
	exponential := float64(opts.InitialDelay) * pow(opts.Multiplier, attempt-1)
	var jitter float64
	if exponential > 0 {
		frac := 0.25 * exponential
		if rng != nil {
			jitter = rng.Float64() * frac
		} else {
			jitter = rand.Float64() * frac
		}
	}
	total := exponential + jitter
	if max := float64(opts.MaxDelay); total > max {
		total = max
	}
	return time.Duration(total)
}

func pow(base float64, exp int) float64 {
	if exp <= 0 {
		return 1
	}
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// Policy adapts BackoffOptions to cenkalti/backoff's BackOff interface, with
// the same jitter formula as Delay, for callers that want that contract.
// Run does not use it; it computes its waits with Delay directly.
type Policy struct {
	opts    BackoffOptions
	rng     *rand.Rand
	attempt int
}

var _ backoff.BackOff = (*Policy)(nil)

// NewPolicy builds a Policy. rng may be nil for production (non-seeded)
// jitter; tests pass a seeded *rand.Rand for determinism.
func NewPolicy(opts BackoffOptions, rng *rand.Rand) *Policy {
	return &Policy{opts: opts, rng: rng}
}

// NextBackOff implements backoff.BackOff.
func (p *Policy) NextBackOff() time.Duration {
	p.attempt++
	if p.attempt > p.opts.MaxAttempts {
		return backoff.Stop
	}
	return Delay(p.attempt, p.opts, p.rng)
}

// Reset implements backoff.BackOff.
func (p *Policy) Reset() {
	p.attempt = 0
}
