package executor

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func TestDelay_Deterministic(t *testing.T) {
	opts := BackoffOptions{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2, MaxAttempts: 5}

	rng1 := rand.New(rand.NewSource(42))
	rng2 := rand.New(rand.NewSource(42))

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		d1 := Delay(attempt, opts, rng1)
		d2 := Delay(attempt, opts, rng2)
		assert.Equal(t, d1, d2, "same seed must produce identical delays")
	}
}

func TestDelay_GrowsExponentially(t *testing.T) {
	opts := BackoffOptions{InitialDelay: time.Second, MaxDelay: time.Hour, Multiplier: 2, MaxAttempts: 5}
	rng := rand.New(rand.NewSource(1))

	var prev time.Duration
	for attempt := 1; attempt <= 4; attempt++ {
		d := Delay(attempt, opts, rng)
		if attempt > 1 {
			assert.Greater(t, d, prev)
		}
		prev = d
	}
}

func TestDelay_ClampsToMaxDelay(t *testing.T) {
	opts := BackoffOptions{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, MaxAttempts: 10}
	rng := rand.New(rand.NewSource(1))

	d := Delay(9, opts, rng)
	assert.LessOrEqual(t, d, opts.MaxDelay)
}

func TestDelay_JitterWithinBounds(t *testing.T) {
	opts := BackoffOptions{InitialDelay: time.Second, MaxDelay: time.Hour, Multiplier: 2, MaxAttempts: 5}
	rng := rand.New(rand.NewSource(7))

	exponential := float64(opts.InitialDelay) * pow(opts.Multiplier, 2-1)
	d := Delay(2, opts, rng)
	assert.GreaterOrEqual(t, float64(d), exponential)
	assert.LessOrEqual(t, float64(d), exponential+0.25*exponential)
}

func TestStageRetryOptions_Override(t *testing.T) {
	assert.Equal(t, 4, StageRetryOptions("dimensions").MaxAttempts)
	assert.Equal(t, 4, StageRetryOptions("secondary").MaxAttempts)
	assert.Equal(t, 3, StageRetryOptions("screening").MaxAttempts)
}

func TestPolicy_ImplementsBackOff(t *testing.T) {
	opts := BackoffOptions{InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2, MaxAttempts: 2}
	p := NewPolicy(opts, rand.New(rand.NewSource(1)))

	d1 := p.NextBackOff()
	assert.Greater(t, d1, time.Duration(0))

	d2 := p.NextBackOff()
	assert.Greater(t, d2, time.Duration(0))

	stop := p.NextBackOff()
	assert.Equal(t, backoff.Stop, stop, "exceeding MaxAttempts must signal backoff.Stop")

	p.Reset()
	d3 := p.NextBackOff()
	// Attempt 1 again: base delay InitialDelay plus jitter below InitialDelay
	// (the jitter draw itself differs, since the rng has advanced).
	assert.GreaterOrEqual(t, d3, opts.InitialDelay, "reset should restart the attempt counter")
	assert.Less(t, d3, 2*opts.InitialDelay, "reset should restart the attempt counter")
}
