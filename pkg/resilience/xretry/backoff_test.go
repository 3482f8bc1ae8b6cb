package xretry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedBackoff(t *testing.T) {
	b := NewFixedBackoff(200 * time.Millisecond)
	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, 200*time.Millisecond, b.NextDelay(attempt))
	}
	assert.Equal(t, time.Duration(0), NewFixedBackoff(-time.Second).NextDelay(1))
}

func TestExponentialBackoff(t *testing.T) {
	t.Run("GrowsWithoutJitter", func(t *testing.T) {
		b := NewExponentialBackoff(
			WithInitialDelay(100*time.Millisecond),
			WithMultiplier(2),
			WithMaxDelay(time.Second),
			WithJitter(0),
		)
		assert.Equal(t, 100*time.Millisecond, b.NextDelay(1))
		assert.Equal(t, 200*time.Millisecond, b.NextDelay(2))
		assert.Equal(t, 400*time.Millisecond, b.NextDelay(3))
		assert.Equal(t, time.Second, b.NextDelay(10))
	})

	t.Run("JitterStaysInBand", func(t *testing.T) {
		b := NewExponentialBackoff(WithInitialDelay(100*time.Millisecond), WithJitter(0.5))
		for range 100 {
			d := b.NextDelay(1)
			assert.GreaterOrEqual(t, d, 50*time.Millisecond)
			assert.LessOrEqual(t, d, 150*time.Millisecond)
		}
	})

	t.Run("HugeAttemptCapped", func(t *testing.T) {
		b := NewExponentialBackoff(WithMaxDelay(5 * time.Second))
		assert.Equal(t, 5*time.Second, b.NextDelay(math.MaxInt))
	})

	t.Run("InvalidOptionsIgnored", func(t *testing.T) {
		b := NewExponentialBackoff(
			WithInitialDelay(-1),
			WithMaxDelay(0),
			WithMultiplier(0.5),
			WithJitter(0),
		)
		assert.Equal(t, 100*time.Millisecond, b.NextDelay(0))
		assert.Equal(t, 200*time.Millisecond, b.NextDelay(2))
	})

	t.Run("MaxBelowInitialRaised", func(t *testing.T) {
		b := NewExponentialBackoff(
			WithInitialDelay(time.Second),
			WithMaxDelay(time.Millisecond),
			WithJitter(0),
		)
		assert.Equal(t, time.Second, b.NextDelay(3))
	})
}

func TestNoBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), NewNoBackoff().NextDelay(7))
}
