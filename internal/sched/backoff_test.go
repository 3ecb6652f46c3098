package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"pause": StrategyPause,
		"yield": StrategyYield,
		"wait":  StrategyWait,
	}
	for name, want := range cases {
		got, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}

	_, err := ParseStrategy("busy")
	assert.Error(t, err)
}

func TestPauseBackoffDoubling(t *testing.T) {
	b := newPauseBackoff(minBackoffLoops, maxBackoffLoops)

	assert.Equal(t, minBackoffLoops, b.loops)

	expected := minBackoffLoops
	for i := 0; i != 20; i++ {
		b.run()
		if expected*2 <= maxBackoffLoops {
			expected *= 2
		} else {
			expected = maxBackoffLoops
		}
		assert.Equal(t, expected, b.loops)
		assert.LessOrEqual(t, b.loops, maxBackoffLoops)
	}

	b.reset()
	assert.Equal(t, minBackoffLoops, b.loops)
}

func TestWaitBackoffSpinPrelude(t *testing.T) {
	sem := newSemaphore(1)
	sem.post()

	// With a spinning prelude the try-wait consumes the token without a
	// blocking wait.
	b := &waitBackoff{sem: sem, spinCount: 4}
	b.run()
	assert.False(t, sem.tryWait())
}

func TestCalibrateBackoffPositive(t *testing.T) {
	iterations := calibrateBackoff(100 * time.Millisecond)
	assert.Positive(t, iterations)
}

// The calibrated bound is wall-clock denominated: spinning for the full
// watchdog budget should take roughly the configured timeout.
func TestCalibrateBackoffApproximatesTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-sensitive calibration check")
	}

	const timeout = 100 * time.Millisecond
	iterations := calibrateBackoff(timeout)
	require.Positive(t, iterations)

	b := newPauseBackoff(maxBackoffLoops, maxBackoffLoops)
	start := time.Now()
	for i := 0; i != iterations; i++ {
		b.run()
	}
	elapsed := time.Since(start)

	assert.Greater(t, elapsed, timeout/4)
	assert.Less(t, elapsed, timeout*4)
}
