package common

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(Restriction{Requests: 2, Duration: time.Hour})

	assert.True(t, rl.Allowed("alice"))
	assert.True(t, rl.Allowed("alice"))
	assert.False(t, rl.Allowed("alice"))

	// Keys do not share buckets
	assert.True(t, rl.Allowed("bob"))
	assert.Equal(t, 2, rl.Len())

	// Nothing is idle for an hour yet
	assert.Equal(t, 0, rl.Prune())
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(Restriction{})
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allowed("alice"))
	}
	assert.Equal(t, 0, rl.Len())
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(Restriction{Requests: 1, Duration: time.Millisecond})
	rl.Allowed("alice")
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, rl.Prune())
	assert.Equal(t, 0, rl.Len())
}

func TestDelayedExecutorRuns(t *testing.T) {
	de := NewDelayedExecutor(time.Millisecond)
	done := make(chan struct{})
	de.Schedule("close", func() error {
		close(done)
		return errors.New("errors are swallowed")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	assert.Eventually(t, func() bool { return de.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestDelayedExecutorCancel(t *testing.T) {
	de := NewDelayedExecutor(time.Hour)
	var runs atomic.Int32
	cancel := de.Schedule("count", func() error {
		runs.Add(1)
		return nil
	})
	assert.Equal(t, 1, de.Pending())
	assert.True(t, cancel())
	assert.False(t, cancel())
	assert.Equal(t, 0, de.Pending())
	assert.Equal(t, int32(0), runs.Load())
}

func TestDelayedExecutorStop(t *testing.T) {
	de := NewDelayedExecutor(time.Hour)
	de.Schedule("one", func() error { return nil })
	de.Schedule("two", func() error { return nil })
	assert.Equal(t, 2, de.Stop())

	// Refuses new tasks after stopping
	cancel := de.Schedule("three", func() error { return nil })
	assert.Equal(t, 0, de.Pending())
	assert.False(t, cancel())
}

func TestStopwatch(t *testing.T) {
	var s Stopwatch
	assert.Zero(t, s.Elapsed())

	s = StartStopwatch()
	assert.True(t, s.Running)
	time.Sleep(2 * time.Millisecond)
	elapsed := s.Stop()
	assert.False(t, s.Running)
	assert.GreaterOrEqual(t, elapsed, 2*time.Millisecond)
	assert.Equal(t, elapsed, s.Elapsed())
}
