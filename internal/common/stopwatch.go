package common

import (
	"time"
)

// This stopwatch keeps track of time. Start it, and ask it
// how much time has elapsed since then
type Stopwatch struct {
	startTime time.Time
	stopTime  time.Time
	Running   bool
}

func StartStopwatch() Stopwatch {
	var s Stopwatch
	s.Start()
	return s
}

func (s *Stopwatch) Start() {
	s.Running = true
	s.startTime = time.Now()
}

func (s *Stopwatch) Stop() time.Duration {
	if s.Running {
		s.Running = false
		s.stopTime = time.Now()
	}
	return s.Elapsed()
}

// Time elapsed since the stopwatch started, up to the
// moment it was stopped if it is not running anymore
func (s *Stopwatch) Elapsed() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	if s.Running {
		return time.Since(s.startTime)
	}
	return s.stopTime.Sub(s.startTime)
}
