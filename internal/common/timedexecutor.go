package common

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Give the delayed executor a delay and schedule tasks on it.
// Each task runs once after the delay unless it is cancelled first.
// Errors returned by the tasks are logged and never propagated
type DelayedExecutor struct {
	delay   time.Duration
	mutex   sync.Mutex
	pending map[uuid.UUID]*time.Timer
	stopped bool
}

func NewDelayedExecutor(delay time.Duration) *DelayedExecutor {
	return &DelayedExecutor{delay: delay, pending: map[uuid.UUID]*time.Timer{}}
}

// Schedule a task. The returned function cancels it and reports
// whether the task was still pending
func (de *DelayedExecutor) Schedule(name string, task func() error) func() bool {

	de.mutex.Lock()
	defer de.mutex.Unlock()

	if de.stopped {
		return func() bool { return false }
	}

	// Give this task a unique identifier
	id := uuid.New()
	de.pending[id] = time.AfterFunc(de.delay, func() {
		if !de.take(id) {
			return
		}
		if err := task(); err != nil {
			log.Debug().Err(err).Msgf("Delayed task %s failed", name)
		}
	})

	return func() bool {
		de.mutex.Lock()
		timer, ok := de.pending[id]
		delete(de.pending, id)
		de.mutex.Unlock()
		return ok && timer.Stop()
	}
}

// Remove the task from the pending set, reporting if it was there
func (de *DelayedExecutor) take(id uuid.UUID) bool {
	de.mutex.Lock()
	defer de.mutex.Unlock()
	_, ok := de.pending[id]
	delete(de.pending, id)
	return ok
}

// Cancel every pending task, and refuse new ones
func (de *DelayedExecutor) Stop() int {
	de.mutex.Lock()
	defer de.mutex.Unlock()

	de.stopped = true
	cancelled := 0
	for id, timer := range de.pending {
		if timer.Stop() {
			cancelled++
		}
		delete(de.pending, id)
	}
	return cancelled
}

func (de *DelayedExecutor) Pending() int {
	de.mutex.Lock()
	defer de.mutex.Unlock()
	return len(de.pending)
}
