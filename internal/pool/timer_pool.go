// Package pool recycles the timers that bound channel waits on hot paths,
// such as enqueuing commands for a connection actor.
package pool

import (
	"sync"
	"time"
)

var timerPool = sync.Pool{
	New: func() any {
		t := time.NewTimer(time.Hour)
		stopTimer(t)

		return t
	},
}

// GetTimer returns a stopped timer from the pool, re-armed to fire after d.
//
// Return the timer to the pool with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	t, _ := timerPool.Get().(*time.Timer) // only *time.Timer is put into the pool
	if t == nil {
		return time.NewTimer(d)
	}
	t.Reset(d)

	return t
}

// PutTimer stops t and returns it to the pool.
//
// t cannot be accessed after returning to the pool.
func PutTimer(t *time.Timer) {
	stopTimer(t)
	timerPool.Put(t)
}

// stopTimer stops t and drains a pending tick so a later Reset starts clean.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
