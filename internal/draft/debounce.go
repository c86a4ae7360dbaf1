package draft

import (
	"context"
	"log"
	"sync"
	"time"
)

const DefaultDebounce = time.Second

// Autosaver debounces local draft writes: every cart mutation reschedules a
// pending save, so a burst of edits produces one write. An empty cart turns
// the pending save into a delete. Storage failures are logged and dropped;
// local autosave is never allowed to interrupt a sale.
type Autosaver struct {
	slot    Slot
	delay   time.Duration
	timeout time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewAutosaver(slot Slot, delay time.Duration) *Autosaver {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Autosaver{slot: slot, delay: delay, timeout: 3 * time.Second}
}

// Schedule queues a debounced write of the draft; any previously queued
// write for this autosaver is cancelled first.
func (a *Autosaver) Schedule(d LocalDraft) {
	a.schedule(func(ctx context.Context) {
		if err := a.slot.Save(ctx, d); err != nil {
			log.Printf("autosave failed for session %s: %v", d.ID, err)
		}
	})
}

// ScheduleDelete queues a debounced removal of the session's draft slot,
// used when the cart has just become empty.
func (a *Autosaver) ScheduleDelete(sessionID string) {
	a.schedule(func(ctx context.Context) {
		if err := a.slot.Delete(ctx, sessionID); err != nil {
			log.Printf("autosave delete failed for session %s: %v", sessionID, err)
		}
	})
}

func (a *Autosaver) schedule(fn func(context.Context)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		fn(ctx)
	})
}

// Stop cancels any pending write. Called on session rotation and shutdown;
// a stopped autosaver ignores further scheduling.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Reset cancels any pending write but keeps the autosaver usable, for when
// the same terminal starts a fresh session.
func (a *Autosaver) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
