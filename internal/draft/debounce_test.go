package draft

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSlot records slot operations in memory.
type fakeSlot struct {
	mu      sync.Mutex
	saves   []LocalDraft
	deletes []string
	failAll bool
}

func (f *fakeSlot) Save(_ context.Context, d LocalDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return assert.AnError
	}
	f.saves = append(f.saves, d)
	return nil
}

func (f *fakeSlot) Load(_ context.Context, sessionID string) (*LocalDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.saves) - 1; i >= 0; i-- {
		if f.saves[i].ID == sessionID {
			d := f.saves[i]
			return &d, nil
		}
	}
	return nil, ErrNoDraft
}

func (f *fakeSlot) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return assert.AnError
	}
	f.deletes = append(f.deletes, sessionID)
	return nil
}

func (f *fakeSlot) counts() (saves, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves), len(f.deletes)
}

func TestAutosaver_DebouncesBurstsIntoOneWrite(t *testing.T) {
	slot := &fakeSlot{}
	a := NewAutosaver(slot, 30*time.Millisecond)
	t.Cleanup(a.Stop)

	for i := 0; i < 5; i++ {
		a.Schedule(LocalDraft{ID: "sess", Total: int64(i)})
	}

	require.Eventually(t, func() bool {
		saves, _ := slot.counts()
		return saves == 1
	}, time.Second, 5*time.Millisecond)

	slot.mu.Lock()
	defer slot.mu.Unlock()
	assert.Equal(t, int64(4), slot.saves[0].Total, "only the last scheduled draft is written")
}

func TestAutosaver_EmptyCartSchedulesDelete(t *testing.T) {
	slot := &fakeSlot{}
	a := NewAutosaver(slot, 10*time.Millisecond)
	t.Cleanup(a.Stop)

	a.Schedule(LocalDraft{ID: "sess"})
	a.ScheduleDelete("sess")

	require.Eventually(t, func() bool {
		_, deletes := slot.counts()
		return deletes == 1
	}, time.Second, 5*time.Millisecond)

	saves, _ := slot.counts()
	assert.Zero(t, saves, "the pending save was replaced by the delete")
}

func TestAutosaver_StopCancelsPendingWrite(t *testing.T) {
	slot := &fakeSlot{}
	a := NewAutosaver(slot, 20*time.Millisecond)

	a.Schedule(LocalDraft{ID: "sess"})
	a.Stop()

	time.Sleep(60 * time.Millisecond)
	saves, deletes := slot.counts()
	assert.Zero(t, saves)
	assert.Zero(t, deletes)

	// stopped autosavers ignore further scheduling
	a.Schedule(LocalDraft{ID: "sess"})
	time.Sleep(60 * time.Millisecond)
	saves, _ = slot.counts()
	assert.Zero(t, saves)
}

func TestAutosaver_ResetKeepsItUsable(t *testing.T) {
	slot := &fakeSlot{}
	a := NewAutosaver(slot, 10*time.Millisecond)
	t.Cleanup(a.Stop)

	a.Schedule(LocalDraft{ID: "old"})
	a.Reset()
	a.Schedule(LocalDraft{ID: "new"})

	require.Eventually(t, func() bool {
		saves, _ := slot.counts()
		return saves == 1
	}, time.Second, 5*time.Millisecond)

	slot.mu.Lock()
	defer slot.mu.Unlock()
	assert.Equal(t, "new", slot.saves[0].ID)
}

func TestAutosaver_StorageFailureIsSwallowed(t *testing.T) {
	slot := &fakeSlot{failAll: true}
	a := NewAutosaver(slot, 10*time.Millisecond)
	t.Cleanup(a.Stop)

	a.Schedule(LocalDraft{ID: "sess"})
	time.Sleep(50 * time.Millisecond)
	// nothing to assert beyond "no panic, no write"; failures are logged only
	saves, _ := slot.counts()
	assert.Zero(t, saves)
}
