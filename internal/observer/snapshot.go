package observer

import (
	"context"
	"sync"

	"go-scan-sorter/pkg/models"
)

// SnapshotObserver keeps the latest progress state for polling clients.
type SnapshotObserver struct {
	mu       sync.RWMutex
	snapshot models.ProgressSnapshot
}

func NewSnapshotObserver() *SnapshotObserver {
	return &SnapshotObserver{}
}

func (o *SnapshotObserver) OnEvent(ctx context.Context, event ProgressEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.snapshot.BatchID = event.BatchID
	o.snapshot.Phase = string(event.Phase)
	o.snapshot.Done = event.Done
	o.snapshot.Total = event.Total
	o.snapshot.UpdatedAt = event.Timestamp
	switch event.EventType {
	case BatchCompleted, BatchFailed:
		o.snapshot.Running = false
	default:
		o.snapshot.Running = true
	}
}

func (o *SnapshotObserver) GetObserverName() string {
	return "snapshot_observer"
}

// Snapshot returns a copy of the latest state.
func (o *SnapshotObserver) Snapshot() models.ProgressSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

// Running reports whether a batch is in flight.
func (o *SnapshotObserver) Running() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot.Running
}
