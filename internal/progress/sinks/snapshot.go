package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/site-archiver/internal/progress"
)

// SnapshotSink keeps the most recent progress state for polling.
type SnapshotSink struct {
	mu   sync.RWMutex
	snap progress.Snapshot
}

// NewSnapshotSink returns an empty snapshot holder.
func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{}
}

// Consume folds the batch into the snapshot.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.snap.RunID = evt.RunUUID().String()
		s.snap.Stage = evt.Stage
		s.snap.UpdatedAt = evt.TS
		switch evt.Stage {
		case progress.StageRunStart:
			s.snap.Running = true
			s.snap.LatestURL = evt.URL
		case progress.StageRunDone:
			s.snap.Running = false
		case progress.StagePageStart, progress.StagePageSaved, progress.StagePageFailed:
			s.snap.LatestURL = evt.URL
		}
		if evt.Stage != progress.StageArchived && evt.Stage != progress.StageDelivered {
			s.snap.Scraped = evt.Counters.Scraped
			s.snap.Failed = evt.Counters.Failed
			s.snap.Found = evt.Counters.Discovered
			s.snap.Queued = evt.Counters.Queued
		}
	}
	return nil
}

// Latest returns a copy of the current snapshot.
func (s *SnapshotSink) Latest() progress.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Close implements the Sink interface; it performs no action.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}
