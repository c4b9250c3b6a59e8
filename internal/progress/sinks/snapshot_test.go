package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/site-archiver/internal/progress"
)

func TestSnapshotSinkTracksLatestState(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink()
	require.Equal(t, progress.Snapshot{}, sink.Latest())

	id := uuid.New()
	runID := progress.UUIDToBytes(id)
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: ts, Stage: progress.StageRunStart, URL: "https://example.com"},
		{RunID: runID, TS: ts, Stage: progress.StagePageSaved, URL: "https://example.com/a",
			Counters: progress.Counters{Scraped: 1, Discovered: 3, Queued: 2}},
	}))

	snap := sink.Latest()
	assert.Equal(t, id.String(), snap.RunID)
	assert.True(t, snap.Running)
	assert.Equal(t, "https://example.com/a", snap.LatestURL)
	assert.Equal(t, 1, snap.Scraped)
	assert.Equal(t, 3, snap.Found)
	assert.Equal(t, 2, snap.Queued)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: ts, Stage: progress.StageRunDone, Counters: progress.Counters{Scraped: 1, Discovered: 3}},
		{RunID: runID, TS: ts, Stage: progress.StageArchived, URL: "/tmp/a.zip"},
	}))
	snap = sink.Latest()
	assert.False(t, snap.Running)
	assert.Equal(t, progress.StageArchived, snap.Stage)
	assert.Equal(t, 1, snap.Scraped, "archive events keep the crawl counters")
}

func TestLogSinkWritesStructuredFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	runID := progress.UUIDToBytes(uuid.New())

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StagePageSaved, URL: "https://example.com/a"},
		{RunID: runID, TS: time.Now(), Stage: progress.StagePageFailed, URL: "https://example.com/b", Note: "timeout"},
	}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "page saved", entries[0].Message)
	assert.Equal(t, "https://example.com/a", entries[0].ContextMap()["url"])
	assert.Equal(t, "page failed", entries[1].Message)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "timeout", entries[1].ContextMap()["note"])
}

func TestLogSinkSkipsPageStartAboveDebug(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	runID := progress.UUIDToBytes(uuid.New())

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StagePageStart, URL: "https://example.com/a"},
		{RunID: runID, TS: time.Now(), Stage: progress.StageArchived, URL: "/tmp/a.zip", Bytes: 2048},
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "archive created", entries[0].Message)
	assert.Equal(t, "/tmp/a.zip", entries[0].ContextMap()["archive"])
	assert.EqualValues(t, 2048, entries[0].ContextMap()["bytes"])
}
