package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/site-archiver/internal/progress"
)

// stageMessages maps each stage onto its log message and level. PAGE_START is
// debug-only; every page also produces a SAVED or FAILED line.
var stageMessages = map[progress.Stage]struct {
	msg   string
	level zapcore.Level
}{
	progress.StageRunStart:   {"run started", zapcore.InfoLevel},
	progress.StagePageStart:  {"fetching page", zapcore.DebugLevel},
	progress.StagePageSaved:  {"page saved", zapcore.InfoLevel},
	progress.StagePageFailed: {"page failed", zapcore.WarnLevel},
	progress.StageRunDone:    {"run finished", zapcore.InfoLevel},
	progress.StageArchived:   {"archive created", zapcore.InfoLevel},
	progress.StageDelivered:  {"archive delivered", zapcore.InfoLevel},
}

// LogSink turns progress events into structured log lines.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a LogSink writing to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("progress")}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		m, ok := stageMessages[evt.Stage]
		if !ok {
			continue
		}
		ce := s.logger.Check(m.level, m.msg)
		if ce == nil {
			continue
		}
		ce.Write(eventFields(evt)...)
	}
	return nil
}

func eventFields(evt progress.Event) []zap.Field {
	fields := []zap.Field{zap.String("run_id", evt.RunUUID().String())}
	switch evt.Stage {
	case progress.StagePageStart, progress.StagePageSaved, progress.StagePageFailed:
		fields = append(fields, zap.String("url", evt.URL), zap.Int("depth", evt.Depth))
		if evt.Stage == progress.StagePageSaved {
			fields = append(fields, zap.Int64("bytes", evt.Bytes), zap.Duration("dur", evt.Dur))
		}
	case progress.StageArchived, progress.StageDelivered:
		fields = append(fields, zap.String("archive", evt.URL), zap.Int64("bytes", evt.Bytes))
	}
	fields = append(fields,
		zap.Int("scraped", evt.Counters.Scraped),
		zap.Int("failed", evt.Counters.Failed),
		zap.Int("found_links", evt.Counters.Discovered),
	)
	if evt.Counters.Queued > 0 {
		fields = append(fields, zap.Int("queued", evt.Counters.Queued))
	}
	if evt.Stage == progress.StageRunDone {
		fields = append(fields, zap.Duration("elapsed", evt.Dur))
	}
	if evt.Note != "" {
		fields = append(fields, zap.String("note", evt.Note))
	}
	return fields
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
