// Package delivery hands a finished archive to its destinations.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrSkipped reports that a notifier is not configured. It is never fatal.
var ErrSkipped = errors.New("delivery skipped")

// Notifier delivers an archive file.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, archivePath, recipient string) error
}

// Multi fans an archive out to every notifier. Skipped notifiers are logged and
// ignored.
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMulti builds a Multi from the non-nil notifiers.
func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Multi{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Notify returns nil when at least one notifier delivered and none failed,
// ErrSkipped when every notifier skipped, and the joined failures otherwise.
func (m *Multi) Notify(ctx context.Context, archivePath, recipient string) error {
	var (
		errs      []error
		delivered int
	)
	for _, n := range m.notifiers {
		err := n.Notify(ctx, archivePath, recipient)
		switch {
		case err == nil:
			delivered++
			m.logger.Info("archive delivered", zap.String("notifier", n.Name()), zap.String("archive", archivePath))
		case errors.Is(err, ErrSkipped):
			m.logger.Info("delivery skipped", zap.String("notifier", n.Name()), zap.String("reason", err.Error()))
		default:
			m.logger.Warn("delivery failed", zap.String("notifier", n.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if delivered == 0 {
		return ErrSkipped
	}
	return nil
}
