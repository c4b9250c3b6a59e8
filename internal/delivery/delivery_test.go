package delivery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubNotifier struct {
	name  string
	err   error
	calls []string
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Notify(_ context.Context, archivePath, recipient string) error {
	s.calls = append(s.calls, archivePath+"|"+recipient)
	return s.err
}

func TestMultiDeliversToEveryNotifier(t *testing.T) {
	t.Parallel()

	a := &stubNotifier{name: "a"}
	b := &stubNotifier{name: "b", err: fmt.Errorf("no creds: %w", ErrSkipped)}
	m := NewMulti(nil, a, nil, b)

	require.NoError(t, m.Notify(context.Background(), "/tmp/site.zip", "me@example.com"))
	assert.Equal(t, []string{"/tmp/site.zip|me@example.com"}, a.calls)
	assert.Len(t, b.calls, 1)
}

func TestMultiAllSkipped(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	m := NewMulti(zap.New(core), &stubNotifier{name: "smtp", err: ErrSkipped})

	err := m.Notify(context.Background(), "x.zip", "")
	require.ErrorIs(t, err, ErrSkipped)
	assert.Equal(t, 1, logs.FilterMessage("delivery skipped").Len())
}

func TestMultiEmptyIsSkipped(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, NewMulti(nil).Notify(context.Background(), "x.zip", ""), ErrSkipped)
}

func TestMultiJoinsFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	ok := &stubNotifier{name: "gcs"}
	m := NewMulti(nil, &stubNotifier{name: "smtp", err: boom}, ok)

	err := m.Notify(context.Background(), "x.zip", "")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "smtp: boom")
	assert.Len(t, ok.calls, 1)
}
