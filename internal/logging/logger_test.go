// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true, "")
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected development logger to enable debug")
	}
}

// TestNewProductionLoggerLevel ensures the level override applies.
func TestNewProductionLoggerLevel(t *testing.T) {
	t.Parallel()

	logger, err := New(false, "warn")
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info to be disabled at warn level")
	}
	logger.Warn("production logger ready")
}

// TestNewRejectsUnknownLevel checks level parsing.
func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(false, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
