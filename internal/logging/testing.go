package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger wraps Logger with test observation capabilities.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates a logger for testing with full observation.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core)},
		observed: observed,
	}
}

// All returns all logged entries.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// Messages returns the messages logged at level, in order.
func (t *TestLogger) Messages(level zapcore.Level) []string {
	var out []string
	for _, e := range t.observed.FilterLevelExact(level).All() {
		out = append(out, e.Message)
	}
	return out
}

// Reset clears all logged entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// AssertLogged verifies a log at level containing message was logged.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			return
		}
	}
	tb.Errorf("expected log at %v containing %q, logs: %+v", level, msgContains, t.observed.All())
}

// AssertNotLogged verifies no log at level containing message was logged.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			tb.Errorf("unexpected log at %v containing %q", level, msgContains)
		}
	}
}

// AssertNoSecrets verifies that none of the given raw secrets appear in any
// message or string field.
func (t *TestLogger) AssertNoSecrets(tb testing.TB, secrets ...string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		for _, s := range secrets {
			if s == "" {
				continue
			}
			if strings.Contains(entry.Message, s) {
				tb.Errorf("secret leaked in message: %q", entry.Message)
			}
			for _, f := range entry.Context {
				if f.Type == zapcore.StringType && strings.Contains(f.String, s) {
					tb.Errorf("secret leaked in field %q", f.Key)
				}
			}
		}
	}
}
