package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// TraceLevel is a custom level below Debug, used for wire-level request dumps.
const TraceLevel = zapcore.Level(-2)

// Config holds logging configuration.
type Config struct {
	Level  string `koanf:"level" yaml:"level,omitempty"`
	Format string `koanf:"format" yaml:"format,omitempty"`
}

// DefaultConfig returns the console/info configuration used by the CLI.
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatConsole}
}

// Validate checks level and format.
func (c Config) Validate() error {
	if _, err := LevelFromString(c.Level); err != nil {
		return fmt.Errorf("invalid level %q: %w", c.Level, err)
	}
	switch c.Format {
	case "", FormatConsole, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format %q (expected console or json)", c.Format)
	}
}

// LevelFromString parses a string into a zapcore.Level, supporting "trace".
// An empty string means info.
func LevelFromString(level string) (zapcore.Level, error) {
	switch level {
	case "":
		return zapcore.InfoLevel, nil
	case "trace":
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
