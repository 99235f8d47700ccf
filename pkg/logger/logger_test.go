package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected zapcore.Level
	}{
		{name: "json debug", cfg: Config{Level: "debug", Encoding: "json"}, expected: zapcore.DebugLevel},
		{name: "console warn", cfg: Config{Level: "WARN", Encoding: "console"}, expected: zapcore.WarnLevel},
		{name: "unknown level", cfg: Config{Level: "loud"}, expected: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !log.Core().Enabled(tt.expected) {
				t.Errorf("expected level %s to be enabled", tt.expected)
			}
			if tt.expected > zapcore.DebugLevel && log.Core().Enabled(tt.expected-1) {
				t.Errorf("expected level below %s to be disabled", tt.expected)
			}
		})
	}
}
