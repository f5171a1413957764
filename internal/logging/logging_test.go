package logging

import (
	"testing"

	"github.com/kozaktomas/face-attendance/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		level   zapcore.Level
		wantErr bool
	}{
		{"default", config.LogConfig{}, zapcore.InfoLevel, false},
		{"debug console", config.LogConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel, false},
		{"warn json", config.LogConfig{Level: "warn", Format: "json"}, zapcore.WarnLevel, false},
		{"invalid", config.LogConfig{Level: "loud"}, zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !logger.Core().Enabled(tt.level) {
				t.Errorf("expected level %s to be enabled", tt.level)
			}
			if tt.level > zapcore.DebugLevel && logger.Core().Enabled(tt.level-1) {
				t.Errorf("expected level %s to be disabled", tt.level-1)
			}
		})
	}
}
