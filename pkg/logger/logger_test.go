package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"snigexport/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "debug level",
			cfg:     &config.LoggingConfig{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid level",
			cfg:     &config.LoggingConfig{Level: "loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestNewWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snigexport.log")

	l, err := New(&config.LoggingConfig{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("started")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected log file to exist: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		level, err := parseLogLevel(tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && level != tt.expected {
			t.Errorf("parseLogLevel(%q) = %v, expected %v", tt.level, level, tt.expected)
		}
	}
}

func TestTestLoggerSharesCapture(t *testing.T) {
	tl := NewTestLogger()

	tl.Info("first")
	tl.WithField("layer", 2).Warn("second")
	tl.WithFields(map[string]interface{}{"chunk": 1}).Error("third")

	if got := len(tl.Messages()); got != 3 {
		t.Fatalf("expected 3 captured messages, got %d", got)
	}
	if !tl.HasMessage("second") {
		t.Error("expected derived logger output to reach the parent capture")
	}

	msgs := tl.Messages()
	if msgs[1].Fields["layer"] != 2 {
		t.Errorf("expected field to be captured, got %v", msgs[1].Fields)
	}
	if msgs[2].Level != "ERROR" {
		t.Errorf("expected error level, got %s", msgs[2].Level)
	}
}
