package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := New(tt.in, &bytes.Buffer{}).GetLevel(); got != tt.want {
			t.Errorf("New(%q) level = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("run_id", "abc").Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug event written at info level")
	}
	if !strings.Contains(out, `"run_id":"abc"`) || !strings.Contains(out, `"time":`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsole("info", &buf)
	logger.Info().Msg("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("console output missing message: %q", buf.String())
	}
}
