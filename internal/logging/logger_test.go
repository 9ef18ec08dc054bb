package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewLoggerNeverNil(t *testing.T) {
	if NewLogger(Config{}) == nil {
		t.Fatal("expected logger")
	}
	if NewLogger(Config{Format: "json", Service: "test", Version: "dev"}) == nil {
		t.Fatal("expected json logger")
	}
}

func TestFromContext(t *testing.T) {
	fallback := NewLogger(Config{})
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatal("expected fallback when context has no logger")
	}

	stored := NewLogger(Config{Format: "json"})
	ctx := WithLogger(context.Background(), stored)
	if got := FromContext(ctx, fallback); got != stored {
		t.Fatal("expected stored logger from context")
	}
}
