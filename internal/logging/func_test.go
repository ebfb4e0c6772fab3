package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncLogger_DeliversLines(t *testing.T) {
	var lines []string
	log := NewFuncLogger(func(s string) { lines = append(lines, s) }, slog.LevelInfo)
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.Info(ctx, "Downloaded", "url", "https://a/b.jpg")
	log.With("worker", 2).Warn(ctx, "Retrying")

	require.Len(t, lines, 2)
	assert.Equal(t, "Downloaded url=https://a/b.jpg", lines[0])
	assert.Equal(t, "[WARN] Retrying worker=2", lines[1])
}

func TestFuncHandler_WithGroup(t *testing.T) {
	var got string
	l := slog.New(NewFuncHandler(func(s string) { got = s }, slog.LevelDebug)).WithGroup("http")
	l.Info("request", "status", 503)
	assert.Equal(t, "request http.status=503", got)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscard_WritesNothing(t *testing.T) {
	l := Discard()
	l.Error(context.Background(), "dropped")
	assert.False(t, l.l.Enabled(context.Background(), slog.LevelError))
}
