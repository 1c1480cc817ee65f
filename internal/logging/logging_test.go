// internal/logging/logging_test.go
package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForService_TagsRecords(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)
	SetLevel(slog.LevelInfo)
	t.Cleanup(func() { SetOutput(os.Stdout, os.Stderr) })

	l := ForService("orchestrator")
	require.NotNil(t, l)
	l.Info("board started", "board", 2)
	l.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(structured.Bytes(), &rec))
	assert.Equal(t, "orchestrator", rec["service"])
	assert.Equal(t, "board started", rec["msg"])
	assert.EqualValues(t, 2, rec["board"])
}

func TestNewFileLogger_WritesJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "daqd.log")
	l, closeFn, err := NewFileLogger(path, "daqd", slog.LevelInfo, FileRotation{MaxSizeMB: 1})
	require.NoError(t, err)

	l.Info("cycle finished", "board", 0)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"daqd"`)
	assert.Contains(t, string(data), "cycle finished")
}

func TestTee_WritesBoth(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	la := slog.New(slog.NewTextHandler(&a, nil))
	lb := slog.New(slog.NewJSONHandler(&b, nil))

	Tee(la, lb).Info("hello", "k", "v")

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, b.String(), `"k":"v"`)
	assert.Same(t, la, Tee(la, nil))
}
