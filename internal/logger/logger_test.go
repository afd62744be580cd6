package logger

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

func restore(t *testing.T) {
	t.Helper()
	saved := L
	t.Cleanup(func() { L = saved })
}

func TestInitDisabledDiscards(t *testing.T) {
	restore(t)
	var out bytes.Buffer
	closer, err := Init(Options{Enabled: false, Output: &out})
	require.NoError(t, err)
	require.NoError(t, closer())
	Info("hello")
	assert.Empty(t, out.String())
}

func TestInitTextLevel(t *testing.T) {
	restore(t)
	var out bytes.Buffer
	_, err := Init(Options{Enabled: true, Output: &out, Level: slog.LevelWarn})
	require.NoError(t, err)

	Debug("quiet")
	Info("quiet")
	Warn("loud", "frames", 3)
	assert.NotContains(t, out.String(), "quiet")
	assert.Contains(t, out.String(), "msg=loud")
	assert.Contains(t, out.String(), "frames=3")
}

func TestInitJSONWithComponent(t *testing.T) {
	restore(t)
	var out bytes.Buffer
	_, err := Init(Options{Enabled: true, Output: &out, JSON: true})
	require.NoError(t, err)

	For("alloc").Info("split", "left", 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, "split", rec["msg"])
	assert.Equal(t, "alloc", rec["component"])
}

func TestInitLogFile(t *testing.T) {
	restore(t)
	path := filepath.Join(t.TempDir(), "framekit.log")
	closer, err := Init(Options{Enabled: true, LogFile: path})
	require.NoError(t, err)
	Error("boom")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=boom")
}
