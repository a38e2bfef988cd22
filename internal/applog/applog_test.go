package applog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "netmon.log")

	lg, err := New("debug", path)
	require.NoError(t, err)
	lg.Debug("stage done", zap.String("stage", "validate"))
	_ = lg.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"stage done"`)
	assert.Contains(t, string(data), `"stage":"validate"`)
}

func TestNew_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netmon.log")

	lg, err := New("warn", path)
	require.NoError(t, err)
	lg.Info("hidden")
	lg.Warn("shown")
	_ = lg.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "hidden"))
	assert.True(t, strings.Contains(string(data), "shown"))
}

func TestNew_EmptyPathIsNop(t *testing.T) {
	lg, err := New("info", "")
	require.NoError(t, err)
	assert.NotNil(t, lg)
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("loud", filepath.Join(t.TempDir(), "x.log"))
	assert.Error(t, err)
}
