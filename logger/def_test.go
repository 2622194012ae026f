package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaze.log")
	require.NoError(t, Init(false, FileConfig{Path: path, MaxSizeMB: 1}))

	Log().Info("frame processed", zap.Int("frame", 7))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"frame processed"`)
	assert.Contains(t, string(data), `"frame":7`)
	assert.Same(t, Log(), zap.L())
}

func TestInitDevelopment(t *testing.T) {
	require.NoError(t, InitDevelopment())
	assert.NotNil(t, S())
}
