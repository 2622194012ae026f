package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("missing.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.MirrorEnabled())
	assert.Equal(t, "127.0.0.1:5500", cfg.Consumer.Address())
}

func TestLoad_File(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
consumer:
  host: 10.0.0.7
  port: 6000
  sendInterval: 250ms
screen:
  width: 2560
  height: 1440
  clamp: true
detector:
  useBackend: pigo
  landmarkModelPath: lm.onnx
gaze:
  mirror: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7:6000", cfg.Consumer.Address())
	assert.Equal(t, 250*time.Millisecond, cfg.Consumer.SendInterval)
	assert.Equal(t, 2560, cfg.Screen.Width)
	assert.True(t, cfg.Screen.Clamp)
	assert.Equal(t, "pigo", cfg.Detector.UseBackend)
	assert.False(t, cfg.MirrorEnabled())
	// untouched sections keep their defaults
	assert.Equal(t, Default().Calibration, cfg.Calibration)
	assert.Equal(t, Default().Detector.LandmarkInputSize, cfg.Detector.LandmarkInputSize)
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GAZE_CONSUMER_PORT", "7001")
	t.Setenv("GAZE_DISPLAY", "false")
	cfg, err := Load("missing.yaml")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Consumer.Port)
	assert.False(t, cfg.Display.Enabled)

	t.Setenv("GAZE_SCREEN_WIDTH", "wide")
	_, err = Load("missing.yaml")
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GAZE_CONSUMER_HOST=192.168.1.5\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("GAZE_CONSUMER_HOST") })

	cfg, err := Load("missing.yaml")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.5", cfg.Consumer.Host)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	for name, body := range map[string]string{
		"port out of range":  "consumer:\n  port: 70000\n",
		"unknown backend":    "detector:\n  useBackend: hog\n",
		"zero screen":        "screen:\n  width: 0\n",
		"target ratio":       "calibration:\n  targetRatio: 1.5\n",
		"registry host":      "regServer:\n  use: true\n  port: 9000\n",
		"missing landmarker": "detector:\n  landmarkModelPath: \"\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "consumer: [\n"))
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
