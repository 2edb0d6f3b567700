package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost", cfg.OllamaBaseURL)
	assert.Equal(t, 11434, cfg.OllamaPort)
	assert.Equal(t, "llama3.2-vision:11b", cfg.VisionModel)
	assert.Equal(t, 6, cfg.MaxFrames)
	assert.Equal(t, 640, cfg.TargetWidth)
	assert.Equal(t, 480, cfg.TargetHeight)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 50, cfg.VideoCacheSize)
	assert.Equal(t, time.Hour, cfg.ResultTTL)
	assert.Equal(t, 24*time.Hour, cfg.FinalResultTTL)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.Minio.Endpoint)
	assert.Equal(t, "climbing-videos", cfg.Minio.VideoBucket)
}

func TestYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cruxview.yaml")
	data := []byte(`
vision_model: qwen2.5-vl:7b
max_frames: 8
result_ttl: 30m
minio:
  endpoint: minio.local:9000
  access_key: crux
  secret_key: view
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qwen2.5-vl:7b", cfg.VisionModel)
	assert.Equal(t, 8, cfg.MaxFrames)
	assert.Equal(t, 30*time.Minute, cfg.ResultTTL)
	assert.Equal(t, "minio.local:9000", cfg.Minio.Endpoint)
	// Untouched keys keep their defaults.
	assert.Equal(t, 11434, cfg.OllamaPort)
	assert.Equal(t, 2, cfg.Workers)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cruxview.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_frames: 8\n"), 0o600))

	t.Setenv("CRUXVIEW_MAX_FRAMES", "4")
	t.Setenv("CRUXVIEW_VISION_MODEL", "llava:13b")
	t.Setenv("CRUXVIEW_VIDEO_CACHE_TTL", "15m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxFrames)
	assert.Equal(t, "llava:13b", cfg.VisionModel)
	assert.Equal(t, 15*time.Minute, cfg.VideoCacheTTL)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	t.Setenv("CRUXVIEW_WORKERS", "0")
	_, err := Load("")
	assert.ErrorContains(t, err, "workers")

	t.Setenv("CRUXVIEW_WORKERS", "2")
	t.Setenv("CRUXVIEW_JPEG_QUALITY", "101")
	_, err = Load("")
	assert.ErrorContains(t, err, "jpeg_quality")
}
