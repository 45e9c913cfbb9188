package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/facemarks/datasets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/faces/face_landmarks.csv", cfg.Data.CSVFile)
	assert.Equal(t, 3, cfg.Data.Channels)
	assert.Equal(t, 256, cfg.Transform.Rescale)
	assert.Equal(t, 224, cfg.Transform.Crop)
	assert.True(t, cfg.Transform.ToTensor)
	assert.Equal(t, 4, cfg.Loader.BatchSize)
	assert.True(t, cfg.Loader.Shuffle)
	assert.Equal(t, 2, cfg.Loader.Prefetch)
	assert.Equal(t, 1, cfg.Export.Shards)
	assert.Equal(t, "debug", cfg.Log.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facemarks.yaml")
	yaml := `data:
  csv_file: /data/faces.csv
  root_dir: /data
transform:
  rescale: 64
  crop: 48
  filter: lanczos
loader:
  batch_size: 8
  num_workers: 3
  seed: 42
log:
  mode: release
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("FACEMARKS_LOADER_BATCH_SIZE", "16")
	t.Setenv("FACEMARKS_EXPORT_PATH", "/tmp/out.tfrecord")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/faces.csv", cfg.Data.CSVFile)
	assert.Equal(t, "/data", cfg.Data.RootDir)
	assert.Equal(t, 64, cfg.Transform.Rescale)
	assert.Equal(t, 48, cfg.Transform.Crop)
	assert.Equal(t, "lanczos", cfg.Transform.Filter)
	assert.Equal(t, 16, cfg.Loader.BatchSize, "environment overrides the file")
	assert.Equal(t, 3, cfg.Loader.NumWorkers)
	assert.Equal(t, uint64(42), cfg.Loader.Seed)
	assert.Equal(t, "/tmp/out.tfrecord", cfg.Export.Path)
	assert.Equal(t, "release", cfg.Log.Mode)
	// Untouched keys keep their defaults.
	assert.True(t, cfg.Loader.Shuffle)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no csv", func(c *Config) { c.Data.CSVFile = "" }},
		{"channels", func(c *Config) { c.Data.Channels = 2 }},
		{"negative rescale", func(c *Config) { c.Transform.Rescale = -1 }},
		{"negative crop", func(c *Config) { c.Transform.Crop = -1 }},
		{"crop over rescale", func(c *Config) { c.Transform.Rescale = 100; c.Transform.Crop = 101 }},
		{"batch size", func(c *Config) { c.Loader.BatchSize = 0 }},
		{"workers", func(c *Config) { c.Loader.NumWorkers = -2 }},
		{"prefetch", func(c *Config) { c.Loader.Prefetch = -1 }},
		{"shards", func(c *Config) { c.Export.Shards = -1 }},
		{"filter", func(c *Config) { c.Transform.Filter = "bicubic" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), datasets.ErrConfig)
		})
	}
}
