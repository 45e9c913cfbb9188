// Package config loads the facemarks pipeline settings from a YAML file and
// FACEMARKS_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/Noofbiz/facemarks/datasets"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment overrides, e.g. FACEMARKS_LOADER_BATCH_SIZE.
const EnvPrefix = "FACEMARKS"

type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Transform TransformConfig `mapstructure:"transform"`
	Loader    LoaderConfig    `mapstructure:"loader"`
	Export    ExportConfig    `mapstructure:"export"`
	Log       LogConfig       `mapstructure:"log"`
}

type DataConfig struct {
	CSVFile    string `mapstructure:"csv_file"`
	RootDir    string `mapstructure:"root_dir"`
	Channels   int    `mapstructure:"channels"`
	AutoOrient bool   `mapstructure:"auto_orient"`
}

type TransformConfig struct {
	// Rescale is the shorter side target; 0 disables the step.
	Rescale int `mapstructure:"rescale"`
	// Crop is the square random crop size; 0 disables the step.
	Crop     int    `mapstructure:"crop"`
	Filter   string `mapstructure:"filter"`
	ToTensor bool   `mapstructure:"to_tensor"`
	Seed     uint64 `mapstructure:"seed"`
}

type LoaderConfig struct {
	BatchSize  int    `mapstructure:"batch_size"`
	Shuffle    bool   `mapstructure:"shuffle"`
	NumWorkers int    `mapstructure:"num_workers"`
	Prefetch   int    `mapstructure:"prefetch"`
	Seed       uint64 `mapstructure:"seed"`
}

type ExportConfig struct {
	// Path of the TFRecord output; empty disables export.
	Path   string `mapstructure:"path"`
	Shards int    `mapstructure:"shards"`
}

type LogConfig struct {
	// Mode is "release" for JSON logs, anything else for coloured console logs.
	Mode string `mapstructure:"mode"`
}

// Load reads the configuration from the YAML file at configPath, on top of
// the defaults. An empty configPath uses the defaults alone. Environment
// variables override both.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.csv_file", "data/faces/face_landmarks.csv")
	v.SetDefault("data.root_dir", "data/faces")
	v.SetDefault("data.channels", 3)
	v.SetDefault("data.auto_orient", false)

	v.SetDefault("transform.rescale", 256)
	v.SetDefault("transform.crop", 224)
	v.SetDefault("transform.filter", "linear")
	v.SetDefault("transform.to_tensor", true)
	v.SetDefault("transform.seed", 0)

	v.SetDefault("loader.batch_size", 4)
	v.SetDefault("loader.shuffle", true)
	v.SetDefault("loader.num_workers", 0)
	v.SetDefault("loader.prefetch", 2)
	v.SetDefault("loader.seed", 0)

	v.SetDefault("export.path", "")
	v.SetDefault("export.shards", 1)

	v.SetDefault("log.mode", "debug")
}

// Validate reports the first invalid setting, wrapping datasets.ErrConfig.
func (c *Config) Validate() error {
	switch {
	case c.Data.CSVFile == "":
		return fmt.Errorf("data.csv_file is required: %w", datasets.ErrConfig)
	case c.Data.Channels != 1 && c.Data.Channels != 3 && c.Data.Channels != 4:
		return fmt.Errorf("data.channels must be 1, 3 or 4, got %d: %w", c.Data.Channels, datasets.ErrConfig)
	case c.Transform.Rescale < 0:
		return fmt.Errorf("transform.rescale must not be negative: %w", datasets.ErrConfig)
	case c.Transform.Crop < 0:
		return fmt.Errorf("transform.crop must not be negative: %w", datasets.ErrConfig)
	case c.Transform.Rescale > 0 && c.Transform.Crop > c.Transform.Rescale:
		return fmt.Errorf("transform.crop %d exceeds transform.rescale %d: %w",
			c.Transform.Crop, c.Transform.Rescale, datasets.ErrConfig)
	case c.Loader.BatchSize < 1:
		return fmt.Errorf("loader.batch_size must be at least 1: %w", datasets.ErrConfig)
	case c.Loader.NumWorkers < 0:
		return fmt.Errorf("loader.num_workers must not be negative: %w", datasets.ErrConfig)
	case c.Loader.Prefetch < 0:
		return fmt.Errorf("loader.prefetch must not be negative: %w", datasets.ErrConfig)
	case c.Export.Shards < 0:
		return fmt.Errorf("export.shards must not be negative: %w", datasets.ErrConfig)
	}
	if _, err := datasets.FilterByName(c.Transform.Filter); err != nil {
		return fmt.Errorf("transform.filter: %w", err)
	}
	return nil
}
