// Package config loads tool settings from defaults, an optional
// reelcut.json file and REELCUT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config carries the settings the pipeline assembles its components
// from. Flag values override these at the CLI layer.
type Config struct {
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
	FFprobePath     string `mapstructure:"ffprobe_path"`
	LogLevel        string `mapstructure:"log_level"`
	CacheCapacity   int    `mapstructure:"cache_capacity"`
	AudioSampleRate int    `mapstructure:"audio_sample_rate"`
	AutosaveEnabled bool   `mapstructure:"autosave_enabled"`
}

// Load reads reelcut.json from the given search paths, falling back to
// the working directory and $HOME/.config/reelcut when none are given.
// A missing file is fine; defaults and environment overrides still
// apply.
func Load(searchPaths ...string) (Config, error) {
	v := viper.New()

	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("ffprobe_path", "ffprobe")
	v.SetDefault("log_level", "info")
	v.SetDefault("cache_capacity", 32)
	v.SetDefault("audio_sample_rate", 48000)
	v.SetDefault("autosave_enabled", true)

	v.SetConfigName("reelcut")
	v.SetConfigType("json")
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
		if home, err := os.UserHomeDir(); err == nil {
			searchPaths = append(searchPaths, filepath.Join(home, ".config", "reelcut"))
		}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("REELCUT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
