package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// Config wraps viper and provides typed accessors.
type Config struct {
	v *viper.Viper
}

// Load reads a config file and prepares defaults. INI files go through
// gopkg.in/ini.v1 so flat key=value files work without section headers;
// anything else is handed to viper directly. Environment variables with
// the VIBEE prefix override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VIBEE")
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		return &Config{v: v}, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".ini") {
		if err := loadINI(v, path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Config{v: v}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APIBase", "https://saavn.dev/api")
	v.SetDefault("DefaultLanguage", "tamil")
	v.SetDefault("Database", "vibee.db")
	v.SetDefault("DBMaxOpenConns", 1)
	v.SetDefault("DBMaxIdleConns", 1)
	v.SetDefault("DBConnMaxLifetimeSec", 3600)
	v.SetDefault("LogDir", "./log")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("LogSource", false)
	v.SetDefault("GormLogLevel", "warn")
	v.SetDefault("GormSlowThresholdMs", 200)
	v.SetDefault("SectionTTLMinutes", 120)
	v.SetDefault("SearchTTLMinutes", 60)
	v.SetDefault("ResolveBatchSize", 5)
	v.SetDefault("ResolveBatchPauseMs", 200)
	v.SetDefault("WarmupLanguages", 3)
	v.SetDefault("WarmupDelaySeconds", 3)
	v.SetDefault("WorkerPoolSize", 4)
	v.SetDefault("LyricsAPIBase", "https://lrclib.net/api")
}

// GetString returns a string value.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns an int value.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool returns a bool value.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice returns a slice of strings.
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

func loadINI(v *viper.Viper, path string) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}

	for _, key := range cfg.Section("").Keys() {
		v.Set(key.Name(), key.Value())
	}

	return nil
}
