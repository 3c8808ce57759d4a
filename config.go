package automat

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the recording thresholds. All values are runtime mutable and
// are silently clamped to their valid range instead of ever erroring.
type Config struct {
	// ValueThreshold is the minimum change from the last recorded value for
	// a new sample to produce a point. Clamped to >= 0.
	ValueThreshold float64

	// MinTimeBetweenPoints is the minimum time, in seconds, between two
	// recorded points on the same lane. Clamped to >= 0.001.
	MinTimeBetweenPoints float64

	// TouchReleaseDelay is reserved for a smooth return to the underlying
	// curve after a Touch release. It is clamped and stored, but nothing
	// consumes it yet.
	TouchReleaseDelay float64
}

func DefaultConfig() Config {
	return Config{
		ValueThreshold:       0.001,
		MinTimeBetweenPoints: 0.02,
		TouchReleaseDelay:    0.1,
	}
}

// Clamp forces every field to its valid range.
func (c *Config) Clamp() {
	if c.ValueThreshold < 0 {
		c.ValueThreshold = 0
	}
	if c.MinTimeBetweenPoints < 0.001 {
		c.MinTimeBetweenPoints = 0.001
	}
	if c.TouchReleaseDelay < 0 {
		c.TouchReleaseDelay = 0
	}
}

// ConfigPath returns the per-user path of the config file.
func ConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "automat", "config.yml"), nil
}

// LoadConfig reads a config from path. A missing file is not an error: the
// defaults are returned. The loaded values are clamped.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("could not read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return DefaultConfig(), fmt.Errorf("could not parse config: %w", err)
	}
	c.Clamp()
	return c, nil
}

// Save writes the config to path, creating the directory if needed.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
