// Package config loads the classifier run configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"dyss/classifier"
	"dyss/preprocess"
	"dyss/utils"

	"gopkg.in/yaml.v3"
)

// Config mirrors the construct arguments of the classifier plus the
// runtime knobs of the CLI and server.
type Config struct {
	NumScouts     int    `yaml:"num_scouts"`
	NumPacks      int    `yaml:"num_packs"`
	Reference     string `yaml:"reference"`
	Model         string `yaml:"model"`
	Calibration   string `yaml:"calibration"`
	Power         int    `yaml:"power"`
	QuerySize     int    `yaml:"querysize"`
	ReferenceSize int    `yaml:"reference_size"`

	// CalibrationFromDB looks thresholds up in the database instead of
	// the CSV table.
	CalibrationFromDB bool `yaml:"calibration_from_db"`
	// CacheReferences stores synthesized references in the database.
	CacheReferences bool `yaml:"cache_references"`
	Workers         int  `yaml:"workers"`

	Preprocess PreprocessConfig `yaml:"preprocess"`
}

// PreprocessConfig overrides preprocess.DefaultConfig field by field;
// zero values keep the default.
type PreprocessConfig struct {
	TrimFront  int       `yaml:"trim_front"`
	MinRemain  int       `yaml:"min_remain"`
	Windows    []int     `yaml:"windows"`
	Thresholds []float64 `yaml:"thresholds"`
	PeakHeight float64   `yaml:"peak_height"`
}

// Default returns the settings of the reference read-until driver.
func Default() Config {
	return Config{
		NumScouts:     14,
		NumPacks:      3,
		Reference:     "./data/reference.fa",
		Model:         "./data/template_r9.4.model",
		Calibration:   "./data/parameters.csv",
		Power:         9,
		QuerySize:     250,
		ReferenceSize: 200000,
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %v", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %v", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"DYSS_REFERENCE":   &c.Reference,
		"DYSS_MODEL":       &c.Model,
		"DYSS_CALIBRATION": &c.Calibration,
	}
	for key, dst := range strs {
		if v := utils.GetEnv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DYSS_NUM_SCOUTS":     &c.NumScouts,
		"DYSS_NUM_PACKS":      &c.NumPacks,
		"DYSS_POWER":          &c.Power,
		"DYSS_QUERYSIZE":      &c.QuerySize,
		"DYSS_REFERENCE_SIZE": &c.ReferenceSize,
		"DYSS_WORKERS":        &c.Workers,
	}
	for key, dst := range ints {
		v := utils.GetEnv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("failed to convert env variable (%s) to int: %v", key, err)
		}
		*dst = n
	}
	return nil
}

// PreprocessConfig resolves the preprocessing overrides.
func (c Config) PreprocessConfig() preprocess.Config {
	pre := preprocess.DefaultConfig()
	p := c.Preprocess
	if p.TrimFront > 0 {
		pre.TrimFront = p.TrimFront
	}
	if p.MinRemain > 0 {
		pre.MinRemain = p.MinRemain
	}
	if len(p.Windows) > 0 {
		pre.Windows = p.Windows
	}
	if len(p.Thresholds) > 0 {
		pre.Thresholds = p.Thresholds
	}
	if p.PeakHeight > 0 {
		pre.PeakHeight = p.PeakHeight
	}
	return pre
}

// Options converts the config into classifier construction options.
func (c Config) Options() classifier.Options {
	pre := c.PreprocessConfig()
	return classifier.Options{
		NumScouts:       c.NumScouts,
		NumPacks:        c.NumPacks,
		ReferencePath:   c.Reference,
		ModelPath:       c.Model,
		CalibrationPath: c.Calibration,
		Power:           c.Power,
		QuerySize:       c.QuerySize,
		ReferenceSize:   c.ReferenceSize,
		Preprocess:      &pre,
	}
}
