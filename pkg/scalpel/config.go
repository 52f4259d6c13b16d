package scalpel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned by LoadConfigFile for a missing file.
var ErrConfigNotFound = errors.New("config file not found")

// DefaultWatermarkPatterns are the vendor markers evaluation builds stamp
// onto slides, layouts and masters.
var DefaultWatermarkPatterns = []string{
	"Evaluation only",
	"Created with Aspose.Slides",
	"Copyright",
	"Aspose Pty Ltd",
	"Aspose",
}

// Config contains all configuration options for the surgery engine
type Config struct {
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string `yaml:"log_level" toml:"log_level"`
	// Workers bounds how many parts a parallel pass processes at once
	Workers int `yaml:"workers" toml:"workers"`
	// WatermarkPatterns flag text bodies whose shapes are stripped
	WatermarkPatterns []string `yaml:"watermark_patterns" toml:"watermark_patterns"`
	// PlaceholderPatterns flag text bodies the templatize pass leaves alone
	PlaceholderPatterns []string `yaml:"placeholder_patterns" toml:"placeholder_patterns"`
	// MarkerPatterns flag runs excluded from logical-text length math
	MarkerPatterns []string `yaml:"marker_patterns" toml:"marker_patterns"`
	// FillerText is repeated to build placeholder text
	FillerText string `yaml:"filler_text" toml:"filler_text"`
	// MinFillerLength applies to bodies made only of marker runs
	MinFillerLength int `yaml:"min_filler_length" toml:"min_filler_length"`
	// TemplatizeLayouts extends the templatize pass to layouts and masters
	TemplatizeLayouts bool `yaml:"templatize_layouts" toml:"templatize_layouts"`
	// MaxVerifyAttempts bounds the strip, save and verify loop
	MaxVerifyAttempts int `yaml:"max_verify_attempts" toml:"max_verify_attempts"`
	// ScanDPI is the resolution pixel sizes are reported at
	ScanDPI int `yaml:"scan_dpi" toml:"scan_dpi"`
	// Allowlist maps 1-based page numbers to the literal texts allowed to stay
	Allowlist map[string][]string `yaml:"allowlist" toml:"allowlist"`

	ImageGen  ImageGenConfig  `yaml:"image_gen" toml:"image_gen"`
	PageStore PageStoreConfig `yaml:"page_store" toml:"page_store"`
}

// ImageGenConfig configures the image-generation client.
type ImageGenConfig struct {
	Endpoint   string        `yaml:"endpoint" toml:"endpoint"`
	APIKey     string        `yaml:"api_key" toml:"api_key"`
	MaxRetries int           `yaml:"max_retries" toml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff" toml:"backoff"`
	Timeout    time.Duration `yaml:"timeout" toml:"timeout"`
	Throttle   time.Duration `yaml:"throttle" toml:"throttle"`
}

// PageStoreConfig configures the relational page store.
type PageStoreConfig struct {
	DSN   string `yaml:"dsn" toml:"dsn"`
	Table string `yaml:"table" toml:"table"`
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func init() {
	// Initialize global config from environment on first use
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		Workers:           4,
		WatermarkPatterns: append([]string(nil), DefaultWatermarkPatterns...),
		FillerText:        "模板文字",
		MinFillerLength:   4,
		MaxVerifyAttempts: 3,
		ScanDPI:           120,
		ImageGen: ImageGenConfig{
			MaxRetries: 1,
			Backoff:    500 * time.Millisecond,
			Timeout:    120 * time.Second,
			Throttle:   300 * time.Millisecond,
		},
		PageStore: PageStoreConfig{
			Table: "deck_pages",
		},
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	applyEnvironment(config)
	return config
}

func applyEnvironment(config *Config) {
	if val := os.Getenv("SCALPEL_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}
	if val := os.Getenv("SCALPEL_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Workers = n
		}
	}
	if val := os.Getenv("SCALPEL_WATERMARK_PATTERNS"); val != "" {
		config.WatermarkPatterns = splitList(val)
	}
	if val := os.Getenv("SCALPEL_PLACEHOLDER_PATTERNS"); val != "" {
		config.PlaceholderPatterns = splitList(val)
	}
	if val := os.Getenv("SCALPEL_MARKER_PATTERNS"); val != "" {
		config.MarkerPatterns = splitList(val)
	}
	if val := os.Getenv("SCALPEL_FILLER_TEXT"); val != "" {
		config.FillerText = val
	}
	if val := os.Getenv("SCALPEL_TEMPLATIZE_LAYOUTS"); val != "" {
		config.TemplatizeLayouts = parseBool(val)
	}
	if val := os.Getenv("SCALPEL_MAX_VERIFY_ATTEMPTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.MaxVerifyAttempts = n
		}
	}

	// Image generation
	if val := os.Getenv("SCALPEL_IMAGEGEN_ENDPOINT"); val != "" {
		config.ImageGen.Endpoint = val
	}
	if val := os.Getenv("SCALPEL_IMAGEGEN_API_KEY"); val != "" {
		config.ImageGen.APIKey = val
	}
	if val := os.Getenv("SCALPEL_IMAGEGEN_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.ImageGen.MaxRetries = n
		}
	}
	for env, dst := range map[string]*time.Duration{
		"SCALPEL_IMAGEGEN_BACKOFF":  &config.ImageGen.Backoff,
		"SCALPEL_IMAGEGEN_TIMEOUT":  &config.ImageGen.Timeout,
		"SCALPEL_IMAGEGEN_THROTTLE": &config.ImageGen.Throttle,
	} {
		if val := os.Getenv(env); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			}
		}
	}

	// Page store
	if val := os.Getenv("SCALPEL_PAGESTORE_DSN"); val != "" {
		config.PageStore.DSN = val
	}
	if val := os.Getenv("SCALPEL_PAGESTORE_TABLE"); val != "" {
		config.PageStore.Table = val
	}
}

// LoadConfigFile reads a YAML or TOML file on top of the defaults and then
// applies environment overrides.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}

	applyEnvironment(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewConfigWithDefaults creates a new configuration with defaults applied to unset fields
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()

	if overrides == nil {
		return defaults
	}

	config := *overrides

	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if config.Workers == 0 {
		config.Workers = defaults.Workers
	}
	if config.WatermarkPatterns == nil {
		config.WatermarkPatterns = defaults.WatermarkPatterns
	}
	if config.FillerText == "" {
		config.FillerText = defaults.FillerText
	}
	if config.MinFillerLength == 0 {
		config.MinFillerLength = defaults.MinFillerLength
	}
	if config.MaxVerifyAttempts == 0 {
		config.MaxVerifyAttempts = defaults.MaxVerifyAttempts
	}
	if config.ScanDPI == 0 {
		config.ScanDPI = defaults.ScanDPI
	}
	if config.ImageGen.Timeout == 0 {
		config.ImageGen.Timeout = defaults.ImageGen.Timeout
	}
	if config.PageStore.Table == "" {
		config.PageStore.Table = defaults.PageStore.Table
	}

	return &config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}

	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}

	if c.MinFillerLength < 0 {
		return errors.New("min filler length cannot be negative")
	}

	if c.MaxVerifyAttempts <= 0 {
		return errors.New("max verify attempts must be positive")
	}

	if c.ScanDPI <= 0 {
		return errors.New("scan dpi must be positive")
	}

	if c.ImageGen.MaxRetries < 0 {
		return errors.New("image generation retries cannot be negative")
	}

	if _, err := c.AllowlistPages(); err != nil {
		return err
	}

	return nil
}

// AllowlistPages returns the allow-list keyed by page number.
func (c *Config) AllowlistPages() (map[int][]string, error) {
	pages := make(map[int][]string, len(c.Allowlist))
	for key, texts := range c.Allowlist {
		page, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || page <= 0 {
			return nil, fmt.Errorf("invalid allowlist page %q", key)
		}
		pages[page] = texts
	}
	return pages, nil
}

// GetGlobalConfig returns the global configuration
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	// Return a copy to prevent modification
	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// Update logger based on new config (outside the lock to avoid deadlock)
	UpdateLoggerFromConfig()
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
