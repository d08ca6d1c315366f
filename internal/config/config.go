// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"clearclause/internal/recognizer"
	"clearclause/internal/redaction"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the configuration file.
const (
	EnvRecognizerBackend  = "CLEARCLAUSE_RECOGNIZER_BACKEND"
	EnvRecognizerEndpoint = "CLEARCLAUSE_RECOGNIZER_ENDPOINT"
	EnvModelPath          = "CLEARCLAUSE_MODEL_PATH"
	EnvModelURL           = "CLEARCLAUSE_MODEL_URL"
	EnvWebPort            = "CLEARCLAUSE_PORT"
)

// validFormats lists the report formats the CLI can produce.
var validFormats = map[string]bool{"text": true, "json": true, "yaml": true}

// Config represents the application configuration
type Config struct {
	// Default settings
	Defaults struct {
		Format  string `yaml:"format"`
		NoColor bool   `yaml:"no_color"`
		Debug   bool   `yaml:"debug"`
	} `yaml:"defaults"`

	Redaction RedactionConfig `yaml:"redaction"`

	Recognizer RecognizerConfig `yaml:"recognizer"`

	Web WebConfig `yaml:"web"`

	// Profiles for different redaction scenarios
	Profiles map[string]Profile `yaml:"profiles"`
}

// RedactionConfig controls the redaction engine. The marker text is fixed.
type RedactionConfig struct {
	OverlapMode    string `yaml:"overlap_mode"`
	PhoneDetection bool   `yaml:"phone_detection"`
}

// RecognizerConfig selects the entity recognizer backend.
type RecognizerConfig struct {
	Backend    string        `yaml:"backend"`
	ModelPath  string        `yaml:"model_path"`
	ModelURL   string        `yaml:"model_url"`
	Endpoint   string        `yaml:"endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// WebConfig holds settings for the HTTP API.
type WebConfig struct {
	Port         int   `yaml:"port"`
	MaxTextBytes int64 `yaml:"max_text_bytes"`
}

// Profile is a named set of overrides applied on top of the defaults.
type Profile struct {
	Description    string `yaml:"description"`
	Format         string `yaml:"format"`
	NoColor        bool   `yaml:"no_color"`
	OverlapMode    string `yaml:"overlap_mode"`
	PhoneDetection *bool  `yaml:"phone_detection"`
	ShowEntities   bool   `yaml:"show_entities"`
}

// Default returns the built-in configuration.
func Default() *Config {
	config := &Config{
		Profiles: make(map[string]Profile),
	}

	config.Defaults.Format = "text"
	config.Defaults.NoColor = false
	config.Defaults.Debug = false

	config.Redaction.OverlapMode = string(redaction.OverlapSequential)
	config.Redaction.PhoneDetection = true

	config.Recognizer.Backend = recognizer.BackendBuiltin
	config.Recognizer.Timeout = 30 * time.Second
	config.Recognizer.MaxRetries = 2

	config.Web.Port = 8080
	config.Web.MaxTextBytes = 1 << 20

	config.Profiles["strict"] = Profile{
		Description: "Coalesce overlapping detections so no fragment of a detected span survives",
		OverlapMode: string(redaction.OverlapMerge),
	}

	return config
}

// LoadConfig loads configuration from the specified file path
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// If no config file specified, return default config
	if configPath == "" {
		return config, nil
	}

	expanded, err := homedir.Expand(configPath)
	if err != nil {
		return nil, fmt.Errorf("error expanding config path: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(expanded))
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	defaultPhoneDetection := config.Redaction.PhoneDetection
	defaultProfiles := config.Profiles

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// yaml leaves absent bools false; restore defaults that were not set
	if !containsField(data, "redaction", "phone_detection") {
		config.Redaction.PhoneDetection = defaultPhoneDetection
	}
	if config.Profiles == nil {
		config.Profiles = defaultProfiles
	}
	for name, profile := range defaultProfiles {
		if _, ok := config.Profiles[name]; !ok {
			config.Profiles[name] = profile
		}
	}

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads configFile, or the first file FindConfigFile
// discovers when configFile is empty. An explicitly named file must load and
// validate. A discovered file that fails is logged and the default
// configuration is used instead.
func LoadConfigOrDefault(configFile string, logger hclog.Logger) (*Config, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	if configFile != "" {
		cfg, err := LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", configFile, err)
		}
		logger.Debug("loaded configuration", "path", configFile)
		return cfg, nil
	}

	configPath := FindConfigFile()
	cfg, err := LoadConfig(configPath)
	if err != nil {
		logger.Warn("using default configuration", "path", configPath, "error", err)
		return Default(), nil
	}
	if configPath != "" {
		logger.Debug("loaded configuration", "path", configPath)
	}
	return cfg, nil
}

// FindConfigFile looks for a configuration file in the current directory,
// then the home directory, then the XDG config directory.
func FindConfigFile() string {
	for _, name := range []string{"clearclause.yaml", "clearclause.yml", ".clearclause.yaml", ".clearclause.yml"} {
		if fileExists(name) {
			return name
		}
	}

	home, err := homedir.Dir()
	if err != nil {
		return ""
	}

	for _, name := range []string{".clearclause.yaml", ".clearclause.yml"} {
		homeConfig := filepath.Join(home, name)
		if fileExists(homeConfig) {
			return homeConfig
		}
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	for _, name := range []string{"config.yaml", "config.yml"} {
		xdgConfigFile := filepath.Join(xdgConfig, "clearclause", name)
		if fileExists(xdgConfigFile) {
			return xdgConfigFile
		}
	}

	return ""
}

// LoadDotEnv loads variables from .env files without overriding variables
// already set in the environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if !fileExists(f) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvRecognizerBackend); v != "" {
		c.Recognizer.Backend = v
	}
	if v := os.Getenv(EnvRecognizerEndpoint); v != "" {
		c.Recognizer.Endpoint = v
		if os.Getenv(EnvRecognizerBackend) == "" {
			c.Recognizer.Backend = recognizer.BackendHTTP
		}
	}
	if v := os.Getenv(EnvModelPath); v != "" {
		c.Recognizer.ModelPath = v
	}
	if v := os.Getenv(EnvModelURL); v != "" {
		c.Recognizer.ModelURL = v
	}
	if v := os.Getenv(EnvWebPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWebPort, err)
		}
		c.Web.Port = port
	}
	return ValidateConfig(c)
}

// ApplyProfile merges the named profile into the configuration.
func (c *Config) ApplyProfile(name string) error {
	profile := c.GetProfile(name)
	if profile == nil {
		return fmt.Errorf("profile %q not found (available: %v)", name, c.ListProfiles())
	}

	if profile.Format != "" {
		c.Defaults.Format = profile.Format
	}
	if profile.NoColor {
		c.Defaults.NoColor = true
	}
	if profile.OverlapMode != "" {
		c.Redaction.OverlapMode = profile.OverlapMode
	}
	if profile.PhoneDetection != nil {
		c.Redaction.PhoneDetection = *profile.PhoneDetection
	}
	return ValidateConfig(c)
}

// ListProfiles returns the available profile names, sorted.
func (c *Config) ListProfiles() []string {
	profiles := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		profiles = append(profiles, name)
	}
	sort.Strings(profiles)
	return profiles
}

// GetProfile returns a profile by name, or nil if not found
func (c *Config) GetProfile(name string) *Profile {
	if profile, exists := c.Profiles[name]; exists {
		return &profile
	}
	return nil
}

// RecognizerOptions converts the recognizer section for recognizer.New.
func (c *Config) RecognizerOptions() recognizer.Options {
	return recognizer.Options{
		Backend:    c.Recognizer.Backend,
		ModelPath:  c.Recognizer.ModelPath,
		ModelURL:   c.Recognizer.ModelURL,
		Endpoint:   c.Recognizer.Endpoint,
		Timeout:    c.Recognizer.Timeout,
		MaxRetries: c.Recognizer.MaxRetries,
	}
}

// EngineOptions converts the redaction section for redaction.NewEngine.
func (c *Config) EngineOptions() redaction.Options {
	return redaction.Options{
		OverlapMode:           redaction.OverlapMode(c.Redaction.OverlapMode),
		DisablePhoneDetection: !c.Redaction.PhoneDetection,
	}
}

// ValidateConfig checks values that would otherwise fail at first use.
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.New("configuration cannot be nil")
	}

	var errs []error

	if !validFormats[config.Defaults.Format] {
		errs = append(errs, fmt.Errorf("unknown format %q", config.Defaults.Format))
	}
	if _, err := redaction.ParseOverlapMode(config.Redaction.OverlapMode); err != nil {
		errs = append(errs, err)
	}

	switch config.Recognizer.Backend {
	case "", recognizer.BackendBuiltin:
	case recognizer.BackendHTTP:
		if config.Recognizer.Endpoint == "" {
			errs = append(errs, errors.New("recognizer backend http requires an endpoint"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown recognizer backend %q", config.Recognizer.Backend))
	}
	if config.Recognizer.Timeout < 0 {
		errs = append(errs, errors.New("recognizer timeout cannot be negative"))
	}
	if config.Recognizer.MaxRetries < 0 {
		errs = append(errs, errors.New("recognizer max_retries cannot be negative"))
	}

	if config.Web.Port < 1 || config.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web port %d out of range", config.Web.Port))
	}
	if config.Web.MaxTextBytes <= 0 {
		errs = append(errs, errors.New("web max_text_bytes must be positive"))
	}

	for name, profile := range config.Profiles {
		if profile.Format != "" && !validFormats[profile.Format] {
			errs = append(errs, fmt.Errorf("profile %q: unknown format %q", name, profile.Format))
		}
		if profile.OverlapMode != "" {
			if _, err := redaction.ParseOverlapMode(profile.OverlapMode); err != nil {
				errs = append(errs, fmt.Errorf("profile %q: %w", name, err))
			}
		}
	}

	return errors.Join(errs...)
}

// containsField checks if a nested field exists in the YAML data
func containsField(data []byte, path ...string) bool {
	var yamlData map[string]interface{}
	err := yaml.Unmarshal(data, &yamlData)
	if err != nil {
		return false
	}

	current := yamlData
	for i, key := range path {
		if i == len(path)-1 {
			_, exists := current[key]
			return exists
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return false
		}
	}
	return false
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
