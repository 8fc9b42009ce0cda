// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the opspilot service configuration.
//
// Sources are applied in order: built-in defaults, then the YAML file, then
// OPSPILOT_* environment variables. The result is validated before use.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/tombee/opspilot/internal/log"
	"github.com/tombee/opspilot/internal/tracing"
	opserrors "github.com/tombee/opspilot/pkg/errors"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig             `yaml:"server"`
	Log        log.Config               `yaml:"log"`
	Runbooks   RunbooksConfig           `yaml:"runbooks"`
	Classifier ClassifierConfig         `yaml:"classifier"`
	Services   map[string]ServiceConfig `yaml:"services"`

	// DefaultService receives HTTP steps when neither the request nor the
	// use case names a service.
	DefaultService string `yaml:"default_service"`

	Errors  ErrorsConfig   `yaml:"errors"`
	Tracing tracing.Config `yaml:"tracing"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RunbooksConfig configures use case discovery.
type RunbooksConfig struct {
	// Enabled turns dynamic loading on. When false the registry stays empty.
	Enabled bool `yaml:"enabled"`

	// Dir is the directory searched for definitions.
	Dir string `yaml:"dir"`

	// Pattern is a doublestar glob relative to Dir.
	Pattern string `yaml:"pattern"`

	// Watch reloads definitions when files under Dir change.
	Watch bool `yaml:"watch"`

	// Debounce is the quiet period before a watched change triggers a reload.
	Debounce time.Duration `yaml:"debounce"`
}

// ClassifierConfig configures intent classification.
type ClassifierConfig struct {
	// HeuristicFallback consults the built-in heuristic when no definition matches.
	HeuristicFallback bool `yaml:"heuristic_fallback"`
}

// ServiceConfig describes one downstream target.
type ServiceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	// RateLimit is the sustained requests per second (0 = unlimited).
	RateLimit float64 `yaml:"rate_limit"`

	// Burst is the number of requests allowed above RateLimit.
	Burst int `yaml:"burst"`
}

// ErrorsConfig locates the error translation table.
type ErrorsConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

const (
	defaultServiceTimeout = 30 * time.Second
	serviceEnvPrefix      = "OPSPILOT_SERVICE_"
	serviceEnvSuffix      = "_URL"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: *log.DefaultConfig(),
		Runbooks: RunbooksConfig{
			Enabled:  true,
			Dir:      "runbooks",
			Pattern:  "**/*.{yaml,yml}",
			Debounce: 500 * time.Millisecond,
		},
		Classifier: ClassifierConfig{HeuristicFallback: true},
		Services:   map[string]ServiceConfig{},
		Tracing: tracing.Config{
			ServiceName: "opspilot",
			Exporter:    tracing.ExporterNone,
			SampleRate:  1,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// configPath, and the environment.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &opserrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s: %v", configPath, err),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &opserrors.ConfigError{
			Key:    "validation",
			Reason: err.Error(),
			Cause:  err,
		}
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Relative runbook and error table paths resolve against the config file.
	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		base = filepath.Dir(path)
	}
	if c.Runbooks.Dir != "" && !filepath.IsAbs(c.Runbooks.Dir) {
		c.Runbooks.Dir = filepath.Join(base, c.Runbooks.Dir)
	}
	if c.Errors.Path != "" && !filepath.IsAbs(c.Errors.Path) {
		c.Errors.Path = filepath.Join(base, c.Errors.Path)
	}

	return nil
}

// applyDefaults fills zero values left by a minimal file.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Log.Output == nil {
		c.Log.Output = os.Stderr
	}
	if c.Runbooks.Pattern == "" {
		c.Runbooks.Pattern = defaults.Runbooks.Pattern
	}
	if c.Runbooks.Debounce == 0 {
		c.Runbooks.Debounce = defaults.Runbooks.Debounce
	}
	if c.Services == nil {
		c.Services = map[string]ServiceConfig{}
	}
	for name, svc := range c.Services {
		if svc.Timeout == 0 {
			svc.Timeout = defaultServiceTimeout
		}
		if svc.RateLimit > 0 && svc.Burst == 0 {
			svc.Burst = 1
		}
		c.Services[name] = svc
	}
	if c.DefaultService == "" && len(c.Services) == 1 {
		for name := range c.Services {
			c.DefaultService = name
		}
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaults.Tracing.Exporter
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaults.Metrics.Path
	}
}

func (c *Config) loadFromEnv() {
	log.ApplyEnv(&c.Log)

	if val := os.Getenv("OPSPILOT_ADDR"); val != "" {
		c.Server.Addr = val
	}
	if val := os.Getenv("OPSPILOT_RUNBOOKS_ENABLED"); val != "" {
		c.Runbooks.Enabled = parseBool(val)
	}
	if val := os.Getenv("OPSPILOT_RUNBOOKS_DIR"); val != "" {
		c.Runbooks.Dir = val
	}
	if val := os.Getenv("OPSPILOT_RUNBOOKS_WATCH"); val != "" {
		c.Runbooks.Watch = parseBool(val)
	}
	if val := os.Getenv("OPSPILOT_HEURISTIC_FALLBACK"); val != "" {
		c.Classifier.HeuristicFallback = parseBool(val)
	}
	if val := os.Getenv("OPSPILOT_DEFAULT_SERVICE"); val != "" {
		c.DefaultService = val
	}
	if val := os.Getenv("OPSPILOT_ERRORS_PATH"); val != "" {
		c.Errors.Path = val
	}
	if val := os.Getenv("OPSPILOT_TRACING_EXPORTER"); val != "" {
		c.Tracing.Exporter = strings.ToLower(val)
		c.Tracing.Enabled = c.Tracing.Exporter != tracing.ExporterNone
	}
	if val := os.Getenv("OPSPILOT_OTLP_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}

	// OPSPILOT_SERVICE_<NAME>_URL adds or overrides a downstream service.
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || val == "" || !strings.HasPrefix(key, serviceEnvPrefix) || !strings.HasSuffix(key, serviceEnvSuffix) {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(key, serviceEnvPrefix), serviceEnvSuffix))
		if name == "" {
			continue
		}
		svc := c.Services[name]
		svc.BaseURL = val
		if svc.Timeout == 0 {
			svc.Timeout = defaultServiceTimeout
		}
		c.Services[name] = svc
	}
}

func parseBool(val string) bool {
	b, err := strconv.ParseBool(val)
	return err == nil && b
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout))
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	if c.Log.Format != log.FormatJSON && c.Log.Format != log.FormatText {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Runbooks.Enabled {
		if c.Runbooks.Dir == "" {
			errs = append(errs, "runbooks.dir is required when runbooks are enabled")
		}
		if !doublestar.ValidatePattern(c.Runbooks.Pattern) {
			errs = append(errs, fmt.Sprintf("runbooks.pattern %q is not a valid glob", c.Runbooks.Pattern))
		}
	}
	if c.Runbooks.Debounce < 0 {
		errs = append(errs, "runbooks.debounce must not be negative")
	}

	for _, name := range c.ServiceNames() {
		svc := c.Services[name]
		u, err := url.Parse(svc.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("services.%s.base_url must be an absolute http(s) URL, got %q", name, svc.BaseURL))
		}
		if svc.Timeout <= 0 {
			errs = append(errs, fmt.Sprintf("services.%s.timeout must be positive", name))
		}
		if svc.RateLimit < 0 || svc.Burst < 0 {
			errs = append(errs, fmt.Sprintf("services.%s rate_limit and burst must not be negative", name))
		}
	}
	if c.DefaultService != "" && len(c.Services) > 0 {
		if _, ok := c.Services[c.DefaultService]; !ok {
			errs = append(errs, fmt.Sprintf("default_service %q not found in configured services %v", c.DefaultService, c.ServiceNames()))
		}
	}

	switch c.Tracing.Exporter {
	case tracing.ExporterNone, tracing.ExporterConsole:
	case tracing.ExporterOTLPHTTP:
		if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
			errs = append(errs, "tracing.endpoint is required for the otlp-http exporter")
		}
	default:
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of [none, console, otlp-http], got %q", c.Tracing.Exporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// ServiceNames returns the configured service names in sorted order.
func (c *Config) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
