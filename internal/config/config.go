// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for iris.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/jeranaias/iris/internal/gateway"
	"github.com/jeranaias/iris/internal/ollama"
	"github.com/jeranaias/iris/internal/openai"
	"github.com/jeranaias/iris/internal/storage"
	"github.com/jeranaias/iris/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "IRIS_"

	// HomeEnv overrides the configuration directory.
	HomeEnv = "IRIS_HOME"

	// BackendOllama talks to an Ollama server.
	BackendOllama = "ollama"

	// BackendOpenAI talks to an OpenAI-compatible local server.
	BackendOpenAI = "openai"

	// DefaultRequestTimeoutSecs bounds non-streaming gateway requests.
	DefaultRequestTimeoutSecs = 120
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the main configuration structure.
type Config struct {
	Gateway GatewayConfig `toml:"gateway" json:"gateway" envPrefix:"GATEWAY_"`
	Storage StorageConfig `toml:"storage" json:"storage" envPrefix:"STORAGE_"`
	Log     LogConfig     `toml:"log" json:"log" envPrefix:"LOG_"`
	UI      UIConfig      `toml:"ui" json:"ui" envPrefix:"UI_"`
}

// GatewayConfig selects and configures the language model backend.
type GatewayConfig struct {
	// Backend is "ollama" or "openai".
	Backend string `toml:"backend" json:"backend" env:"BACKEND"`

	OllamaURL     string `toml:"ollama_url" json:"ollama_url" env:"OLLAMA_URL"`
	OpenAIBaseURL string `toml:"openai_base_url" json:"openai_base_url" env:"OPENAI_BASE_URL"`
	OpenAIAPIKey  string `toml:"openai_api_key" json:"openai_api_key" env:"OPENAI_API_KEY"`

	Model string `toml:"model" json:"model" env:"MODEL"`

	// Instructions are sent as the system prompt of every request.
	Instructions string `toml:"instructions" json:"instructions" env:"INSTRUCTIONS"`

	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs" env:"REQUEST_TIMEOUT_SECS"`
}

// StorageConfig selects where conversations are kept.
type StorageConfig struct {
	// Backend is "sqlite" or "json".
	Backend string `toml:"backend" json:"backend" env:"BACKEND"`

	// Path is the database file or conversation directory.
	// Empty means a default location under ConfigDir.
	Path string `toml:"path" json:"path" env:"PATH"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `toml:"level" json:"level" env:"LEVEL"`
	Format string `toml:"format" json:"format" env:"FORMAT"`

	// File receives TUI logs. Empty means iris.log under ConfigDir.
	File string `toml:"file" json:"file" env:"FILE"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" json:"theme" env:"THEME"`

	// Markdown renders assistant replies with glamour.
	Markdown bool `toml:"markdown" json:"markdown" env:"MARKDOWN"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	cfg := &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
		},
	}
	cfg.fillDefaults()
	return cfg
}

// fillDefaults replaces zero values with defaults. Files written by hand
// often contain only the settings the user cares about.
func (c *Config) fillDefaults() {
	if c.Gateway.Backend == "" {
		c.Gateway.Backend = BackendOllama
	}
	if c.Gateway.OllamaURL == "" {
		c.Gateway.OllamaURL = ollama.DefaultBaseURL
	}
	if c.Gateway.OpenAIBaseURL == "" {
		c.Gateway.OpenAIBaseURL = openai.DefaultBaseURL
	}
	// An OpenAI-compatible server with no model set accepts whatever it has loaded.
	if c.Gateway.Model == "" && c.Gateway.Backend == BackendOllama {
		c.Gateway.Model = ollama.DefaultModel
	}
	if c.Gateway.Instructions == "" {
		c.Gateway.Instructions = gateway.DefaultInstructions
	}
	if c.Gateway.RequestTimeoutSecs == 0 {
		c.Gateway.RequestTimeoutSecs = DefaultRequestTimeoutSecs
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = storage.BackendSQLite
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.UI.Theme == "" {
		c.UI.Theme = "auto"
	}
}

// base is the starting point for decoding files: defaults for settings that
// have no usable zero value.
func base() *Config {
	return &Config{UI: UIConfig{Markdown: true}}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the iris configuration directory (~/.iris).
// IRIS_HOME overrides it.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".iris"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// StoragePath returns the configured storage location, or the default for
// the selected backend.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == storage.BackendJSON {
		return filepath.Join(dir, "conversations"), nil
	}
	return filepath.Join(dir, "iris.db"), nil
}

// LogPath returns the file that receives TUI logs.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "iris.log"), nil
}

// StorageOptions converts the storage section into storage.Config.
func (c *Config) StorageOptions() (storage.Config, error) {
	path, err := c.StoragePath()
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Backend: c.Storage.Backend, Path: path}, nil
}

// RequestTimeout returns the gateway request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Gateway.RequestTimeoutSecs) * time.Second
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from disk, applies environment overrides and
// validates the result. It tries config.toml, then config.json, then defaults.
func Load() (*Config, error) {
	loadDotEnv()

	cfg, err := loadFile()
	if err != nil {
		return nil, err
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return decodeTOML(tomlPath)
	}

	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return decodeJSON(jsonPath)
	}

	return base(), nil
}

// loadDotEnv reads .env from the working directory and then the config
// directory. Variables already set in the environment win.
func loadDotEnv() {
	candidates := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(path string) (*Config, error) {
	cfg, err := decodeTOML(path)
	if err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(path string) (*Config, error) {
	cfg, err := decodeJSON(path)
	if err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func decodeTOML(path string) (*Config, error) {
	cfg := base()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := base()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from an explicit file, choosing the
// format by extension, and applies environment overrides.
func LoadFromPath(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cfg, err = decodeJSON(path)
	case ".toml":
		cfg, err = decodeTOML(path)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides sets fields from IRIS_* environment variables, for
// example IRIS_GATEWAY_MODEL or IRIS_STORAGE_BACKEND. Unset variables leave
// the field alone.
func ApplyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

const tomlHeader = `# iris configuration
# Environment variables (IRIS_GATEWAY_MODEL, IRIS_STORAGE_BACKEND, ...) override these values.

`

// Save writes the configuration to the default TOML path.
func (c *Config) Save() error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return c.SaveTOML(path)
}

// SaveTOML writes the configuration to path in TOML format. The file may
// hold an API key, so it is readable by the owner only.
func (c *Config) SaveTOML(path string) error {
	return c.save(path, func(w io.Writer) error {
		if _, err := io.WriteString(w, tomlHeader); err != nil {
			return err
		}
		return toml.NewEncoder(w).Encode(c)
	})
}

// SaveJSON writes the configuration to path in JSON format.
func (c *Config) SaveJSON(path string) error {
	return c.save(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	})
}

func (c *Config) save(path string, encode func(io.Writer) error) error {
	if err := util.WriteFileAtomic(path, util.PrivatePerms, encode); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid field.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "configuration validation failed:\n  - " + strings.Join(msgs, "\n  - ")
}

// Validate checks the configuration. It returns ValidateErrors when any field
// is invalid.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// ==========================================================================
	// Gateway
	// ==========================================================================

	switch strings.ToLower(c.Gateway.Backend) {
	case BackendOllama:
		errs = append(errs, validateURL("gateway.ollama_url", c.Gateway.OllamaURL)...)
	case BackendOpenAI:
		errs = append(errs, validateURL("gateway.openai_base_url", c.Gateway.OpenAIBaseURL)...)
	default:
		errs = append(errs, ValidationError{
			Field:   "gateway.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: ollama, openai", c.Gateway.Backend),
		})
	}

	if c.Gateway.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "gateway.request_timeout_secs",
			Message: "timeout cannot be negative",
		})
	}

	// ==========================================================================
	// Storage
	// ==========================================================================

	switch strings.ToLower(c.Storage.Backend) {
	case storage.BackendSQLite, storage.BackendJSON:
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: sqlite, json", c.Storage.Backend),
		})
	}

	// ==========================================================================
	// Logging and UI
	// ==========================================================================

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: trace, debug, info, warn, error, disabled", c.Log.Level),
		})
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: console, json", c.Log.Format),
		})
	}

	validThemes := map[string]bool{"auto": true, "dark": true, "light": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(field, raw string) []ValidationError {
	u, err := url.Parse(raw)
	if err != nil {
		return []ValidationError{{Field: field, Message: fmt.Sprintf("invalid URL: %v", err)}}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []ValidationError{{Field: field, Message: fmt.Sprintf("unsupported scheme '%s', must be http or https", u.Scheme)}}
	}
	if u.Host == "" {
		return []ValidationError{{Field: field, Message: "missing host"}}
	}
	return nil
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var ve ValidateErrors
	return errors.As(err, &ve)
}

// =============================================================================
// KEY ACCESS
// =============================================================================

// Get returns the value of a setting in dot notation, e.g. "gateway.model".
func (c *Config) Get(key string) (string, error) {
	field, err := c.lookup(key)
	if err != nil {
		return "", err
	}
	switch field.Kind() {
	case reflect.String:
		return field.String(), nil
	case reflect.Int:
		return strconv.FormatInt(field.Int(), 10), nil
	case reflect.Bool:
		return strconv.FormatBool(field.Bool()), nil
	}
	return "", fmt.Errorf("unsupported field type for %s", key)
}

// Set assigns a setting in dot notation from its string form. The caller
// should Validate afterwards.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", key, err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type for %s", key)
	}
	return nil
}

// Keys returns every setting in dot notation.
func Keys() []string {
	var keys []string
	root := reflect.TypeOf(Config{})
	for i := 0; i < root.NumField(); i++ {
		section := root.Field(i)
		prefix := tomlName(section)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+tomlName(section.Type.Field(j)))
		}
	}
	return keys
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return reflect.Value{}, fmt.Errorf("invalid key %q, expected section.name", key)
	}
	v := reflect.ValueOf(c).Elem()
	for _, part := range parts {
		next, ok := fieldByTOMLName(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown config key %q", key)
		}
		v = next
	}
	return v, nil
}

func fieldByTOMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tomlName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(f reflect.StructField) string {
	tag := f.Tag.Get("toml")
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return strings.ToLower(f.Name)
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// String returns a human-readable dump with the API key redacted.
func (c *Config) String() string {
	redacted := c.Clone()
	if redacted.Gateway.OpenAIAPIKey != "" {
		redacted.Gateway.OpenAIAPIKey = "[REDACTED]"
	}
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(redacted); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return sb.String()
}

// =============================================================================
// GLOBAL INSTANCE
// =============================================================================

var (
	globalConfig *Config
	globalOnce   sync.Once
	globalMu     sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// Load failures fall back to defaults.
func Global() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		globalMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalMu.Unlock()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalOnce.Do(func() {})
	globalMu.Lock()
	globalConfig = cfg
	globalMu.Unlock()
}

// ReloadGlobal re-reads the configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// ResetGlobalForTesting clears the process-wide configuration.
func ResetGlobalForTesting() {
	globalMu.Lock()
	globalConfig = nil
	globalOnce = sync.Once{}
	globalMu.Unlock()
}
