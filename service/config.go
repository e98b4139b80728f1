package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/viant/afs"
	"github.com/viant/medvec/vectordb/meta"
	"github.com/viant/scy/cred/secret"
	"gopkg.in/yaml.v3"
)

const (
	defaultModel     = "text-embedding-3-small"
	defaultTopK      = 5
	defaultThreshold = 0.7
	defaultLogLevel  = "info"
)

// Environment variables overriding configuration values.
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvGeminiKey = "GEMINI_API_KEY"
	EnvSourceDSN = "MEDVEC_SOURCE_DSN"
	EnvStoreDSN  = "MEDVEC_STORE_DSN"
	EnvLogLevel  = "MEDVEC_LOG_LEVEL"
)

// Config defines the process configuration.
type Config struct {
	Namespace   string            `yaml:"namespace"`
	Store       StoreConfig       `yaml:"store"`
	Source      SourceConfig      `yaml:"source"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Sync        SyncConfig        `yaml:"sync"`
	Search      SearchConfig      `yaml:"search"`
	Logging     LoggingConfig     `yaml:"logging"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// StoreConfig defines vector index settings.
type StoreConfig struct {
	// Kind is sqlite (default) or memory.
	Kind           string `yaml:"kind"`
	DSN            string `yaml:"dsn"`
	Secret         string `yaml:"secret,omitempty"`
	Table          string `yaml:"table"`
	SnapshotURL    string `yaml:"snapshotURL"`
	LockFile       string `yaml:"lockFile"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// SourceConfig defines the patient table settings.
type SourceConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Secret string `yaml:"secret,omitempty"`
	Table  string `yaml:"table"`
	Limit  int    `yaml:"limit"`
}

// EmbedderConfig defines the embedding provider settings.
type EmbedderConfig struct {
	// Provider is openai (default), ollama, vertexai, gemini or simple.
	Provider       string   `yaml:"provider"`
	Model          string   `yaml:"model"`
	APIKey         string   `yaml:"apiKey,omitempty"`
	BaseURL        string   `yaml:"baseURL"`
	Project        string   `yaml:"project"`
	Location       string   `yaml:"location"`
	Scopes         []string `yaml:"scopes"`
	Dimension      int      `yaml:"dimension"`
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
	RatePerSecond  float64  `yaml:"ratePerSecond"`
	Burst          int      `yaml:"burst"`
}

// SyncConfig defines sync cycle settings.
type SyncConfig struct {
	Policy          SyncPolicy `yaml:"policy"`
	BatchSize       int        `yaml:"batchSize"`
	Concurrency     int        `yaml:"concurrency"`
	IntervalSeconds int        `yaml:"intervalSeconds"`
	Watch           []string   `yaml:"watch"`
	DebounceMillis  int        `yaml:"debounceMillis"`
}

// SearchConfig defines query defaults.
type SearchConfig struct {
	TopK      int            `yaml:"topK"`
	Threshold *float64       `yaml:"threshold"`
	Lexical   *LexicalScorer `yaml:"lexical"`
}

// LoggingConfig defines logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Format is json (default) or console.
	Format string `yaml:"format"`
}

// DiagnosticsConfig defines process diagnostics.
type DiagnosticsConfig struct {
	Gops bool `yaml:"gops"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = meta.DefaultNamespace
	}
	if c.Store.Kind == "" {
		c.Store.Kind = "sqlite"
	}
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = "openai"
	}
	if c.Embedder.Model == "" && c.Embedder.Provider == "openai" {
		c.Embedder.Model = defaultModel
	}
	if c.Sync.Policy == "" {
		c.Sync.Policy = SyncWait
	}
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = defaultBatchSize
	}
	if c.Sync.Concurrency <= 0 {
		c.Sync.Concurrency = 1
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = defaultTopK
	}
	if c.Search.Threshold == nil {
		threshold := defaultThreshold
		c.Search.Threshold = &threshold
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks values that defaults can not repair.
func (c *Config) Validate() error {
	switch c.Sync.Policy {
	case SyncWait, SyncReject:
	default:
		return fmt.Errorf("config: unsupported sync policy %q", c.Sync.Policy)
	}
	switch c.Store.Kind {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: unsupported store kind %q", c.Store.Kind)
	}
	if t := *c.Search.Threshold; t < 0 || t > 1 {
		return fmt.Errorf("config: search threshold %v outside [0,1]", t)
	}
	return nil
}

// StoreTimeout returns the per call index timeout.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Store.TimeoutSeconds) * time.Second
}

// EmbedderTimeout returns the per call provider timeout.
func (c *Config) EmbedderTimeout() time.Duration {
	return time.Duration(c.Embedder.TimeoutSeconds) * time.Second
}

// LoadConfig loads a YAML configuration from a local path or any afs supported URL,
// then applies defaults, secrets and environment overrides.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	URL, err := expandUserPath(URL)
	if err != nil {
		return nil, err
	}
	b, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", URL, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", URL, err)
	}
	if err := cfg.resolve(ctx, os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve(ctx context.Context, lookup func(string) (string, bool)) error {
	c.applyEnv(lookup)
	c.applyDefaults()
	var err error
	if c.Store.DSN, err = expandStoreDSN(c.Store.DSN, "sqlite"); err != nil {
		return err
	}
	if c.Store.DSN, err = ExpandDSNWithSecret(ctx, c.Store.DSN, c.Store.Secret); err != nil {
		return err
	}
	if c.Source.DSN, err = expandStoreDSN(c.Source.DSN, c.Source.Driver); err != nil {
		return err
	}
	if c.Source.DSN, err = ExpandDSNWithSecret(ctx, c.Source.DSN, c.Source.Secret); err != nil {
		return err
	}
	if c.Store.LockFile, err = expandUserPath(c.Store.LockFile); err != nil {
		return err
	}
	if c.Store.SnapshotURL, err = expandUserPath(c.Store.SnapshotURL); err != nil {
		return err
	}
	for i, path := range c.Sync.Watch {
		if c.Sync.Watch[i], err = expandUserPath(path); err != nil {
			return err
		}
	}
	return c.Validate()
}

// applyEnv overrides credentials, DSNs and the log level from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSourceDSN); ok && v != "" {
		c.Source.DSN = v
	}
	if v, ok := lookup(EnvStoreDSN); ok && v != "" {
		c.Store.DSN = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if c.Embedder.APIKey != "" {
		return
	}
	key := EnvOpenAIKey
	if c.Embedder.Provider == "gemini" {
		key = EnvGeminiKey
	}
	if v, ok := lookup(key); ok {
		c.Embedder.APIKey = v
	}
}

// Resolve applies environment overrides and defaults to a configuration built in code.
func (c *Config) Resolve(ctx context.Context) error {
	return c.resolve(ctx, os.LookupEnv)
}

// LoadEnv loads KEY=VALUE pairs from an env file into the process environment.
// Existing variables win. A missing default .env file is not an error.
func LoadEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	path, err := expandUserPath(path)
	if err != nil {
		return err
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env: load %s: %w", path, err)
	}
	return nil
}

func expandUserPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	// Direct ~/path use
	if strings.HasPrefix(trimmed, "~/") || trimmed == "~" {
		return filepath.Join(home, strings.TrimPrefix(trimmed, "~")), nil
	}
	// file: URI forms
	if strings.HasPrefix(trimmed, "file:") {
		prefix := "file://localhost"
		rest := strings.TrimPrefix(trimmed, prefix)
		if rest == trimmed {
			prefix = "file://"
			rest = strings.TrimPrefix(trimmed, prefix)
		}
		if rest == trimmed {
			prefix = "file:"
			rest = strings.TrimPrefix(trimmed, prefix)
		}
		if rest == "" {
			return path, nil
		}
		rest = strings.TrimLeft(rest, "/")
		if strings.HasPrefix(rest, "~") {
			rel := strings.TrimPrefix(rest, "~")
			abs := filepath.Join(home, rel)
			absSlash := filepath.ToSlash(abs)
			if prefix == "file:" {
				if !strings.HasPrefix(absSlash, "/") {
					absSlash = "/" + absSlash
				}
				return prefix + absSlash, nil
			}
			return prefix + "/" + strings.TrimLeft(absSlash, "/"), nil
		}
	}
	if trimmed[0] != '~' {
		return path, nil
	}
	if trimmed != "~" && !strings.HasPrefix(trimmed, "~/") {
		return "", fmt.Errorf("config: unsupported ~user path: %s", path)
	}
	if trimmed == "~" {
		return home, nil
	}
	return filepath.Join(home, trimmed[2:]), nil
}

func expandStoreDSN(dsn, driver string) (string, error) {
	if dsn == "" {
		return dsn, nil
	}
	// Expand user path only for sqlite-like DSNs or plain paths.
	if driver == "sqlite" || dsn[0] == '~' || dsn[0] == '/' || strings.HasPrefix(dsn, "file:") {
		return expandUserPath(dsn)
	}
	return dsn, nil
}

// ExpandDSNWithSecret loads a secret and expands placeholders in the DSN.
func ExpandDSNWithSecret(ctx context.Context, dsn, secretRef string) (string, error) {
	secretRef = strings.TrimSpace(secretRef)
	if secretRef == "" {
		return dsn, nil
	}
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("secret %q provided but dsn is empty", secretRef)
	}
	svc := secret.New()
	sec, err := svc.Lookup(ctx, secret.Resource(secretRef))
	if err != nil {
		return "", err
	}
	return sec.Expand(dsn), nil
}
