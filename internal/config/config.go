// Package config loads and validates composer's configuration.
//
// DESIGN: all configuration MUST come from YAML files. No defaults are
// applied outside what the YAML or its ${VAR:-default} env expansion
// supplies. This ensures explicit, auditable configuration, the same rule
// the teacher's config loader enforces.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is composer's root configuration.
type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Render    RenderConfig    `yaml:"render"`
	Providers ProvidersConfig `yaml:"providers"`
	Loader    LoaderConfig    `yaml:"loader"`
}

// Duration wraps time.Duration with YAML string parsing ("30s", "720h"),
// grounded on the extended-duration Duration type seen across the example
// pack (e.g. a pkg/types package's Duration wrapper) — plain time.Duration
// has no YAML (un)marshaler of its own, so scalar duration strings need
// this wrapper rather than failing to parse against a bare int64 field.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for the yaml.v3 node API.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// CacheConfig controls the SQLite-backed Cache Store (C2).
type CacheConfig struct {
	DBPath   string   `yaml:"db_path"`   // path to .composition.db
	LLMTTL   Duration `yaml:"llm_ttl"`   // default llm_cache entry lifetime
	ImageTTL Duration `yaml:"image_ttl"` // default image_cache entry lifetime (0 = never expires)
}

// RenderConfig controls the Render Orchestrator (C8) and its adapters.
type RenderConfig struct {
	MaxConcurrency int            `yaml:"max_concurrency"` // cap on goroutines per layer, 0 means unbounded
	ImageQuality   int            `yaml:"image_quality"`   // jpeg/webp encode quality, 1-100
	Breakpoints    map[string]int `yaml:"breakpoints"`     // default ::columns breakpoints when a document doesn't override
}

// ProviderConfig is one named AI provider's connection settings.
type ProviderConfig struct {
	Kind      string `yaml:"kind"`       // "bedrock", "ollama", etc.
	ModelID   string `yaml:"model_id"`   // default model for this provider
	Region    string `yaml:"region"`     // AWS region, bedrock only
	Endpoint  string `yaml:"endpoint"`   // base URL, ollama only
	MaxTokens int    `yaml:"max_tokens"` // per-request truncation budget
}

// ProvidersConfig names the registered AI providers and which one is the
// default, reused almost verbatim from the teacher's multi-provider
// configuration shape — it already modeled "several named backends, one
// default" for its own chat-completion providers.
type ProvidersConfig struct {
	Default   string                    `yaml:"default"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// LoaderConfig controls the Loader (C3).
type LoaderConfig struct {
	GitignoreGate    bool     `yaml:"gitignore_gate"`
	RemoteTimeout    Duration `yaml:"remote_timeout"`
	MaxInlineAudioKB int      `yaml:"max_inline_audio_kb"`
}

// expandEnvWithDefaults expands ${VAR} and ${VAR:-default} references
// against the process environment, grounded on the teacher's config.go
// helper of the same name.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes, expanding
// ${VAR:-default} references first.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandEnvWithDefaults is exported for use by cmd/composer's .env overlay.
func ExpandEnvWithDefaults(s string) string { return expandEnvWithDefaults(s) }

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if c.Cache.DBPath == "" {
		return fmt.Errorf("cache.db_path is required")
	}
	if c.Cache.LLMTTL == 0 {
		return fmt.Errorf("cache.llm_ttl is required")
	}

	if c.Render.MaxConcurrency < 0 {
		return fmt.Errorf("render.max_concurrency must be >= 0")
	}
	if c.Render.ImageQuality < 1 || c.Render.ImageQuality > 100 {
		return fmt.Errorf("render.image_quality must be 1-100, got %d", c.Render.ImageQuality)
	}

	if err := c.Providers.Validate(); err != nil {
		return err
	}

	if c.Loader.RemoteTimeout == 0 {
		return fmt.Errorf("loader.remote_timeout is required")
	}

	return nil
}

// Validate checks that the default provider is registered.
func (p *ProvidersConfig) Validate() error {
	if p.Default == "" {
		return fmt.Errorf("providers.default is required")
	}
	if _, ok := p.Providers[p.Default]; !ok {
		return fmt.Errorf("providers.default %q is not a registered provider", p.Default)
	}
	for name, pc := range p.Providers {
		if pc.Kind == "" {
			return fmt.Errorf("providers.providers.%s.kind is required", name)
		}
	}
	return nil
}
