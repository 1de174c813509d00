// Package config loads and manages roadscan configuration.
// Configuration source priority (highest to lowest):
// 1. Environment variables (ROADSCAN_PROVIDER, LLM_API_KEY, LLM_BASE_URL, LLM_MODEL, ANTHROPIC_API_KEY, etc.)
// 2. Config file path specified via --config flag
// 3. ~/.config/roadscan/config.yaml
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qrs-ai/roadscan/internal/generate"
	"github.com/qrs-ai/roadscan/internal/punkd"
)

//go:embed providers_default.yaml
var defaultProvidersYAML []byte

// ProviderDefaults holds the default base URL and model for a provider.
type ProviderDefaults struct {
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// LoadProviderDefaults parses the embedded defaults and merges any user
// overrides from ~/.config/roadscan/providers.yaml.
func LoadProviderDefaults() map[string]ProviderDefaults {
	defs := make(map[string]ProviderDefaults)
	_ = yaml.Unmarshal(defaultProvidersYAML, &defs)

	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".config", "roadscan", "providers.yaml")
		if data, err := os.ReadFile(userPath); err == nil {
			userDefs := make(map[string]ProviderDefaults)
			if yaml.Unmarshal(data, &userDefs) == nil {
				for name, ud := range userDefs {
					d := defs[name]
					if ud.BaseURL != "" {
						d.BaseURL = ud.BaseURL
					}
					if ud.DefaultModel != "" {
						d.DefaultModel = ud.DefaultModel
					}
					defs[name] = d
				}
			}
		}
	}
	return defs
}

// ProviderConfig holds configuration for a single backend.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// Responses is the canned reply list for the scripted backend.
	Responses []string `yaml:"responses,omitempty"`
}

// GenerationConfig maps onto generate.Options.
type GenerationConfig struct {
	MaxTotalTokens  int     `yaml:"max_total_tokens"`
	ChunkTokens     int     `yaml:"chunk_tokens"`
	BaseTemperature float64 `yaml:"base_temperature"`
	PunkdProfile    string  `yaml:"punkd_profile"`
	TopN            int     `yaml:"top_n"`
	OverlapWindow   int     `yaml:"overlap_window"`
	TailWindow      int     `yaml:"tail_window"`
}

// HistoryConfig controls the SQLite interaction log.
type HistoryConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"` // empty = ~/.local/share/roadscan/history.db
	// Encrypt seals prompt and response text with the key at KeyPath.
	Encrypt bool   `yaml:"encrypt"`
	KeyPath string `yaml:"key_path"` // empty = ~/.config/roadscan/.enc_key
}

// EventsConfig controls the per-scan JSONL event log.
type EventsConfig struct {
	Disabled bool   `yaml:"disabled"`
	Dir      string `yaml:"dir"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Mode  string `yaml:"mode"`  // "dev" | "prod"
	Level string `yaml:"level"` // debug, info, warn, error
}

// ServeConfig controls the HTTP host.
type ServeConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	// ScanTimeout bounds a single scan request.
	ScanTimeout time.Duration `yaml:"scan_timeout"`
}

// WatchConfig controls periodic scanning.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// GPSConfig is the fix used when none is given on the command line.
type GPSConfig struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// ReadyConfig controls the readiness probe run before scans.
type ReadyConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// Config is the complete configuration structure for roadscan.
type Config struct {
	// Provider is the active backend name (e.g. "llamacpp", "ollama", "anthropic").
	Provider string `yaml:"provider"`

	// Model overrides the backend's default model.
	Model string `yaml:"model"`

	// Providers holds per-backend configuration.
	Providers map[string]*ProviderConfig `yaml:"providers"`

	Generation GenerationConfig `yaml:"generation"`
	History    HistoryConfig    `yaml:"history"`
	Events     EventsConfig     `yaml:"events"`
	Log        LogConfig        `yaml:"log"`
	Serve      ServeConfig      `yaml:"serve"`
	Watch      WatchConfig      `yaml:"watch"`
	GPS        GPSConfig        `yaml:"gps"`
	Ready      ReadyConfig      `yaml:"ready"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	opts := generate.DefaultOptions()
	return &Config{
		Provider:  "llamacpp",
		Providers: make(map[string]*ProviderConfig),
		Generation: GenerationConfig{
			MaxTotalTokens:  opts.MaxTotalTokens,
			ChunkTokens:     opts.ChunkTokens,
			BaseTemperature: opts.BaseTemperature,
			PunkdProfile:    string(opts.Profile),
			TopN:            opts.TopN,
			OverlapWindow:   opts.OverlapWindow,
			TailWindow:      opts.TailWindow,
		},
		Log: LogConfig{Mode: "dev", Level: "info"},
		Serve: ServeConfig{
			Addr:        "127.0.0.1:8377",
			ScanTimeout: 2 * time.Minute,
		},
		Watch: WatchConfig{Interval: 30 * time.Second},
		GPS:   GPSConfig{Lat: 40.7128, Lon: -74.0060},
		Ready: ReadyConfig{Attempts: 6, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second},
	}
}

// DefaultPath returns ~/.config/roadscan/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "roadscan", "config.yaml")
}

// Load reads the config file and merges environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		configPath = DefaultPath()
	}

	// Read config file (use defaults if not found)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Options converts the generation section into controller options.
func (c *Config) Options() generate.Options {
	g := c.Generation
	return generate.Options{
		MaxTotalTokens:  g.MaxTotalTokens,
		ChunkTokens:     g.ChunkTokens,
		BaseTemperature: g.BaseTemperature,
		Profile:         punkd.ParseProfile(g.PunkdProfile),
		TopN:            g.TopN,
		OverlapWindow:   g.OverlapWindow,
		TailWindow:      g.TailWindow,
	}
}

// Validate rejects settings that would make scans fail or loop forever.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider) == "" {
		return fmt.Errorf("config: provider is required")
	}
	if err := c.Options().Validate(); err != nil {
		return fmt.Errorf("config: generation: %w", err)
	}
	if c.Generation.BaseTemperature <= 0 || c.Generation.BaseTemperature > 2 {
		return fmt.Errorf("config: generation.base_temperature must be in (0, 2], got %v", c.Generation.BaseTemperature)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("config: watch.interval must be positive, got %s", c.Watch.Interval)
	}
	if c.GPS.Lat < -90 || c.GPS.Lat > 90 || c.GPS.Lon < -180 || c.GPS.Lon > 180 {
		return fmt.Errorf("config: gps %.6f,%.6f out of range", c.GPS.Lat, c.GPS.Lon)
	}
	switch strings.ToLower(c.Log.Mode) {
	case "", "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("config: log.mode must be dev or prod, got %q", c.Log.Mode)
	}
	return nil
}

// GetProviderConfig returns the config for the named provider, or an empty config if not found.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok {
		return pc
	}
	return &ProviderConfig{}
}

// Resolved returns the active provider's settings with embedded defaults
// filled in for an empty base URL or model.
func (c *Config) Resolved() ProviderConfig {
	pc := *c.GetProviderConfig(c.Provider)
	if c.Model != "" {
		pc.Model = c.Model
	}
	if pc.BaseURL == "" {
		pc.BaseURL = KnownProviderBaseURLs[c.Provider]
	}
	if pc.Model == "" {
		pc.Model = KnownProviderModels[c.Provider]
	}
	return pc
}

// HistoryPath returns the configured database path or the default.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".local", "share", "roadscan", "history.db")
}

// KeyPath returns the configured vault key path or the default.
func (c *Config) KeyPath() string {
	if c.History.KeyPath != "" {
		return c.History.KeyPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".enc_key"
	}
	return filepath.Join(home, ".config", "roadscan", ".enc_key")
}

var (
	// KnownProviderBaseURLs maps well-known provider names to their base URLs.
	// Populated from providers_default.yaml (embedded) + user overrides.
	KnownProviderBaseURLs map[string]string

	// KnownProviderModels maps well-known provider names to their default models.
	// Populated from providers_default.yaml (embedded) + user overrides.
	KnownProviderModels map[string]string
)

func init() {
	defs := LoadProviderDefaults()
	KnownProviderBaseURLs = make(map[string]string, len(defs))
	KnownProviderModels = make(map[string]string, len(defs))
	for name, d := range defs {
		if d.BaseURL != "" {
			KnownProviderBaseURLs[name] = d.BaseURL
		}
		if d.DefaultModel != "" {
			KnownProviderModels[name] = d.DefaultModel
		}
	}
}

// SaveProviderToFile persists a single provider's config and the active
// provider name into cfgPath, preserving all other user settings.
func SaveProviderToFile(cfgPath, providerName string, pc ProviderConfig) error {
	if cfgPath == "" {
		cfgPath = DefaultPath()
	}
	if cfgPath == "" {
		return fmt.Errorf("cannot determine config path")
	}

	// Read existing file into a generic map to preserve unknown fields.
	raw := make(map[string]any)
	if data, err := os.ReadFile(cfgPath); err == nil {
		_ = yaml.Unmarshal(data, &raw) // ignore errors; start fresh if corrupt
	}

	providers, _ := raw["providers"].(map[string]any)
	if providers == nil {
		providers = make(map[string]any)
	}

	entry := map[string]any{}
	if pc.APIKey != "" {
		entry["api_key"] = pc.APIKey
	}
	if pc.BaseURL != "" {
		entry["base_url"] = pc.BaseURL
	}
	if pc.Model != "" {
		entry["model"] = pc.Model
	}
	providers[providerName] = entry
	raw["providers"] = providers

	// Set active provider and clear stale global model override.
	raw["provider"] = providerName
	delete(raw, "model")

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Provider selection first so generic overrides land on the chosen backend.
	if v := os.Getenv("ROADSCAN_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("ROADSCAN_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("ROADSCAN_PROFILE"); v != "" {
		cfg.Generation.PunkdProfile = v
	}

	// Generic overrides
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		providerConfig(cfg, cfg.Provider).APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		providerConfig(cfg, cfg.Provider).BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" && os.Getenv("ROADSCAN_MODEL") == "" {
		cfg.Model = v
	}

	// Provider-specific keys
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		if pc := providerConfig(cfg, "anthropic"); pc.APIKey == "" {
			pc.APIKey = v
		}
	}
	if v := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		if pc := providerConfig(cfg, "gemini"); pc.APIKey == "" {
			pc.APIKey = v
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if pc := providerConfig(cfg, "openai"); pc.APIKey == "" {
			pc.APIKey = v
		}
	}
}

func providerConfig(cfg *Config, name string) *ProviderConfig {
	if cfg.Providers[name] == nil {
		cfg.Providers[name] = &ProviderConfig{}
	}
	return cfg.Providers[name]
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
