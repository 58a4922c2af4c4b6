package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// AgentConfig defines configuration for a single LLM-backed agent.
type AgentConfig struct {
	Name  string `yaml:"name"`
	Model string `yaml:"model"`
}

// AgentsConfig defines all agents in the system.
type AgentsConfig struct {
	Default AgentConfig `yaml:"default"` // Default model for all agents
	Advisor AgentConfig `yaml:"advisor"` // Answers admission questions
}

// GetModel returns the agent's model, falling back to default if not set.
func (a *AgentConfig) GetModel(defaultModel string) string {
	if a.Model != "" {
		return a.Model
	}
	return defaultModel
}

type OpenRouterConfig struct {
	APIKey   string `yaml:"api_key" env:"IPSI_OPENROUTER_API_KEY"`
	ProxyURL string `yaml:"proxy_url" env:"IPSI_OPENROUTER_PROXY_URL"`
	BaseURL  string `yaml:"base_url" env:"IPSI_OPENROUTER_BASE_URL"`
}

// EmbeddingConfig defines embedding model settings.
type EmbeddingConfig struct {
	Model string `yaml:"model" env:"IPSI_EMBEDDING_MODEL"`
}

// CorpusConfig describes where the indexed admission records live and
// which metadata keys carry the categorical fields.
type CorpusConfig struct {
	InstitutionField string `yaml:"institution_field"`
	TrackField       string `yaml:"track_field"`
	ReloadInterval   string `yaml:"reload_interval"`
}

// DefaultReloadInterval is how often the search index looks for new records.
const DefaultReloadInterval = 5 * time.Minute

// GetReloadInterval returns the parsed reload interval.
// Falls back to DefaultReloadInterval if not configured or invalid.
func (c *CorpusConfig) GetReloadInterval() time.Duration {
	if c.ReloadInterval == "" {
		return DefaultReloadInterval
	}
	d, err := time.ParseDuration(c.ReloadInterval)
	if err != nil {
		return DefaultReloadInterval
	}
	return d
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"IPSI_REDIS_ENABLED"`
	Addr     string `yaml:"addr" env:"IPSI_REDIS_ADDR"`
	Password string `yaml:"password" env:"IPSI_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	TTL      string `yaml:"ttl"`
}

// DefaultRedisTTL bounds how long a shared snapshot survives in Redis.
const DefaultRedisTTL = 24 * time.Hour

// GetTTL returns the parsed TTL, falling back to DefaultRedisTTL.
func (r *RedisConfig) GetTTL() time.Duration {
	if r.TTL == "" {
		return DefaultRedisTTL
	}
	d, err := time.ParseDuration(r.TTL)
	if err != nil {
		return DefaultRedisTTL
	}
	return d
}

// CatalogConfig controls the institution/track options snapshot.
type CatalogConfig struct {
	// RefreshInterval is how often the corpus version is polled. Empty disables polling.
	RefreshInterval string      `yaml:"refresh_interval" env:"IPSI_CATALOG_REFRESH_INTERVAL"`
	Redis           RedisConfig `yaml:"redis"`
}

// GetRefreshInterval returns the polling period, or 0 when polling is disabled.
func (c *CatalogConfig) GetRefreshInterval() time.Duration {
	if c.RefreshInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 0
	}
	return d
}

// PolicyConfig parameterises the admission decision rules.
type PolicyConfig struct {
	BorderlineTolerance float64  `yaml:"borderline_tolerance"`
	MeritMaxGap         float64  `yaml:"merit_max_gap"`
	HolisticTracks      []string `yaml:"holistic_tracks"`
	HolisticKeywords    []string `yaml:"holistic_keywords"`
}

// AdvisorConfig controls a single advising turn.
type AdvisorConfig struct {
	Language      string  `yaml:"language" env:"IPSI_ADVISOR_LANGUAGE"`
	Temperature   float64 `yaml:"temperature"`
	HistoryWindow int     `yaml:"history_window"`
	ResultLimit   int     `yaml:"result_limit"`
	Greeting      bool    `yaml:"greeting"`
}

type SessionConfig struct {
	IdleTTL     string `yaml:"idle_ttl"`
	MaxSessions int    `yaml:"max_sessions"`
}

// DefaultSessionIdleTTL is the idle time after which a session is evicted.
const DefaultSessionIdleTTL = 2 * time.Hour

// GetIdleTTL returns the parsed idle TTL, falling back to DefaultSessionIdleTTL.
func (s *SessionConfig) GetIdleTTL() time.Duration {
	if s.IdleTTL == "" {
		return DefaultSessionIdleTTL
	}
	d, err := time.ParseDuration(s.IdleTTL)
	if err != nil {
		return DefaultSessionIdleTTL
	}
	return d
}

type YandexConfig struct {
	Enabled     bool   `yaml:"enabled" env:"IPSI_YANDEX_ENABLED"`
	APIKey      string `yaml:"api_key" env:"IPSI_YANDEX_API_KEY"`
	FolderID    string `yaml:"folder_id" env:"IPSI_YANDEX_FOLDER_ID"`
	Language    string `yaml:"language"`
	AudioFormat string `yaml:"audio_format"`
	SampleRate  string `yaml:"sample_rate"`
}

type Config struct {
	Log struct {
		Level string `yaml:"level" env:"IPSI_LOG_LEVEL"`
	} `yaml:"log"`
	Server struct {
		ListenPort string `yaml:"listen_port" env:"IPSI_SERVER_PORT"`
		Auth       struct {
			Enabled  bool   `yaml:"enabled" env:"IPSI_AUTH_ENABLED"`
			Username string `yaml:"username" env:"IPSI_AUTH_USERNAME"`
			Password string `yaml:"password" env:"IPSI_AUTH_PASSWORD"`
		} `yaml:"auth"`
	} `yaml:"server"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Agents     AgentsConfig     `yaml:"agents"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Database   struct {
		Path string `yaml:"path" env:"IPSI_DATABASE_PATH"`
	} `yaml:"database"`
	Corpus  CorpusConfig  `yaml:"corpus"`
	Catalog CatalogConfig `yaml:"catalog"`
	Policy  PolicyConfig  `yaml:"policy"`
	Advisor AdvisorConfig `yaml:"advisor"`
	Session SessionConfig `yaml:"session"`
	Yandex  YandexConfig  `yaml:"yandex"`
}

// Load loads configuration from the specified file path.
// It first loads the embedded default configuration, then merges the user config on top.
// Finally, it overrides values with environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			expandedData := []byte(os.ExpandEnv(string(data)))

			// Unmarshal user config on top of defaults (merges non-zero values)
			if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
				return nil, err
			}
			slog.Info("loaded user config", "path", path)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads the embedded default configuration.
func LoadDefault() (*Config, error) {
	return Load("")
}

// DefaultConfigBytes returns the raw embedded default configuration.
func DefaultConfigBytes() []byte {
	return defaultConfig
}

// Validate checks configuration for required fields and valid ranges.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []error

	if c.OpenRouter.APIKey == "" {
		errs = append(errs, errors.New("openrouter.api_key is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Agents.Default.Model == "" {
		errs = append(errs, errors.New("agents.default.model is required"))
	}
	if c.Embedding.Model == "" {
		errs = append(errs, errors.New("embedding.model is required"))
	}

	if c.Corpus.InstitutionField == "" {
		errs = append(errs, errors.New("corpus.institution_field is required"))
	}
	if c.Corpus.TrackField == "" {
		errs = append(errs, errors.New("corpus.track_field is required"))
	}
	if c.Corpus.InstitutionField != "" && c.Corpus.InstitutionField == c.Corpus.TrackField {
		errs = append(errs, fmt.Errorf("corpus.institution_field and corpus.track_field must differ, both are %q", c.Corpus.TrackField))
	}

	if c.Yandex.Enabled {
		if c.Yandex.APIKey == "" {
			errs = append(errs, errors.New("yandex.api_key is required when yandex.enabled is true"))
		}
		if c.Yandex.FolderID == "" {
			errs = append(errs, errors.New("yandex.folder_id is required when yandex.enabled is true"))
		}
	}

	if c.Catalog.Redis.Enabled && c.Catalog.Redis.Addr == "" {
		errs = append(errs, errors.New("catalog.redis.addr is required when catalog.redis.enabled is true"))
	}

	// Server auth requires username if enabled (password is auto-generated if not set)
	if c.Server.Auth.Enabled && c.Server.Auth.Username == "" {
		errs = append(errs, errors.New("server.auth.username is required when server.auth.enabled is true"))
	}

	if c.Policy.BorderlineTolerance < 0 {
		errs = append(errs, fmt.Errorf("policy.borderline_tolerance must not be negative, got %f", c.Policy.BorderlineTolerance))
	}
	if c.Policy.MeritMaxGap < 0 {
		errs = append(errs, fmt.Errorf("policy.merit_max_gap must not be negative, got %f", c.Policy.MeritMaxGap))
	}
	if c.Policy.MeritMaxGap > 0 && c.Policy.MeritMaxGap < c.Policy.BorderlineTolerance {
		errs = append(errs, fmt.Errorf("policy.merit_max_gap (%f) must not be below policy.borderline_tolerance (%f)", c.Policy.MeritMaxGap, c.Policy.BorderlineTolerance))
	}

	if c.Advisor.Temperature < 0 || c.Advisor.Temperature > 2 {
		errs = append(errs, fmt.Errorf("advisor.temperature must be between 0 and 2, got %f", c.Advisor.Temperature))
	}
	if c.Advisor.HistoryWindow <= 0 {
		errs = append(errs, fmt.Errorf("advisor.history_window must be positive, got %d", c.Advisor.HistoryWindow))
	}
	if c.Advisor.ResultLimit <= 0 {
		errs = append(errs, fmt.Errorf("advisor.result_limit must be positive, got %d", c.Advisor.ResultLimit))
	}
	if c.Session.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("session.max_sessions must not be negative, got %d", c.Session.MaxSessions))
	}

	// Duration format validation
	durations := map[string]string{
		"corpus.reload_interval":   c.Corpus.ReloadInterval,
		"catalog.refresh_interval": c.Catalog.RefreshInterval,
		"catalog.redis.ttl":        c.Catalog.Redis.TTL,
		"session.idle_ttl":         c.Session.IdleTTL,
	}
	for _, name := range []string{"corpus.reload_interval", "catalog.refresh_interval", "catalog.redis.ttl", "session.idle_ttl"} {
		value := durations[name]
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration format %q: %w", name, value, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
