package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/quorum/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Backends  []model.Backend `yaml:"backends" mapstructure:"backends"`
	Chat      ChatConfig      `yaml:"chat" mapstructure:"chat"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Round     RoundConfig     `yaml:"round" mapstructure:"round"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ChatConfig holds shared settings for OpenAI-compatible backends. Backends
// without their own base_url inherit these.
type ChatConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// RoundConfig configures round execution.
type RoundConfig struct {
	DeadlineSecs       int     `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	BackendTimeoutSecs int     `yaml:"backend_timeout_secs" mapstructure:"backend_timeout_secs"`
	MaxRetries         int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec         float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Deadline returns the round deadline as a duration.
func (r RoundConfig) Deadline() time.Duration {
	return time.Duration(r.DeadlineSecs) * time.Second
}

// ScoringConfig configures the consensus scoring engine.
type ScoringConfig struct {
	Comparator           string  `yaml:"comparator" mapstructure:"comparator"`
	RewardScale          float64 `yaml:"reward_scale" mapstructure:"reward_scale"`
	PenaltyScale         float64 `yaml:"penalty_scale" mapstructure:"penalty_scale"`
	ParticipationPenalty float64 `yaml:"participation_penalty" mapstructure:"participation_penalty"`
	DivergenceThreshold  float64 `yaml:"divergence_threshold" mapstructure:"divergence_threshold"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("QUORUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys default empty so QUORUM_CHAT_KEY / QUORUM_ANTHROPIC_KEY
	// are picked up from the environment without a config file.
	v.SetDefault("chat.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("chat.base_url", "https://api.openai.com/v1")
	v.SetDefault("chat.model", "gpt-4o-mini")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("round.deadline_secs", 60)
	v.SetDefault("round.backend_timeout_secs", 30)
	v.SetDefault("round.max_retries", 2)
	v.SetDefault("scoring.comparator", "lexical")
	v.SetDefault("scoring.reward_scale", 2.0)
	v.SetDefault("scoring.penalty_scale", 2.0)
	v.SetDefault("scoring.participation_penalty", 0.25)
	v.SetDefault("scoring.divergence_threshold", 0.3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "quorum.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.normalize()

	return &cfg, nil
}

// normalize fills per-backend gaps from the shared sections and supplies the
// stock three-agent roster when none is configured.
func (c *Config) normalize() {
	if len(c.Backends) == 0 {
		c.Backends = []model.Backend{
			{ID: "agent-1", Kind: model.BackendKindChat},
			{ID: "agent-2", Kind: model.BackendKindChat},
			{ID: "agent-3", Kind: model.BackendKindChat},
		}
	}
	for i := range c.Backends {
		b := &c.Backends[i]
		if b.Kind == "" {
			b.Kind = model.BackendKindChat
		}
		if b.Model == "" {
			switch b.Kind {
			case model.BackendKindClaude:
				b.Model = c.Anthropic.Model
			default:
				b.Model = c.Chat.Model
			}
		}
		if b.BaseURL == "" && b.Kind == model.BackendKindChat {
			b.BaseURL = c.Chat.BaseURL
		}
		if b.Timeout <= 0 {
			b.Timeout = time.Duration(c.Round.BackendTimeoutSecs) * time.Second
		}
		if b.MaxRetries == 0 {
			b.MaxRetries = c.Round.MaxRetries
		}
		if b.RatePerSec == 0 {
			b.RatePerSec = c.Round.RatePerSec
		}
	}
}

// Validate reports configuration errors that would only surface mid-round.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.ID == "" {
			return eris.New("config: backend with empty id")
		}
		if seen[b.ID] {
			return eris.Errorf("config: duplicate backend id %q", b.ID)
		}
		seen[b.ID] = true
		switch b.Kind {
		case model.BackendKindChat, model.BackendKindClaude:
		default:
			return eris.Errorf("config: backend %s has unknown kind %q", b.ID, b.Kind)
		}
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
