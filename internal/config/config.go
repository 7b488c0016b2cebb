package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Prefilter PrefilterConfig `yaml:"prefilter" mapstructure:"prefilter"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Forum     ForumConfig     `yaml:"forum" mapstructure:"forum"`
	Luma      LumaConfig      `yaml:"luma" mapstructure:"luma"`
	Calendar  CalendarConfig  `yaml:"calendar" mapstructure:"calendar"`
	Airtable  AirtableConfig  `yaml:"airtable" mapstructure:"airtable"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ScrapeConfig configures page fetching for evaluation context.
type ScrapeConfig struct {
	TimeoutSecs  int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTextChars int `yaml:"max_text_chars" mapstructure:"max_text_chars"`
}

// PrefilterConfig configures the whitelist gate.
type PrefilterConfig struct {
	// PhrasesFile optionally overrides the built-in phrase lists with a
	// YAML file (organizations / phrases / word_boundary_terms keys).
	PhrasesFile string `yaml:"phrases_file" mapstructure:"phrases_file"`
}

// PipelineConfig configures the batch evaluation run.
type PipelineConfig struct {
	PromoteThreshold float64 `yaml:"promote_threshold" mapstructure:"promote_threshold"`
	RejectThreshold  float64 `yaml:"reject_threshold" mapstructure:"reject_threshold"`
	DedupWindowSize  int     `yaml:"dedup_window_size" mapstructure:"dedup_window_size"`
	LLMDelayMillis   int     `yaml:"llm_delay_millis" mapstructure:"llm_delay_millis"`
	BatchLimit       int     `yaml:"batch_limit" mapstructure:"batch_limit"`
}

// ForumConfig configures the forum GraphQL connector.
type ForumConfig struct {
	GraphQLURL string `yaml:"graphql_url" mapstructure:"graphql_url"`
	EventsURL  string `yaml:"events_url" mapstructure:"events_url"`
}

// LumaConfig configures the ticketing platform connector.
type LumaConfig struct {
	APIBaseURL string   `yaml:"api_base_url" mapstructure:"api_base_url"`
	SearchURL  string   `yaml:"search_url" mapstructure:"search_url"`
	Keywords   []string `yaml:"keywords" mapstructure:"keywords"`
}

// CalendarConfig configures the community calendar connector.
type CalendarConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// AirtableConfig configures the Airtable view connector. An empty key
// disables the connector rather than failing startup.
type AirtableConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseID  string `yaml:"base_id" mapstructure:"base_id"`
	TableID string `yaml:"table_id" mapstructure:"table_id"`
	ViewID  string `yaml:"view_id" mapstructure:"view_id"`
}

// ServerConfig configures the review API server.
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
	v.SetEnvPrefix("EVENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("scrape.timeout_secs", 10)
	v.SetDefault("scrape.max_text_chars", 4000)
	v.SetDefault("pipeline.promote_threshold", 0.6)
	v.SetDefault("pipeline.reject_threshold", 0.3)
	v.SetDefault("pipeline.dedup_window_size", 300)
	v.SetDefault("pipeline.llm_delay_millis", 1000)
	v.SetDefault("pipeline.batch_limit", 200)
	v.SetDefault("forum.graphql_url", "https://www.lesswrong.com/graphql")
	v.SetDefault("forum.events_url", "https://www.lesswrong.com/community")
	v.SetDefault("luma.api_base_url", "https://api.lu.ma")
	v.SetDefault("luma.search_url", "https://lu.ma/search")
	v.SetDefault("luma.keywords", []string{"ai safety", "alignment", "ai governance"})

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

	return &cfg, nil
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
