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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Intake     IntakeConfig     `yaml:"intake" mapstructure:"intake"`
	SLA        SLAFileConfig    `yaml:"sla" mapstructure:"sla"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	ExtractModel  string `yaml:"extract_model" mapstructure:"extract_model"`
	InsightsModel string `yaml:"insights_model" mapstructure:"insights_model"`
}

// SalesforceConfig holds the system-of-record connection settings.
type SalesforceConfig struct {
	ClientID string  `yaml:"client_id" mapstructure:"client_id"`
	Username string  `yaml:"username" mapstructure:"username"`
	KeyPath  string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string  `yaml:"login_url" mapstructure:"login_url"`
	SObject  string  `yaml:"sobject" mapstructure:"sobject"`
	RPS      float64 `yaml:"rps" mapstructure:"rps"`
}

// ExtractionConfig configures the document extraction adapter.
type ExtractionConfig struct {
	TimeoutSecs int   `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens   int64 `yaml:"max_tokens" mapstructure:"max_tokens"`
	Concurrency int   `yaml:"concurrency" mapstructure:"concurrency"` // batch document fan-out
}

// IntakeConfig configures the submission coordinator.
type IntakeConfig struct {
	DefaultCurrency string  `yaml:"default_currency" mapstructure:"default_currency"`
	HighAmount      float64 `yaml:"high_amount" mapstructure:"high_amount"`
	MediumAmount    float64 `yaml:"medium_amount" mapstructure:"medium_amount"`
}

// SLAFileConfig locates the SLA policy file.
type SLAFileConfig struct {
	PolicyPath string `yaml:"policy_path" mapstructure:"policy_path"`
}

// FetchConfig configures document fetching.
type FetchConfig struct {
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerS float64 `yaml:"requests_per_s" mapstructure:"requests_per_s"`
}

// ServerConfig configures the HTTP surface.
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
	v.SetEnvPrefix("COLLECTIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "collections.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.extract_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.insights_model", "claude-haiku-4-5-20251001")
	v.SetDefault("extraction.timeout_secs", 60)
	v.SetDefault("extraction.max_tokens", 4096)
	v.SetDefault("extraction.concurrency", 4)
	v.SetDefault("intake.default_currency", "USD")
	v.SetDefault("intake.high_amount", 25000)
	v.SetDefault("intake.medium_amount", 5000)
	v.SetDefault("sla.policy_path", "sla.yaml")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.requests_per_s", 4)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.sobject", "Collection_Case__c")
	v.SetDefault("salesforce.rps", 5)

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
