// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It uses private fields
// to enforce access through the getter methods, keeping loaded configuration
// immutable from the call sites' point of view.
type Config struct {
	logger   LoggerConfig
	ingest   IngestConfig
	store    StoreConfig
	llm      LLMConfig
	email    EmailConfig
	detector DetectorConfig
	diagnose DiagnoseConfig
	watch    WatchConfig
}

// configFile is the decode target for viper. Decoding needs exported fields,
// so the raw shape lives here and is copied into the immutable Config.
type configFile struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Ingest   IngestConfig   `mapstructure:"ingest" yaml:"ingest"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Email    EmailConfig    `mapstructure:"email" yaml:"email"`
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector"`
	Diagnose DiagnoseConfig `mapstructure:"diagnose" yaml:"diagnose"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
}

func (f configFile) toConfig() Config {
	return Config{
		logger:   f.Logger,
		ingest:   f.Ingest,
		store:    f.Store,
		llm:      f.LLM,
		email:    f.Email,
		detector: f.Detector,
		diagnose: f.Diagnose,
		watch:    f.Watch,
	}
}

// -- Getters --

func (c *Config) Logger() LoggerConfig     { return c.logger }
func (c *Config) Ingest() IngestConfig     { return c.ingest }
func (c *Config) Store() StoreConfig       { return c.store }
func (c *Config) LLM() LLMConfig           { return c.llm }
func (c *Config) Email() EmailConfig       { return c.email }
func (c *Config) Detector() DetectorConfig { return c.detector }
func (c *Config) Diagnose() DiagnoseConfig { return c.diagnose }
func (c *Config) Watch() WatchConfig       { return c.watch }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// IngestConfig controls capture-file discovery and the normalization batch.
type IngestConfig struct {
	HARDir       string   `mapstructure:"har_dir" yaml:"har_dir"`
	LogDir       string   `mapstructure:"log_dir" yaml:"log_dir"`
	ProcessedDir string   `mapstructure:"processed_dir" yaml:"processed_dir"`
	Concurrency  int      `mapstructure:"concurrency" yaml:"concurrency"`
	HARPatterns  []string `mapstructure:"har_patterns" yaml:"har_patterns"`
	LogPatterns  []string `mapstructure:"log_patterns" yaml:"log_patterns"`
}

// StoreConfig selects and configures the canonical record store backend.
type StoreConfig struct {
	// Backend is "file" or "postgres".
	Backend     string `mapstructure:"backend" yaml:"backend"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// LLMProvider identifies a supported text-generation backend.
type LLMProvider string

const (
	ProviderOpenAI    LLMProvider = "openai"
	ProviderGemini    LLMProvider = "gemini"
	ProviderAnthropic LLMProvider = "anthropic"
)

// LLMConfig configures the text-generation collaborator.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	// Endpoint overrides the provider's default API endpoint, mainly for tests.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// API keys are only ever read from the environment; they never appear in
	// config files and are excluded from any serialized form.
	OpenAIAPIKey    string `mapstructure:"openai_api_key" yaml:"-"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key" yaml:"-"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key" yaml:"-"`
}

// APIKey returns the key matching the configured provider.
func (l LLMConfig) APIKey() string {
	switch l.Provider {
	case ProviderOpenAI:
		return l.OpenAIAPIKey
	case ProviderGemini:
		return l.GeminiAPIKey
	case ProviderAnthropic:
		return l.AnthropicAPIKey
	default:
		return ""
	}
}

// EmailConfig holds the SMTP settings for the email collaborator.
type EmailConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
	Sender   string `mapstructure:"sender" yaml:"sender"`
}

// DetectorConfig points at an optional custom-rules file for the pattern
// detector. Empty means built-in rules only.
type DetectorConfig struct {
	RulesFile string `mapstructure:"rules_file" yaml:"rules_file"`
}

// DiagnoseConfig tunes the LLM triage pass.
type DiagnoseConfig struct {
	// Merchant overrides the merchant name substituted into the triage
	// prompt; empty derives it from the log entry's service field.
	Merchant string `mapstructure:"merchant" yaml:"merchant"`
	// RateLimit caps LLM calls per second during a batch diagnosis.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	// Concurrency bounds in-flight LLM calls during a batch diagnosis.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// WatchConfig configures the live log follower.
type WatchConfig struct {
	// FromStart reads the followed file from the beginning instead of
	// seeking to the end first.
	FromStart bool `mapstructure:"from_start" yaml:"from_start"`
	// Persist appends finalized entries to the record store.
	Persist bool `mapstructure:"persist" yaml:"persist"`
}

// LoadDotenv loads .env.local then .env from the working directory into the
// process environment, matching the original deployments that configured API
// keys through dotenv files. Missing files are not an error.
func LoadDotenv() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "flowlens")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Ingest --
	v.SetDefault("ingest.har_dir", "data/har")
	v.SetDefault("ingest.log_dir", "data/log")
	v.SetDefault("ingest.processed_dir", "data/processed")
	v.SetDefault("ingest.concurrency", 8)
	v.SetDefault("ingest.har_patterns", []string{"*.har"})
	v.SetDefault("ingest.log_patterns", []string{"*.log", "*.json", "*.txt"})

	// -- Store --
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.database_url", "")

	// -- LLM --
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.api_timeout", "90s")

	// -- Email --
	v.SetDefault("email.host", "live.smtp.mailtrap.io")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "api")
	v.SetDefault("email.sender", "flowlens@example.com")

	// -- Detector / Diagnose / Watch --
	v.SetDefault("detector.rules_file", "")
	v.SetDefault("diagnose.merchant", "")
	v.SetDefault("diagnose.rate_limit", 1.0)
	v.SetDefault("diagnose.concurrency", 2)
	v.SetDefault("watch.from_start", false)
	v.SetDefault("watch.persist", false)
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var raw configFile
	if err := v.Unmarshal(&raw); err != nil {
		// Cannot happen with defaults only, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	cfg := raw.toConfig()
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind the bare, conventionally named key variables in addition to the
	// FLOWLENS_-prefixed forms, so existing provider setups keep working.
	_ = v.BindEnv("llm.openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.gemini_api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("llm.anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("email.password", "SMTP_PASSWORD")

	var raw configFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := raw.toConfig()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.ingest.Concurrency <= 0 {
		return fmt.Errorf("ingest.concurrency must be a positive integer")
	}
	switch c.store.Backend {
	case "file":
	case "postgres":
		if c.store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url is required when store.backend is postgres")
		}
	default:
		return fmt.Errorf("store.backend must be \"file\" or \"postgres\", got %q", c.store.Backend)
	}
	switch c.llm.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider must be one of openai, gemini, anthropic, got %q", c.llm.Provider)
	}
	if c.diagnose.RateLimit <= 0 {
		return fmt.Errorf("diagnose.rate_limit must be positive")
	}
	if c.diagnose.Concurrency <= 0 {
		return fmt.Errorf("diagnose.concurrency must be a positive integer")
	}
	return nil
}
