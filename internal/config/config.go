package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Auth     AuthConfig     `mapstructure:"auth" json:"auth"`
	Backend  BackendConfig  `mapstructure:"backend" json:"backend"`
	Context  ContextConfig  `mapstructure:"context" json:"context"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	Database string `mapstructure:"database" json:"database"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret" json:"jwt_secret"`
	Issuer        string `mapstructure:"issuer" json:"issuer"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours" json:"token_ttl_hours"`
}

// BackendConfig selects which generation-backend model serves each purpose.
// Summaries and titles run on a cheaper model than end-user replies.
type BackendConfig struct {
	APIKey                string `mapstructure:"api_key" json:"api_key,omitempty"`
	BaseURL               string `mapstructure:"base_url" json:"base_url,omitempty"`
	ReplyModel            string `mapstructure:"reply_model" json:"reply_model"`
	SummarizeModel        string `mapstructure:"summarize_model" json:"summarize_model"`
	TitleModel            string `mapstructure:"title_model" json:"title_model"`
	ClassifyModel         string `mapstructure:"classify_model" json:"classify_model"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`
}

// ContextConfig is the context engine's policy surface
type ContextConfig struct {
	CacheExpiryMinutes  int    `mapstructure:"cache_expiry_minutes" json:"cache_expiry_minutes"`
	MeaningfulThreshold int    `mapstructure:"meaningful_threshold" json:"meaningful_threshold"`
	DefaultPageSize     int    `mapstructure:"default_page_size" json:"default_page_size"`
	Tokenizer           string `mapstructure:"tokenizer" json:"tokenizer"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" json:"level"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	// Add config paths
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Check for user config directory
	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".parley"))
	}

	setDefaults()

	// Read config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No file is fine; defaults plus env overrides carry a dev setup.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "parley")
	viper.SetDefault("database.database", "parley")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("auth.jwt_secret", "change-me-in-production")
	viper.SetDefault("auth.issuer", "parley")
	viper.SetDefault("auth.token_ttl_hours", 24)

	viper.SetDefault("backend.reply_model", "gpt-4")
	viper.SetDefault("backend.summarize_model", "gpt-3.5-turbo")
	viper.SetDefault("backend.title_model", "gpt-3.5-turbo")
	viper.SetDefault("backend.classify_model", "gpt-3.5-turbo")
	viper.SetDefault("backend.request_timeout_seconds", 60)

	viper.SetDefault("context.cache_expiry_minutes", 5)
	viper.SetDefault("context.meaningful_threshold", 5)
	viper.SetDefault("context.default_page_size", 50)
	viper.SetDefault("context.tokenizer", "tiktoken")

	viper.SetDefault("logging.level", "info")
}

func loadEnvOverrides(cfg *Config) {
	if host := os.Getenv("PARLEY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("PARLEY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	// Database overrides
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if secret := os.Getenv("PARLEY_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	// The backend key never lives in the config file
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Backend.APIKey = key
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg.Backend.BaseURL = base
	}
}
