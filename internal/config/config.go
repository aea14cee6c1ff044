package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/diff0/diff0/internal/logger"
)

// Config holds the application's configuration values.
type Config struct {
	Server   ServerConfig
	Logging  logger.Config
	Database *DBConfig
	GitHub   GitHubConfig
	Sandbox  SandboxConfig
	Analyzer AnalyzerConfig
	Review   ReviewConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// GitHubConfig holds GitHub App credentials.
type GitHubConfig struct {
	AppID          int64
	WebhookSecret  string
	PrivateKeyPath string
}

// SandboxConfig holds settings for the ephemeral sandbox provisioner.
type SandboxConfig struct {
	APIURL string
	APIKey string
	// Snapshot is the provider image profile sandboxes are created from.
	Snapshot string
	// AutoStopMinutes is the provider-side idle auto-stop. It is a safety
	// net only; explicit release remains mandatory.
	AutoStopMinutes int
	ExecTimeout     time.Duration
}

// AnalyzerConfig holds settings for the AI analysis service.
type AnalyzerConfig struct {
	URL          string
	APIKey       string
	Timeout      time.Duration
	MaxDiffBytes int
}

// ReviewConfig holds pipeline tuning knobs.
type ReviewConfig struct {
	MaxWorkers        int
	MaxInlineComments int
	CreditCost        int
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_OUTPUT", "stdout")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "diff0")
	viper.SetDefault("DB_NAME", "diff0")
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")
	viper.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/diff0-app.private-key.pem")
	viper.SetDefault("SANDBOX_SNAPSHOT", "sandbox-medium")
	viper.SetDefault("SANDBOX_AUTO_STOP_MINUTES", 5)
	viper.SetDefault("SANDBOX_EXEC_TIMEOUT", "2m")
	viper.SetDefault("ANALYZER_TIMEOUT", "3m")
	viper.SetDefault("ANALYZER_MAX_DIFF_BYTES", 256*1024)
	viper.SetDefault("MAX_WORKERS", 5)
	viper.SetDefault("MAX_INLINE_COMMENTS", 20)
	viper.SetDefault("REVIEW_CREDIT_COST", 1)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if viper.GetInt64("GITHUB_APP_ID") == 0 {
		return nil, fmt.Errorf("GITHUB_APP_ID must be set")
	}
	if viper.GetString("GITHUB_WEBHOOK_SECRET") == "" {
		return nil, fmt.Errorf("GITHUB_WEBHOOK_SECRET must be set")
	}
	if viper.GetString("SANDBOX_API_URL") == "" {
		return nil, fmt.Errorf("SANDBOX_API_URL must be set")
	}
	if viper.GetString("ANALYZER_URL") == "" {
		return nil, fmt.Errorf("ANALYZER_URL must be set")
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		Logging: logger.Config{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
			Output: viper.GetString("LOG_OUTPUT"),
		},
		Database: &DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: viper.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		GitHub: GitHubConfig{
			AppID:          viper.GetInt64("GITHUB_APP_ID"),
			WebhookSecret:  viper.GetString("GITHUB_WEBHOOK_SECRET"),
			PrivateKeyPath: viper.GetString("GITHUB_PRIVATE_KEY_PATH"),
		},
		Sandbox: SandboxConfig{
			APIURL:          viper.GetString("SANDBOX_API_URL"),
			APIKey:          viper.GetString("SANDBOX_API_KEY"),
			Snapshot:        viper.GetString("SANDBOX_SNAPSHOT"),
			AutoStopMinutes: viper.GetInt("SANDBOX_AUTO_STOP_MINUTES"),
			ExecTimeout:     viper.GetDuration("SANDBOX_EXEC_TIMEOUT"),
		},
		Analyzer: AnalyzerConfig{
			URL:          viper.GetString("ANALYZER_URL"),
			APIKey:       viper.GetString("ANALYZER_API_KEY"),
			Timeout:      viper.GetDuration("ANALYZER_TIMEOUT"),
			MaxDiffBytes: viper.GetInt("ANALYZER_MAX_DIFF_BYTES"),
		},
		Review: ReviewConfig{
			MaxWorkers:        viper.GetInt("MAX_WORKERS"),
			MaxInlineComments: viper.GetInt("MAX_INLINE_COMMENTS"),
			CreditCost:        viper.GetInt("REVIEW_CREDIT_COST"),
		},
	}, nil
}
