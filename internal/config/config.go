package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)

	// External services
	ParserURL           string
	GigaChatCredentials string
	GigaChatScope       string
	GigaChatInsecureTLS bool

	// Postgres configuration
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	UseMockDB bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	// Parser service (required)
	config.ParserURL = os.Getenv("PARSER_URL")
	if config.ParserURL == "" {
		return nil, fmt.Errorf("PARSER_URL is required")
	}

	// GigaChat credentials (required)
	config.GigaChatCredentials = os.Getenv("GIGACHAT_CREDENTIALS")
	if config.GigaChatCredentials == "" {
		return nil, fmt.Errorf("GIGACHAT_CREDENTIALS is required")
	}
	config.GigaChatScope = os.Getenv("GIGACHAT_SCOPE")
	if config.GigaChatScope == "" {
		config.GigaChatScope = "GIGACHAT_API_PERS"
	}
	config.GigaChatInsecureTLS = os.Getenv("GIGACHAT_INSECURE_TLS") == "true"

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	// Postgres configuration (required if not using mock)
	if !config.UseMockDB {
		config.PostgresHost = os.Getenv("POSTGRES_HOST")
		if config.PostgresHost == "" {
			return nil, fmt.Errorf("POSTGRES_HOST is required when USE_MOCK_DB is not set")
		}

		portStr := os.Getenv("POSTGRES_PORT")
		if portStr == "" {
			config.PostgresPort = 5432
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return nil, fmt.Errorf("invalid POSTGRES_PORT: %w", err)
			}
			config.PostgresPort = port
		}

		config.PostgresDB = os.Getenv("POSTGRES_DB")
		if config.PostgresDB == "" {
			config.PostgresDB = "linklens"
		}

		config.PostgresUser = os.Getenv("POSTGRES_USER")
		if config.PostgresUser == "" {
			config.PostgresUser = "postgres"
		}

		config.PostgresPassword = os.Getenv("POSTGRES_PASSWORD")
		// Password is optional, can be empty

		config.PostgresSSLMode = os.Getenv("POSTGRES_SSLMODE")
		if config.PostgresSSLMode == "" {
			config.PostgresSSLMode = "disable"
		}
	}

	return config, nil
}

// PostgresDSN builds the connection string for pgx
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSLMode)
}
