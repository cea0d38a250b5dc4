package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	RpcURL        string
	DbURL         string
	APIPort       int
	ChainID       int64
	NativeSymbol  string
	ExplorerURL   string
	WebhookSecret string

	Email EmailConfig
}

// EmailConfig selects and parameterizes the mail transport. Provider is
// one of "smtp", "sendgrid" or "ses".
type EmailConfig struct {
	Provider string
	From     string

	SMTPHost   string
	SMTPPort   int
	SMTPSecure bool
	SMTPUser   string
	SMTPPass   string

	SendgridAPIKey string

	AWSRegion string
}

// NewConfig loads configuration from environment variables
func NewConfig() *Config {
	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	return &Config{
		RpcURL:        getEnvOrFatal("RPC_URL"),
		DbURL:         getEnvOrFatal("DB_URL"),
		APIPort:       getEnvInt("API_PORT", 8080),
		ChainID:       int64(getEnvInt("CHAIN_ID", 56)),
		NativeSymbol:  getEnv("NATIVE_SYMBOL", "BNB"),
		ExplorerURL:   getEnv("EXPLORER_URL", "https://bscscan.com"),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		Email: EmailConfig{
			Provider:       getEnv("EMAIL_PROVIDER", "smtp"),
			From:           getEnv("EMAIL_FROM", "alerts@walletwatch.local"),
			SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:       getEnvInt("SMTP_PORT", 587),
			SMTPSecure:     getEnvBool("SMTP_SECURE", false),
			SMTPUser:       getEnv("SMTP_USER", ""),
			SMTPPass:       getEnv("SMTP_PASS", ""),
			SendgridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		},
	}
}

func getEnvOrFatal(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	log.Fatalf("Warning: environment variable %s not set", key)

	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
