package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Log      LogConfig
	Vault    VaultConfig
	Iyzico   IyzicoConfig
	Checkout CheckoutConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// AutoMigrate applies the embedded schema at startup.
	AutoMigrate bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string
	Development bool
}

// VaultConfig holds card vault limits and escrow retention.
type VaultConfig struct {
	MaxCardsPerUser int
	// EscrowTTL of zero keeps key material until the cache evicts it.
	EscrowTTL time.Duration
	LockTTL   time.Duration
}

// IyzicoConfig holds the payment provider credentials.
type IyzicoConfig struct {
	APIKey         string
	SecretKey      string
	BaseURL        string
	CallbackURL    string
	RequestTimeout time.Duration
}

// CheckoutConfig holds checkout defaults.
type CheckoutConfig struct {
	// ProviderDeadline bounds a single provider round-trip from the HTTP layer.
	ProviderDeadline time.Duration
	DefaultCurrency  string
	DefaultBuyerIP   string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 45*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cardpay"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			AutoMigrate:     getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "cardpay-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getBoolEnv("LOG_DEVELOPMENT", false),
		},
		Vault: VaultConfig{
			MaxCardsPerUser: getIntEnv("VAULT_MAX_CARDS_PER_USER", 3),
			EscrowTTL:       getDurationEnv("VAULT_ESCROW_TTL", 0),
			LockTTL:         getDurationEnv("VAULT_LOCK_TTL", 10*time.Second),
		},
		Iyzico: IyzicoConfig{
			APIKey:         getEnv("IYZICO_API_KEY", ""),
			SecretKey:      getEnv("IYZICO_SECRET_KEY", ""),
			BaseURL:        getEnv("IYZICO_BASE_URL", "https://sandbox-api.iyzipay.com"),
			CallbackURL:    getEnv("IYZICO_CALLBACK_URL", "http://localhost:8080/v1/payments/checkout/callback"),
			RequestTimeout: getDurationEnv("IYZICO_REQUEST_TIMEOUT", 20*time.Second),
		},
		Checkout: CheckoutConfig{
			ProviderDeadline: getDurationEnv("CHECKOUT_PROVIDER_DEADLINE", 30*time.Second),
			DefaultCurrency:  getEnv("CHECKOUT_DEFAULT_CURRENCY", "USD"),
			DefaultBuyerIP:   getEnv("CHECKOUT_DEFAULT_BUYER_IP", "85.34.78.112"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
