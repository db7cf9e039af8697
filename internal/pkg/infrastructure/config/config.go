package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

//AppConfig holds everything the dashboard client needs to talk to the backend and keep its local state
type AppConfig struct {
	APIBaseURL    string
	HTTPTimeout   time.Duration
	UploadTimeout time.Duration

	StateDriver string
	StateDBPath string
	PostgresDSN string
	LogLevel    string
	StubPort    string
	StubSecret  string

	StubAdminEmail    string
	StubAdminPassword string

	PricesBaseURL   string
	PricesAPIKey    string
	PricesResource  string
	GeocodeBaseURL  string
	ExternalTimeout time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "farmdash.db"
	}
	return filepath.Join(home, ".farmdash", "state.db")
}

//Load reads an optional .env file and then the process environment
func Load() AppConfig {
	// a missing .env file is the normal case outside development
	_ = godotenv.Load()

	return AppConfig{
		APIBaseURL:    getEnv("FARMDASH_API_URL", "http://localhost:5000/api"),
		HTTPTimeout:   getEnvDuration("FARMDASH_HTTP_TIMEOUT", 0),
		UploadTimeout: getEnvDuration("FARMDASH_UPLOAD_TIMEOUT", 60*time.Second),

		StateDriver: getEnv("FARMDASH_DB_DRIVER", "sqlite"),
		StateDBPath: getEnv("FARMDASH_STATE_DB", defaultStatePath()),
		PostgresDSN: getEnv("FARMDASH_POSTGRES_DSN", ""),
		LogLevel:    getEnv("FARMDASH_LOG_LEVEL", "warning"),
		StubPort:    getEnv("SERVICE_PORT", "5000"),
		StubSecret:  getEnv("FARMDASH_STUB_SECRET", "farmdash-dev-secret"),

		StubAdminEmail:    getEnv("FARMDASH_STUB_ADMIN_EMAIL", "admin@farmdash.local"),
		StubAdminPassword: getEnv("FARMDASH_STUB_ADMIN_PASSWORD", "farmdash-admin"),

		PricesBaseURL:   getEnv("FARMDASH_PRICES_URL", "https://api.data.gov.in"),
		PricesAPIKey:    getEnv("FARMDASH_PRICES_API_KEY", ""),
		PricesResource:  getEnv("FARMDASH_PRICES_RESOURCE", "9ef84268-d588-465a-a308-a864a43d0070"),
		GeocodeBaseURL:  getEnv("FARMDASH_GEOCODE_URL", "https://nominatim.openstreetmap.org"),
		ExternalTimeout: getEnvDuration("FARMDASH_EXTERNAL_TIMEOUT", 15*time.Second),
		BreakerFailures: getEnvInt("FARMDASH_BREAKER_FAILURES", 3),
		BreakerOpenFor:  getEnvDuration("FARMDASH_BREAKER_OPEN_FOR", 30*time.Second),
	}
}
