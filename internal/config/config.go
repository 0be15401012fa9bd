package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// StoreTimeout bounds the reconcile store call per delivery.
	StoreTimeout time.Duration

	Providers ProviderConfig
	Checkout  CheckoutConfig
	RateLimit RateLimitConfig
}

// ProviderConfig holds per-provider webhook and API credentials.
type ProviderConfig struct {
	PayMongoSecretKey     string
	PayMongoWebhookSecret string
	StripeSecretKey       string
	StripeWebhookSecret   string
}

// CheckoutConfig controls checkout session creation.
type CheckoutConfig struct {
	SuccessURL string
	CancelURL  string
	Currency   string
	Packs      string
}

// RateLimitConfig controls the redis-backed webhook ingest limiter.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WebhookRate    float64
	WebhookBurst   int
	LockTTLSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "tokenledger"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tokenledger"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME_SECONDS", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME_SECONDS", 300),

		StoreTimeout: time.Duration(getenvInt("RECONCILE_STORE_TIMEOUT_MS", 5000)) * time.Millisecond,

		Providers: ProviderConfig{
			PayMongoSecretKey:     strings.TrimSpace(getenv("PAYMONGO_SECRET_KEY", "")),
			PayMongoWebhookSecret: strings.TrimSpace(getenv("PAYMONGO_WEBHOOK_SECRET", "")),
			StripeSecretKey:       strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			StripeWebhookSecret:   strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
		},
		Checkout: CheckoutConfig{
			SuccessURL: getenv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/topup/success"),
			CancelURL:  getenv("CHECKOUT_CANCEL_URL", "http://localhost:3000/topup/cancel"),
			Currency:   strings.ToUpper(getenv("CHECKOUT_CURRENCY", "PHP")),
			Packs:      getenv("CHECKOUT_PACKS", "starter=1000000:9900,plus=5000000:39900,pro=20000000:129900"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:      strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:  getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:        getenvInt("RATE_LIMIT_REDIS_DB", 0),
			WebhookRate:    getenvFloat("RATE_LIMIT_WEBHOOK_RATE", 50),
			WebhookBurst:   getenvInt("RATE_LIMIT_WEBHOOK_BURST", 100),
			LockTTLSeconds: getenvInt("RATE_LIMIT_LOCK_TTL_SECONDS", 30),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
