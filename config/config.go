package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DocstoreMemory = "memory"
	DocstoreRedis  = "redis"
	DocstoreMongo  = "mongo"
	DocstoreDynamo = "dynamodb"

	NotifyDirect = "direct"
	NotifyOutbox = "outbox"

	EmailZepto = "zepto"
	EmailSMTP  = "smtp"
	EmailLog   = "log"

	LockMemory = "memory"
	LockRedis  = "redis"
)

// Config holds all configuration for the admissions payment service.
type Config struct {
	Port           string
	AppEnv         string
	ServiceName    string
	RequestTimeout time.Duration
	AllowedOrigins string
	RateLimit      int // requests per minute per client IP
	RateBurst      int

	DocstoreDriver   string
	RedisURL         string
	MongoURI         string
	MongoDB          string
	MongoCollection  string
	MongoTransaction bool
	DynamoTable      string
	DynamoPoll       time.Duration

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	PaystackSecretKey string
	PaystackBaseURL   string
	PaystackTimeout   time.Duration

	NotifyMode        string
	EmailProvider     string
	EmailFrom         string
	EmailFromName     string
	SMTPHost          string
	SMTPPort          string
	SMTPUsername      string
	SMTPPassword      string
	ZeptoAPIURL       string
	ZeptoAPIKey       string
	OutboxMaxAttempts int
	OutboxInterval    time.Duration

	PaymentSNSTopicARN string // SNS topic ARN for payment events
	VerifyQueueURL     string // SQS queue URL for verify requests

	JWTSecret  string
	LockDriver string
	LockTTL    time.Duration

	CloudWatchLogs bool
}

// PostgresConfigured reports whether enough is set to open the outbox and
// webhook log database.
func (c *Config) PostgresConfigured() bool {
	return c.PostgresHost != "" && c.PostgresUser != "" && c.PostgresDB != ""
}

// SecretSource returns a JSON secret decoded as a flat map.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads configuration from the environment (and .env when
// present). Call ApplySecrets afterwards to overlay Secrets Manager values.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8088"),
		AppEnv:         getEnv("APP_ENV", "development"),
		ServiceName:    getEnv("SERVICE_NAME", "admissions-payment-service"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 30*time.Second),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		RateLimit:      getInt("RATE_LIMIT_PER_MINUTE", 120),
		RateBurst:      getInt("RATE_LIMIT_BURST", 30),

		DocstoreDriver:   strings.ToLower(getEnv("DOCSTORE_DRIVER", DocstoreMemory)),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "sau_admissions"),
		MongoCollection:  getEnv("MONGO_COLLECTION", "documents"),
		MongoTransaction: getBool("MONGO_TRANSACTIONS", false),
		DynamoTable:      getEnv("DYNAMO_TABLE", "sau-admissions-documents"),
		DynamoPoll:       getDuration("DYNAMO_POLL_INTERVAL", 2*time.Second),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Africa/Lagos"),

		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackTimeout:   getDuration("PAYSTACK_TIMEOUT", 15*time.Second),

		NotifyMode:        strings.ToLower(getEnv("NOTIFY_MODE", NotifyDirect)),
		EmailProvider:     strings.ToLower(getEnv("EMAIL_PROVIDER", EmailLog)),
		EmailFrom:         getEnv("EMAIL_FROM", "admissions@sau.edu.ng"),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "SAU Admissions"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		ZeptoAPIURL:       getEnv("ZEPTO_API_URL", "https://api.zeptomail.com/v1.1/email"),
		ZeptoAPIKey:       os.Getenv("ZEPTO_API_KEY"),
		OutboxMaxAttempts: getInt("OUTBOX_MAX_ATTEMPTS", 5),
		OutboxInterval:    getDuration("OUTBOX_INTERVAL", 5*time.Second),

		PaymentSNSTopicARN: os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
		VerifyQueueURL:     os.Getenv("VERIFY_QUEUE_URL"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		LockDriver: strings.ToLower(getEnv("LOCK_DRIVER", LockMemory)),
		LockTTL:    getDuration("LOCK_TTL", 60*time.Second),

		CloudWatchLogs: getBool("CLOUDWATCH_LOGS_ENABLED", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplySecrets overrides credentials from the secret named
// "admissions/<APP_ENV>" when AWS_USE_SECRETS=true. A missing secret is not
// an error; the environment values stay.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	if os.Getenv("AWS_USE_SECRETS") != "true" || src == nil {
		return nil
	}
	m, err := src.GetSecretMap(ctx, "admissions/"+c.AppEnv)
	if err != nil {
		return nil
	}

	override := map[string]*string{
		"PAYSTACK_SECRET_KEY": &c.PaystackSecretKey,
		"POSTGRES_USER":       &c.PostgresUser,
		"POSTGRES_PASSWORD":   &c.PostgresPassword,
		"POSTGRES_DB":         &c.PostgresDB,
		"POSTGRES_HOST":       &c.PostgresHost,
		"POSTGRES_PORT":       &c.PostgresPort,
		"REDIS_URL":           &c.RedisURL,
		"MONGO_URI":           &c.MongoURI,
		"SMTP_PASSWORD":       &c.SMTPPassword,
		"ZEPTO_API_KEY":       &c.ZeptoAPIKey,
		"JWT_SECRET":          &c.JWTSecret,
	}
	for key, dst := range override {
		if v, ok := m[key]; ok && v != "" {
			*dst = v
		}
	}
	return c.Validate()
}

// Validate checks required values and enum settings.
func (c *Config) Validate() error {
	if c.PaystackSecretKey == "" {
		return fmt.Errorf("missing required environment variable PAYSTACK_SECRET_KEY")
	}
	switch c.DocstoreDriver {
	case DocstoreMemory, DocstoreRedis, DocstoreDynamo:
	case DocstoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when DOCSTORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unknown DOCSTORE_DRIVER %q", c.DocstoreDriver)
	}
	switch c.NotifyMode {
	case NotifyDirect:
	case NotifyOutbox:
		if !c.PostgresConfigured() {
			return fmt.Errorf("NOTIFY_MODE=outbox requires POSTGRES_HOST, POSTGRES_USER and POSTGRES_DB")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_MODE %q", c.NotifyMode)
	}
	switch c.EmailProvider {
	case EmailZepto, EmailSMTP, EmailLog:
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}
	switch c.LockDriver {
	case LockMemory, LockRedis:
	default:
		return fmt.Errorf("unknown LOCK_DRIVER %q", c.LockDriver)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}
