package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	RunMode string // from the -m flag
	AppEnv  string // "development" exposes error detail in responses

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string
	AllowedOrigins []string
	PublicBaseURL  string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	ResendAPIKey    string
	AdminEmail      string
	OtpTTL          time.Duration

	// Object storage
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	AwsS3Endpoint      string // optional, for S3-compatible stores
	ImageMaxDimension  int
	ImageMaxSizeMB     int

	// Payment gateway
	GatewayBaseURL     string
	GatewayAPIKey      string
	GatewayAuthToken   string
	GatewaySalt        string
	GatewayRedirectURL string
	GatewayWebhookURL  string
	GatewayTimeout     time.Duration
	Currency           string

	PaymentReconcileInterval time.Duration
	PaymentReconcileMinAge   time.Duration

	AppName        string
	PasswordRegexp string

	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// IsDevelopment reports whether detailed errors may be returned to clients.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// env reads variables and collects every parse failure so a bad deployment
// reports all of its mistakes at once.
type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func (e *env) required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		e.errs = append(e.errs, fmt.Errorf("missing required environment variable: %s", key))
	}
	return v
}

func (e *env) integer(key string, def int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (e *env) seconds(key string, def int) time.Duration {
	return time.Duration(e.integer(key, def)) * time.Second
}

func (e *env) list(key, def string) []string {
	var out []string
	for _, item := range strings.Split(e.str(key, def), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load reads configuration from the environment and an optional .env file.
// runMode comes from the command line.
func Load(runMode string) (*Config, error) {
	_ = godotenv.Load()

	e := &env{}
	publicURL := strings.TrimRight(e.str("PUBLIC_BASE_URL", "http://localhost:8080"), "/")

	cfg := &Config{
		RunMode: runMode,
		AppEnv:  e.str("APP_ENV", "production"),

		MongoURI:      e.required("MONGO_URI"),
		MongoDbName:   e.str("MONGO_DB_NAME", "agrolink"),
		RedisAddr:     e.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword: e.str("REDIS_PASSWORD", ""),
		RedisDB:       e.integer("REDIS_DB", 0),

		JwtSecret: e.required("JWT_SECRET"),
		JwtTTL:    e.seconds("JWT_TTL_SECONDS", 86400),

		ApiPort:        e.str("API_PORT", "8080"),
		ServiceApiPort: e.str("SERVICE_API_PORT", "12345"),
		AllowedOrigins: e.list("ALLOWED_ORIGINS", "*"),
		PublicBaseURL:  publicURL,

		SmtpHost:        e.str("SMTP_HOST", ""),
		SmtpPort:        e.integer("SMTP_PORT", 587),
		SmtpUsername:    e.str("SMTP_USERNAME", ""),
		SmtpPassword:    e.str("SMTP_PASSWORD", ""),
		SmtpFromAddress: e.str("SMTP_FROM_ADDRESS", "noreply@agrolink.example.com"),
		ResendAPIKey:    e.str("RESEND_API_KEY", ""),
		AdminEmail:      e.str("ADMIN_EMAIL", "admin@agrolink.example.com"),
		OtpTTL:          e.seconds("OTP_TTL_SECONDS", 600),

		AwsAccessKeyID:     e.str("AWS_ACCESS_KEY_ID", ""),
		AwsSecretAccessKey: e.str("AWS_SECRET_ACCESS_KEY", ""),
		AwsRegion:          e.str("AWS_REGION", "ap-south-1"),
		AwsS3Bucket:        e.str("AWS_S3_BUCKET", ""),
		AwsS3Endpoint:      e.str("AWS_S3_ENDPOINT", ""),
		ImageMaxDimension:  e.integer("IMAGE_MAX_DIMENSION", 2048),
		ImageMaxSizeMB:     e.integer("IMAGE_MAX_SIZE_MB", 10),

		GatewayBaseURL:     strings.TrimRight(e.str("GATEWAY_BASE_URL", "https://test.instamojo.com/api/1.1"), "/"),
		GatewayAPIKey:      e.str("GATEWAY_API_KEY", ""),
		GatewayAuthToken:   e.str("GATEWAY_AUTH_TOKEN", ""),
		GatewaySalt:        e.str("GATEWAY_SALT", ""),
		GatewayRedirectURL: e.str("GATEWAY_REDIRECT_URL", publicURL+"/payment/complete"),
		GatewayWebhookURL:  e.str("GATEWAY_WEBHOOK_URL", publicURL+"/api/v1/payments/webhook"),
		GatewayTimeout:     e.seconds("GATEWAY_TIMEOUT_SECONDS", 15),
		Currency:           e.str("CURRENCY", "INR"),

		PaymentReconcileInterval: e.seconds("PAYMENT_RECONCILE_INTERVAL_SECONDS", 300),
		PaymentReconcileMinAge:   e.seconds("PAYMENT_RECONCILE_MIN_AGE_SECONDS", 600),

		AppName:        e.str("APP_NAME", "AgroLink"),
		PasswordRegexp: e.str("PASSWORD_REGEXP", "^.{8,}$"),

		RateLimitBucketSize: e.integer("RATE_LIMIT_BUCKET_SIZE", 20),
		RateLimitRefillRate: e.integer("RATE_LIMIT_REFILL_RATE", 10),
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}
