// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Account      AccountConfig
	CORS         CORSConfig
	Redis        RedisConfig
	AWS          AWSConfig
	Email        EmailConfig
	Notification NotificationConfig
	Ingestion    IngestionConfig
	RateLimit    RateLimitConfig
	I18n         I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	TimeZone        string
	ApplicationName string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxLifetime     int
	LogLevel        string
}

type JWTConfig struct {
	SecretKey      string
	Issuer         string
	AccessTokenTTL time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

type AccountConfig struct {
	// RequireActivation registers users inactive until they follow the emailed link.
	RequireActivation bool
}

type CORSConfig struct {
	AllowedOrigins []string // "*" allows any origin
}

// NotificationConfig is handed to the notification dispatcher at startup.
type NotificationConfig struct {
	BaseURL      string
	TemplateRoot string
	Backend      string // memory | redis
	QueueKey     string
	Workers      int
	MaxAttempts  int
	RetryDelay   time.Duration

	EnqueueTimeout time.Duration
}

type IngestionConfig struct {
	FetchTimeout    time.Duration
	MaxDocumentSize int64
	RefreshSchedule string
	RefreshWorkers  int
	ArchiveUploads  bool
	LocalArchiveDir string
}

type RateLimitConfig struct {
	GeneralPerSecond float64
	GeneralBurst     int
	AuthPerMinute    float64
	AuthBurst        int
	ConfirmPerMinute float64
	ConfirmBurst     int
	IngestPerMinute  float64
	IngestBurst      int
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "retail"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
			ApplicationName: getEnv("DB_APPLICATION_NAME", "retail-backend"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:     getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:        getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Issuer:         getEnv("JWT_ISSUER", "retail-auth"),
			AccessTokenTTL: getEnvAsDuration("JWT_ACCESS_TTL", 24*time.Hour),
		},
		Account: AccountConfig{
			RequireActivation: getEnvAsBool("ACCOUNT_REQUIRE_ACTIVATION", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "retail-price-lists"),
			S3Endpoint:      getEnv("AWS_S3_ENDPOINT", ""),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "noreply@retail.local"),
			FromName:     getEnv("FROM_NAME", "Retail"),
		},
		Notification: NotificationConfig{
			BaseURL:      strings.TrimRight(getEnv("NOTIFICATION_BASE_URL", "http://127.0.0.1:8080"), "/"),
			TemplateRoot: getEnv("NOTIFICATION_TEMPLATE_ROOT", ""),
			Backend:      getEnv("NOTIFICATION_BACKEND", "memory"),
			QueueKey:     getEnv("NOTIFICATION_QUEUE_KEY", "retail:notifications"),
			Workers:      getEnvAsInt("NOTIFICATION_WORKERS", 4),
			MaxAttempts:  getEnvAsInt("NOTIFICATION_MAX_ATTEMPTS", 3),
			RetryDelay:   getEnvAsDuration("NOTIFICATION_RETRY_DELAY", 2*time.Second),

			EnqueueTimeout: getEnvAsDuration("NOTIFICATION_ENQUEUE_TIMEOUT", time.Second),
		},
		Ingestion: IngestionConfig{
			FetchTimeout:    getEnvAsDuration("INGESTION_FETCH_TIMEOUT", 30*time.Second),
			MaxDocumentSize: int64(getEnvAsInt("INGESTION_MAX_DOCUMENT_SIZE", 10<<20)),
			RefreshSchedule: getEnv("INGESTION_REFRESH_SCHEDULE", "0 0 * * * *"),
			RefreshWorkers:  getEnvAsInt("INGESTION_REFRESH_WORKERS", 3),
			ArchiveUploads:  getEnvAsBool("INGESTION_ARCHIVE_UPLOADS", false),
			LocalArchiveDir: getEnv("INGESTION_LOCAL_ARCHIVE_DIR", "./uploads/price-lists"),
		},
		RateLimit: RateLimitConfig{
			GeneralPerSecond: getEnvAsFloat("RATE_LIMIT_GENERAL_PER_SECOND", 10),
			GeneralBurst:     getEnvAsInt("RATE_LIMIT_GENERAL_BURST", 20),
			AuthPerMinute:    getEnvAsFloat("RATE_LIMIT_AUTH_PER_MINUTE", 10),
			AuthBurst:        getEnvAsInt("RATE_LIMIT_AUTH_BURST", 5),
			ConfirmPerMinute: getEnvAsFloat("RATE_LIMIT_CONFIRM_PER_MINUTE", 10),
			ConfirmBurst:     getEnvAsInt("RATE_LIMIT_CONFIRM_BURST", 5),
			IngestPerMinute:  getEnvAsFloat("RATE_LIMIT_INGEST_PER_MINUTE", 6),
			IngestBurst:      getEnvAsInt("RATE_LIMIT_INGEST_BURST", 3),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Notification.Backend != "memory" && c.Notification.Backend != "redis" {
		return fmt.Errorf("unknown notification backend %q", c.Notification.Backend)
	}

	if c.Notification.Workers < 1 {
		return fmt.Errorf("notification workers must be at least 1")
	}

	if c.Notification.MaxAttempts < 1 {
		return fmt.Errorf("notification max attempts must be at least 1")
	}

	if c.Ingestion.FetchTimeout <= 0 {
		return fmt.Errorf("ingestion fetch timeout must be positive")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
