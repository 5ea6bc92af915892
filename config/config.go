package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config is the runtime configuration read from the environment.
type Config struct {
	Port        string
	DatabaseDSN string

	JWTSecret    string
	SessionTTL   time.Duration
	CookieSecure bool
	CORSOrigin   string

	LogLevel  string
	LogPretty bool

	// RedisAddr empty keeps OTP codes in process and logs them instead of
	// queueing mail. Development only.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OTPTTL        time.Duration
	OTPSendRate   float64 // requests per second per client
	OTPSendBurst  int
	WorkerCount   int

	StorageBackend string // local, gcs or minio
	UploadDir      string
	PublicBaseURL  string
	GCSBucket      string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

const (
	defaultPort       = "8080"
	defaultSessionTTL = 24 * time.Hour
	defaultOTPTTL     = 5 * time.Minute
)

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:        readEnv("PORT", defaultPort),
		DatabaseDSN: os.Getenv("DB_DSN"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		SessionTTL:   parseDuration("SESSION_TTL", defaultSessionTTL),
		CookieSecure: parseBool("COOKIE_SECURE", true),
		CORSOrigin:   readEnv("CORS_ORIGIN", "*"),

		LogLevel:  readEnv("LOG_LEVEL", "info"),
		LogPretty: parseBool("LOG_PRETTY", false),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseInt("REDIS_DB", 0),
		OTPTTL:        parseDuration("OTP_TTL", defaultOTPTTL),
		OTPSendRate:   parseFloat("OTP_SEND_RATE", 0.2),
		OTPSendBurst:  parseInt("OTP_SEND_BURST", 3),
		WorkerCount:   parseInt("WORKER_CONCURRENCY", 4),

		StorageBackend: strings.ToLower(readEnv("STORAGE_BACKEND", "local")),
		UploadDir:      readEnv("UPLOAD_DIR", "./uploads"),
		PublicBaseURL:  readEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    readEnv("MINIO_BUCKET", "launchpad-receipts"),
		MinioUseSSL:    parseBool("MINIO_USE_SSL", false),
	}

	switch cfg.StorageBackend {
	case "local", "gcs", "minio":
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = defaultOTPTTL
	}
	return cfg, nil
}

// Connect opens the Postgres database. Driver errors are translated so
// unique violations surface as gorm.ErrDuplicatedKey.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
