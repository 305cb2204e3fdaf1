package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	AWS         AWSConfig
	CalDAV      CalDAVConfig
	Credentials CredentialsConfig
	Sync        SyncConfig
	LogLevel    string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/ontour?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the calendar backup bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	BackupsBucket        string
	PresignExpireMinutes int
}

// CalDAVConfig holds outbound CalDAV client settings.
type CalDAVConfig struct {
	TimeoutSec int
}

// CredentialsConfig holds the secret material used to encrypt stored CalDAV passwords.
type CredentialsConfig struct {
	Secret string
	Salt   string
}

// SyncConfig controls background calendar sync.
type SyncConfig struct {
	Cron       string // robfig/cron spec, e.g. "*/15 * * * *"; SYNC_CRON=off disables the scheduler
	LockTTLSec int
	Inline     bool // worker runs syncs itself instead of reading the queue
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ontour"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BackupsBucket:        getEnv("AWS_S3_BACKUPS_BUCKET", "ontour-calendar-backups"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		CalDAV: CalDAVConfig{
			TimeoutSec: getEnvInt("CALDAV_TIMEOUT_SEC", 30),
		},
		Credentials: CredentialsConfig{
			Secret: getEnv("CREDENTIALS_SECRET", ""),
			Salt:   getEnv("CREDENTIALS_SALT", ""),
		},
		Sync: SyncConfig{
			Cron:       getEnv("SYNC_CRON", "*/15 * * * *"),
			LockTTLSec: getEnvInt("SYNC_LOCK_TTL_SEC", 300),
			Inline:     getEnvBool("SYNC_WORKER_INLINE", false),
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
	if strings.EqualFold(cfg.Sync.Cron, "off") {
		cfg.Sync.Cron = ""
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Credentials.Secret != "" && len(c.Credentials.Secret) < 8 {
		return fmt.Errorf("CREDENTIALS_SECRET must be at least 8 characters")
	}
	if c.Credentials.Salt != "" && len(c.Credentials.Salt) < 12 {
		return fmt.Errorf("CREDENTIALS_SALT must be at least 12 characters")
	}
	if c.Sync.LockTTLSec <= 0 {
		return fmt.Errorf("SYNC_LOCK_TTL_SEC must be positive")
	}
	return nil
}

// CredentialsSecret returns the secret used for stored CalDAV passwords, falling back to JWT_SECRET.
func (c *Config) CredentialsSecret() (secret, salt string) {
	secret, salt = c.Credentials.Secret, c.Credentials.Salt
	if secret == "" {
		secret = c.JWT.Secret
	}
	if salt == "" {
		salt = "ontour-caldav-credentials"
	}
	return secret, salt
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
