package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AWS       AWSConfig
	Recall    RecallConfig
	Google    GoogleConfig
	Sync      SyncConfig
	HostsFile string // optional YAML host roster; empty = built-in roster
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	RunWorker          bool   // process queued jobs in the server process
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/opsdash?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AWSConfig holds AWS credentials and the recordings archive bucket.
// An empty RecordingsBucket disables archiving.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	RecordingsBucket     string
	PresignExpireMinutes int
}

// RecallConfig holds meeting-bot provider settings.
type RecallConfig struct {
	APIKey         string
	Region         string
	BaseURL        string // defaults to https://{region}.recall.ai/api/v1
	BotName        string
	WebhookSecret  string // whsec_... ; empty disables signature checks
	RequestTimeout int    // seconds
}

// GoogleConfig holds OAuth client settings for calendar access.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	AppURL       string // public dashboard origin, e.g. https://ops.example.com
	StateSecret  string // signs the OAuth state parameter
}

// SyncConfig bounds the recording backfill that runs on every recordings listing.
type SyncConfig struct {
	AutoSyncLimit   int
	AutoSyncOverlap time.Duration
	FanOut          int           // concurrent provider calls per request
	SweepInterval   time.Duration // periodic status refresh + auto-sync in the worker; 0 disables
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

// RedirectURL is the OAuth callback registered with Google.
func (c GoogleConfig) RedirectURL() string {
	return strings.TrimRight(c.AppURL, "/") + "/api/auth/callback"
}

// DashboardURL is where the OAuth callback sends the browser back to.
func (c GoogleConfig) DashboardURL() string {
	return strings.TrimRight(c.AppURL, "/") + "/bot-grabacion"
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	region := getEnv("RECALL_REGION", "us-west-2")
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			RunWorker:          getEnvBool("RUN_WORKER", true),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "opsdash"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RecordingsBucket:     getEnv("AWS_S3_RECORDINGS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 60),
		},
		Recall: RecallConfig{
			APIKey:         getEnv("RECALL_API_KEY", ""),
			Region:         region,
			BaseURL:        getEnv("RECALL_BASE_URL", "https://"+region+".recall.ai/api/v1"),
			BotName:        getEnv("RECALL_BOT_NAME", "Möglich Bot"),
			WebhookSecret:  getEnv("RECALL_WEBHOOK_SECRET", ""),
			RequestTimeout: getEnvInt("RECALL_TIMEOUT_SEC", 20),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			AppURL:       getEnv("APP_URL", "http://localhost:3000"),
			StateSecret:  getEnv("OAUTH_STATE_SECRET", "change-me-in-production"),
		},
		Sync: SyncConfig{
			AutoSyncLimit:   getEnvInt("AUTOSYNC_LIMIT", 25),
			AutoSyncOverlap: time.Duration(getEnvInt("AUTOSYNC_OVERLAP_SEC", 600)) * time.Second,
			FanOut:          getEnvInt("PROVIDER_FANOUT", 8),
			SweepInterval:   time.Duration(getEnvInt("SWEEP_INTERVAL_SEC", 300)) * time.Second,
		},
		HostsFile: getEnv("HOSTS_FILE", ""),
	}
	if cfg.Recall.APIKey == "" {
		return nil, fmt.Errorf("RECALL_API_KEY is required")
	}
	return cfg, nil
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
