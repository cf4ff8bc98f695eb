package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the chat sidecar.
type Config struct {
	App      AppConfig
	Chat     ChatConfig
	Media    MediaConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// ChatConfig points the sidecar at the remote chat backend.
type ChatConfig struct {
	WSURL                    string
	APIURL                   string
	ReconnectMaxAttempts     int
	ReconnectBaseDelayMS     int
	ReconnectMaxDelayMS      int
	ConnectTimeoutSeconds    int
	CorrelationWindowSeconds int
	SendRatePerSecond        int
	APITimeoutSeconds        int
	TicketCacheTTLSeconds    int
}

// MediaConfig selects and configures the attachment backend.
type MediaConfig struct {
	Backend              string
	UploadURL            string
	UploadTimeoutSeconds int
	S3Bucket             string
	S3Region             string
	S3Prefix             string
	// LocalRoot limits which device files may be attached. Empty allows any.
	LocalRoot string
}

const (
	MediaBackendHTTP = "http"
	MediaBackendS3   = "s3"
)

// PostgresConfig holds DB connection values. An empty DSN disables the archive.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Format      string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "storefront-chat"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "8090"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
		},
		Chat: ChatConfig{
			WSURL:                    getEnv("CHAT_WS_URL", "ws://127.0.0.1:3000/chat"),
			APIURL:                   getEnv("CHAT_API_URL", "http://127.0.0.1:3000/api/chat"),
			ReconnectMaxAttempts:     getEnvAsInt("CHAT_RECONNECT_MAX_ATTEMPTS", 5),
			ReconnectBaseDelayMS:     getEnvAsInt("CHAT_RECONNECT_BASE_DELAY_MS", 1000),
			ReconnectMaxDelayMS:      getEnvAsInt("CHAT_RECONNECT_MAX_DELAY_MS", 30000),
			ConnectTimeoutSeconds:    getEnvAsInt("CHAT_CONNECT_TIMEOUT_SECONDS", 15),
			CorrelationWindowSeconds: getEnvAsInt("CHAT_CORRELATION_WINDOW_SECONDS", 10),
			SendRatePerSecond:        getEnvAsInt("CHAT_SEND_RATE_PER_SECOND", 0),
			APITimeoutSeconds:        getEnvAsInt("CHAT_API_TIMEOUT_SECONDS", 10),
			TicketCacheTTLSeconds:    getEnvAsInt("CHAT_TICKET_CACHE_TTL_SECONDS", 30),
		},
		Media: MediaConfig{
			Backend:              strings.ToLower(getEnv("MEDIA_BACKEND", MediaBackendHTTP)),
			UploadURL:            getEnv("MEDIA_UPLOAD_URL", "http://127.0.0.1:3000/api/upload"),
			UploadTimeoutSeconds: getEnvAsInt("MEDIA_UPLOAD_TIMEOUT_SECONDS", 30),
			S3Bucket:             os.Getenv("MEDIA_S3_BUCKET"),
			S3Region:             getEnv("MEDIA_S3_REGION", "us-east-1"),
			S3Prefix:             getEnv("MEDIA_S3_PREFIX", "chat-attachments"),
			LocalRoot:            os.Getenv("MEDIA_LOCAL_ROOT"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
	}

	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if err := checkURL("CHAT_WS_URL", c.Chat.WSURL, "ws", "wss"); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("CHAT_API_URL", c.Chat.APIURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if c.Chat.ReconnectMaxAttempts < 0 {
		errs = append(errs, errors.New("CHAT_RECONNECT_MAX_ATTEMPTS must not be negative"))
	}
	if c.Chat.ReconnectBaseDelayMS <= 0 || c.Chat.ReconnectMaxDelayMS < c.Chat.ReconnectBaseDelayMS {
		errs = append(errs, errors.New("CHAT_RECONNECT_MAX_DELAY_MS must be >= CHAT_RECONNECT_BASE_DELAY_MS > 0"))
	}
	switch c.Media.Backend {
	case MediaBackendHTTP:
		if err := checkURL("MEDIA_UPLOAD_URL", c.Media.UploadURL, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	case MediaBackendS3:
		if c.Media.S3Bucket == "" {
			errs = append(errs, errors.New("MEDIA_S3_BUCKET is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MEDIA_BACKEND %q", c.Media.Backend))
	}
	if c.Media.LocalRoot != "" && !filepath.IsAbs(c.Media.LocalRoot) {
		errs = append(errs, errors.New("MEDIA_LOCAL_ROOT must be an absolute path"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

func (c ChatConfig) ReconnectBaseDelay() time.Duration {
	return time.Duration(c.ReconnectBaseDelayMS) * time.Millisecond
}

func (c ChatConfig) ReconnectMaxDelay() time.Duration {
	return time.Duration(c.ReconnectMaxDelayMS) * time.Millisecond
}

func (c ChatConfig) ConnectTimeout() time.Duration {
	return seconds(c.ConnectTimeoutSeconds)
}

func (c ChatConfig) CorrelationWindow() time.Duration {
	return seconds(c.CorrelationWindowSeconds)
}

func (c ChatConfig) APITimeout() time.Duration {
	return seconds(c.APITimeoutSeconds)
}

func (c ChatConfig) TicketCacheTTL() time.Duration {
	return seconds(c.TicketCacheTTLSeconds)
}

func (m MediaConfig) UploadTimeout() time.Duration {
	return seconds(m.UploadTimeoutSeconds)
}

// AccessTokenTTL returns the lifetime of tokens issued by the token command.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func checkURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s is not a valid URL: %q", name, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use one of %v", name, schemes)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
