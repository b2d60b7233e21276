package common

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Backend BackendConfig
	Storage StorageConfig
	Watch   WatchConfig
	Log     LogConfig
	Mock    MockConfig
}

// BackendConfig holds the doffice backend endpoints
type BackendConfig struct {
	APIURL      string
	WSURL       string
	HTTPTimeout time.Duration
	DialTimeout time.Duration
}

// StorageConfig holds local persistence configuration
type StorageConfig struct {
	DataDir    string
	HistoryDSN string
}

// WatchConfig holds the watch daemon configuration
type WatchConfig struct {
	Dirs       []string
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	Debounce   time.Duration
	GRPCAddr   string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// MockConfig holds the mock backend configuration
type MockConfig struct {
	Addr         string
	JWTSecret    string
	TokenTTL     time.Duration
	ProcessDelay time.Duration
}

const (
	defaultAPIURL = "https://doffice-backend.onrender.com/api/v1"
	defaultWSURL  = "wss://doffice-backend.onrender.com/api/v1"
)

// LoadDotEnv loads a .env file from the working directory when one exists.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return WrapError(err, "load .env")
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	dataDir := getEnv("DOFFICE_DATA_DIR", defaultDataDir())
	apiURL := strings.TrimRight(getEnv("DOFFICE_API_URL", defaultAPIURL), "/")
	return &Config{
		Backend: BackendConfig{
			APIURL:      apiURL,
			WSURL:       strings.TrimRight(getEnv("DOFFICE_WS_URL", deriveWSURL(apiURL)), "/"),
			HTTPTimeout: getEnvAsDuration("DOFFICE_HTTP_TIMEOUT", 60*time.Second),
			DialTimeout: getEnvAsDuration("DOFFICE_DIAL_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			DataDir:    dataDir,
			HistoryDSN: getEnv("DOFFICE_HISTORY_DSN", filepath.Join(dataDir, "history.db")),
		},
		Watch: WatchConfig{
			Dirs:       getEnvAsList("DOFFICE_WATCH_DIRS"),
			Workers:    getEnvAsInt("DOFFICE_WORKERS", 2),
			QueueSize:  getEnvAsInt("DOFFICE_QUEUE_SIZE", 64),
			JobTimeout: getEnvAsDuration("DOFFICE_JOB_TIMEOUT", 5*time.Minute),
			Debounce:   getEnvAsDuration("DOFFICE_WATCH_DEBOUNCE", 500*time.Millisecond),
			GRPCAddr:   getEnv("DOFFICE_GRPC_ADDR", ":8090"),
		},
		Log: LogConfig{
			Level:  getEnv("DOFFICE_LOG_LEVEL", "info"),
			Format: getEnv("DOFFICE_LOG_FORMAT", "text"),
		},
		Mock: MockConfig{
			Addr:         getEnv("MOCK_ADDR", ":8000"),
			JWTSecret:    getEnv("MOCK_JWT_SECRET", "dev-secret"),
			TokenTTL:     getEnvAsDuration("MOCK_TOKEN_TTL", 24*time.Hour),
			ProcessDelay: getEnvAsDuration("MOCK_PROCESS_DELAY", 300*time.Millisecond),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, string(os.PathListSeparator)) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "doffice")
	}
	return "./data"
}

// deriveWSURL maps http(s) to ws(s) so a single DOFFICE_API_URL is enough.
func deriveWSURL(apiURL string) string {
	switch {
	case strings.HasPrefix(apiURL, "https://"):
		return "wss://" + strings.TrimPrefix(apiURL, "https://")
	case strings.HasPrefix(apiURL, "http://"):
		return "ws://" + strings.TrimPrefix(apiURL, "http://")
	}
	return defaultWSURL
}

// LogLevel parses the configured level, defaulting to info.
func (c LogConfig) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Backend.APIURL == "" {
		return NewAppError(CodeConfig, "DOFFICE_API_URL is required", ErrInvalidInput)
	}
	if !strings.HasPrefix(c.Backend.WSURL, "ws://") && !strings.HasPrefix(c.Backend.WSURL, "wss://") {
		return NewAppError(CodeConfig, "DOFFICE_WS_URL must use ws:// or wss://", ErrInvalidInput)
	}
	if c.Storage.DataDir == "" {
		return NewAppError(CodeConfig, "DOFFICE_DATA_DIR is required", ErrInvalidInput)
	}
	return nil
}

// ValidateWatch validates the settings only the watch daemon needs.
func (c *Config) ValidateWatch() error {
	if len(c.Watch.Dirs) == 0 {
		return NewAppError(CodeConfig, "DOFFICE_WATCH_DIRS is required", ErrInvalidInput)
	}
	if c.Watch.Workers < 1 {
		return NewAppError(CodeConfig, "DOFFICE_WORKERS must be at least 1", ErrInvalidInput)
	}
	return nil
}
