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
	Database  DatabaseConfig
	Server    ServerConfig
	Logger    LoggerConfig
	Scheduler SchedulerConfig
	Cache     CacheConfig
	GeoIP     GeoIPConfig
	Live      LiveConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	RateLimit      int
	RateWindow     time.Duration
	AllowedOrigins []string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SchedulerConfig struct {
	Enabled         bool
	ArchiveSchedule string
	EnrichSchedule  string
	DBStatsSchedule string
	JobTimeout      time.Duration
}

type CacheConfig struct {
	SiteTTL     time.Duration
	MaxSiteKeys int
}

type GeoIPConfig struct {
	DBPath    string
	BatchSize int
	Lookback  time.Duration
}

type LiveConfig struct {
	DefaultLimit int
	MaxLimit     int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env file doesn't exist in production
	}

	port, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	serverPort, err := getEnvInt("SERVER_PORT", 4623)
	if err != nil {
		return nil, err
	}
	maxOpen, err := getEnvInt("DB_MAX_OPEN_CONNS", 20)
	if err != nil {
		return nil, err
	}
	maxIdle, err := getEnvInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getEnvInt("RATE_LIMIT", 120)
	if err != nil {
		return nil, err
	}
	siteKeys, err := getEnvInt("SITE_CACHE_MAX_KEYS", 10000)
	if err != nil {
		return nil, err
	}
	batchSize, err := getEnvInt("GEOIP_BATCH_SIZE", 500)
	if err != nil {
		return nil, err
	}
	defaultLimit, err := getEnvInt("LIVE_DEFAULT_LIMIT", 20)
	if err != nil {
		return nil, err
	}
	maxLimit, err := getEnvInt("LIVE_MAX_LIMIT", 1000)
	if err != nil {
		return nil, err
	}

	connLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	rateWindow, err := getEnvDuration("RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	jobTimeout, err := getEnvDuration("JOB_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	siteTTL, err := getEnvDuration("SITE_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	lookback, err := getEnvDuration("GEOIP_LOOKBACK", 48*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            port,
			User:            getEnv("DB_USER", "geoipmap"),
			Password:        getEnv("DB_PASSWORD", "geoipmap"),
			DBName:          getEnv("DB_NAME", "analytics"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: connLifetime,
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           serverPort,
			RequestTimeout: requestTimeout,
			RateLimit:      rateLimit,
			RateWindow:     rateWindow,
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getEnvBool("SCHEDULER_ENABLED", true),
			ArchiveSchedule: getEnv("ARCHIVE_SCHEDULE", "5 * * * *"),
			EnrichSchedule:  getEnv("ENRICH_SCHEDULE", "*/5 * * * *"),
			DBStatsSchedule: getEnv("DB_STATS_SCHEDULE", "* * * * *"),
			JobTimeout:      jobTimeout,
		},
		Cache: CacheConfig{
			SiteTTL:     siteTTL,
			MaxSiteKeys: siteKeys,
		},
		GeoIP: GeoIPConfig{
			DBPath:    os.Getenv("GEOIP_DB_PATH"),
			BatchSize: batchSize,
			Lookback:  lookback,
		},
		Live: LiveConfig{
			DefaultLimit: defaultLimit,
			MaxLimit:     maxLimit,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Live.DefaultLimit < 1 {
		return fmt.Errorf("LIVE_DEFAULT_LIMIT must be positive, got %d", c.Live.DefaultLimit)
	}
	if c.Live.MaxLimit < c.Live.DefaultLimit {
		return fmt.Errorf("LIVE_MAX_LIMIT (%d) must be >= LIVE_DEFAULT_LIMIT (%d)", c.Live.MaxLimit, c.Live.DefaultLimit)
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("RATE_LIMIT must be positive, got %d", c.Server.RateLimit)
	}
	if c.Server.RateWindow <= 0 {
		return fmt.Errorf("RATE_WINDOW must be positive, got %v", c.Server.RateWindow)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.Server.RequestTimeout)
	}
	if c.GeoIP.BatchSize < 1 {
		return fmt.Errorf("GEOIP_BATCH_SIZE must be positive, got %d", c.GeoIP.BatchSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
