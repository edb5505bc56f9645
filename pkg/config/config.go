package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Gradebook GradebookConfig
	Recap     RecapConfig
	Reports   ReportsConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GradebookConfig holds the term used when a request does not name one.
type GradebookConfig struct {
	DefaultSemester     string
	DefaultAcademicYear string
	MaxBulkEntries      int
}

// RecapConfig governs caching of computed class recaps.
type RecapConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	WarmOnWrite  bool
	WarmWorkers  int
	DashboardTTL time.Duration
}

// ReportsConfig configures the printable recap export.
type ReportsConfig struct {
	SchoolName string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		SQLitePath:   v.GetString("DB_SQLITE_PATH"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxBulk := v.GetInt("GRADEBOOK_MAX_BULK_ENTRIES")
	if maxBulk <= 0 {
		maxBulk = 500
	}
	cfg.Gradebook = GradebookConfig{
		DefaultSemester:     v.GetString("GRADEBOOK_DEFAULT_SEMESTER"),
		DefaultAcademicYear: v.GetString("GRADEBOOK_DEFAULT_ACADEMIC_YEAR"),
		MaxBulkEntries:      maxBulk,
	}

	cfg.Recap = RecapConfig{
		CacheEnabled: v.GetBool("RECAP_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("RECAP_CACHE_TTL"), 5*time.Minute),
		WarmOnWrite:  v.GetBool("RECAP_WARM_ON_WRITE"),
		WarmWorkers:  v.GetInt("RECAP_WARM_WORKERS"),
		DashboardTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), time.Minute),
	}

	cfg.Reports = ReportsConfig{
		SchoolName: v.GetString("REPORTS_SCHOOL_NAME"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_gradebook")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "gradebook.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRADEBOOK_DEFAULT_SEMESTER", "1")
	v.SetDefault("GRADEBOOK_DEFAULT_ACADEMIC_YEAR", "2024/2025")
	v.SetDefault("GRADEBOOK_MAX_BULK_ENTRIES", 500)

	v.SetDefault("RECAP_CACHE_ENABLED", true)
	v.SetDefault("RECAP_CACHE_TTL", "5m")
	v.SetDefault("RECAP_WARM_ON_WRITE", true)
	v.SetDefault("RECAP_WARM_WORKERS", 2)
	v.SetDefault("DASHBOARD_CACHE_TTL", "1m")

	v.SetDefault("REPORTS_SCHOOL_NAME", "SMP/MA")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
