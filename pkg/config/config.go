package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Auth      AuthConfig
	Bootstrap BootstrapConfig
	Analysis  AnalysisConfig
	Push      PushConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig carries the statically configured site admin set, the htpasswd
// file used for password verification and the login whitelist toggle.
type AuthConfig struct {
	SiteAdmins         []string
	HtpasswdFile       string
	IPWhitelistEnabled bool
}

// BootstrapConfig controls first-boot database seeding.
type BootstrapConfig struct {
	SeedCurrentYear bool
	TruncateOnStart bool
}

// AnalysisConfig governs the optional result cache for analysis endpoints.
type AnalysisConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// PushConfig tunes the change-notification fan-out.
type PushConfig struct {
	Enabled    bool
	BufferSize int
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Auth = AuthConfig{
		SiteAdmins:         splitAndTrim(v.GetString("SITE_ADMINS")),
		HtpasswdFile:       v.GetString("HTPASSWD_FILE"),
		IPWhitelistEnabled: v.GetBool("IP_WHITELIST_ENABLED"),
	}

	cfg.Bootstrap = BootstrapConfig{
		SeedCurrentYear: v.GetBool("SEED_CURRENT_YEAR"),
		TruncateOnStart: v.GetBool("TRUNCATE_ON_START"),
	}

	cfg.Analysis = AnalysisConfig{
		CacheEnabled: v.GetBool("ENABLE_ANALYSIS_CACHE"),
		CacheTTL:     parseDuration(v.GetString("ANALYSIS_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Push = PushConfig{
		Enabled:    v.GetBool("ENABLE_PUSH"),
		BufferSize: v.GetInt("PUSH_BUFFER_SIZE"),
	}

	if len(cfg.Auth.SiteAdmins) == 0 {
		return nil, errors.New("at least one site admin must be configured via SITE_ADMINS")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "labtrack")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SITE_ADMINS", "")
	v.SetDefault("HTPASSWD_FILE", "./htpasswd")
	v.SetDefault("IP_WHITELIST_ENABLED", false)

	v.SetDefault("SEED_CURRENT_YEAR", true)
	v.SetDefault("TRUNCATE_ON_START", false)

	v.SetDefault("ENABLE_ANALYSIS_CACHE", false)
	v.SetDefault("ANALYSIS_CACHE_TTL", "2m")

	v.SetDefault("ENABLE_PUSH", true)
	v.SetDefault("PUSH_BUFFER_SIZE", 16)
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
