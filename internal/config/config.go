package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Analyzer  AnalyzerConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	AnalyzePerHour int
	UploadPerHour  int
	ExportPerHour  int
}

// AnalyzerConfig addresses the remote analysis service. There is no default
// base URL baked into the client code; it must come from here.
type AnalyzerConfig struct {
	BaseURL      string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func Load() (*Config, error) {
	// Optional .env for local development
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("analyzer.base_url", "ANALYZER_BASE_URL")
	_ = viper.BindEnv("analyzer.poll_interval_ms", "ANALYZER_POLL_INTERVAL_MS")
	_ = viper.BindEnv("analyzer.poll_timeout_ms", "ANALYZER_POLL_TIMEOUT_MS")

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.analyze_per_hour", 20)
	viper.SetDefault("ratelimit.upload_per_hour", 50)
	viper.SetDefault("ratelimit.export_per_hour", 30)

	// Analyzer polling defaults: 3s between polls, 3 minute overall window
	viper.SetDefault("analyzer.poll_interval_ms", 3000)
	viper.SetDefault("analyzer.poll_timeout_ms", 180000)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			AnalyzePerHour: viper.GetInt("ratelimit.analyze_per_hour"),
			UploadPerHour:  viper.GetInt("ratelimit.upload_per_hour"),
			ExportPerHour:  viper.GetInt("ratelimit.export_per_hour"),
		},
		Analyzer: AnalyzerConfig{
			BaseURL:      viper.GetString("analyzer.base_url"),
			PollInterval: time.Duration(viper.GetInt("analyzer.poll_interval_ms")) * time.Millisecond,
			PollTimeout:  time.Duration(viper.GetInt("analyzer.poll_timeout_ms")) * time.Millisecond,
		},
	}

	return cfg, nil
}
