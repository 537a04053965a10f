// Package config は環境変数からアプリケーション設定を読み込みます。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

// Config はサーバーの起動に必要な設定値です。
type Config struct {
	DBDriver string
	DBUser   string
	DBPass   string
	DBHost   string
	DBPort   string
	DBName   string

	SQLitePath string

	RedisURL string
	CacheTTL time.Duration

	Port         string
	AllowOrigins []string

	LogLevel  string
	LogFormat string
}

// Load は .env ファイル (存在すれば) と環境変数から Config を構築します。
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// .env が無い環境 (Docker など) では環境変数だけを使う
		if err := godotenv.Load(f); err != nil {
			log.WithField("file", f).Debug("env file not loaded")
		}
	}

	cfg := &Config{
		DBDriver:     getEnv("DB_DRIVER", DriverMySQL),
		DBUser:       os.Getenv("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       getEnv("DB_HOST", "127.0.0.1"),
		DBPort:       getEnv("DB_PORT", "3306"),
		DBName:       os.Getenv("DB_NAME"),
		SQLitePath:   getEnv("SQLITE_PATH", "todos.db"),
		RedisURL:     os.Getenv("REDIS_URL"),
		CacheTTL:     time.Minute,
		Port:         getEnv("PORT", "8080"),
		AllowOrigins: splitList(getEnv("ALLOW_ORIGINS", "http://localhost:3000")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid CACHE_TTL %q", v)
		}
		cfg.CacheTTL = d
	}

	switch cfg.DBDriver {
	case DriverMySQL:
		if cfg.DBUser == "" || cfg.DBName == "" {
			return nil, fmt.Errorf("missing database config: DB_USER and DB_NAME are required")
		}
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	return cfg, nil
}

// DSN は設定されたドライバー用の接続文字列を返します。
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return c.SQLitePath
	}
	// 例: user:pass@tcp(db:3306)/dbname?parseTime=true&loc=UTC
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC", c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

// Addr は HTTP サーバーの待ち受けアドレスです。
func (c *Config) Addr() string {
	return ":" + c.Port
}

// ConfigureLogger は LOG_LEVEL と LOG_FORMAT を logrus に反映します。
func (c *Config) ConfigureLogger(logger *log.Logger) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)

	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
