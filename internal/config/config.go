// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	CORS struct {
		AllowedOrigins   []string `mapstructure:"allowed_origins"`
		AllowedMethods   []string `mapstructure:"allowed_methods"`
		AllowedHeaders   []string `mapstructure:"allowed_headers"`
		ExposedHeaders   []string `mapstructure:"exposed_headers"`
		AllowCredentials bool     `mapstructure:"allow_credentials"`
		MaxAge           int      `mapstructure:"max_age"`
	} `mapstructure:"cors"`
	App struct {
		DailyTarget  int    `mapstructure:"daily_target"`
		StartDate    string `mapstructure:"start_date"`
		AccountToken string `mapstructure:"account_token"`
	} `mapstructure:"app"`
	Storage struct {
		Mirror      string `mapstructure:"mirror"`
		CSVPath     string `mapstructure:"csv_path"`
		DatabaseURL string `mapstructure:"database_url"`
	} `mapstructure:"storage"`
	Persistence struct {
		DebounceMs int `mapstructure:"debounce_ms"`
	} `mapstructure:"persistence"`
	Remote struct {
		Backend          string `mapstructure:"backend"`
		FirestoreProject string `mapstructure:"firestore_project"`
		CredentialsFile  string `mapstructure:"credentials_file"`
		RedisAddr        string `mapstructure:"redis_addr"`
		BatchSize        int    `mapstructure:"batch_size"`
	} `mapstructure:"remote"`
	AI struct {
		AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
		Model           string `mapstructure:"model"`
	} `mapstructure:"ai"`
}

var Cfg Config

// LoadConfig は path の config.yaml と APP_* 環境変数を読み込み、Cfg に設定します。
// 設定ファイルがなければデフォルト値と環境変数だけで動く。
func LoadConfig(path string) error {
	cfg, err := Load(path, time.Now())
	if err != nil {
		return err
	}
	Cfg = *cfg
	return nil
}

// Load は設定を読み込んで検証します。start_date 未指定時は now の日付を使う。
func Load(path string, now time.Time) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	// 例: APP_REMOTE_BACKEND=redis
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, now)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config.Load: read config: %w", err)
		}
		slog.Warn("Config file not found, using defaults and environment variables", slog.String("path", path))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: unmarshal: %w", err)
	}
	cfg.Storage.Mirror = strings.ToLower(strings.TrimSpace(cfg.Storage.Mirror))
	cfg.Remote.Backend = strings.ToLower(strings.TrimSpace(cfg.Remote.Backend))
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	slog.Info("Config loaded",
		slog.String("port", cfg.Server.Port),
		slog.String("mirror", cfg.Storage.Mirror),
		slog.String("remote", cfg.Remote.Backend),
		slog.Int("daily_target", cfg.App.DailyTarget),
		slog.String("start_date", cfg.App.StartDate),
		slog.Bool("ai_enabled", cfg.AI.AnthropicAPIKey != ""),
	)
	return &cfg, nil
}

func setDefaults(v *viper.Viper, now time.Time) {
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Content-Type", "X-Request-Id"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-Id"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)
	v.SetDefault("app.daily_target", DefaultDailyTarget)
	v.SetDefault("app.start_date", now.Format(DateLayout))
	v.SetDefault("app.account_token", DefaultAccount)
	v.SetDefault("storage.mirror", DefaultMirror)
	v.SetDefault("storage.csv_path", DefaultCSVPath)
	v.SetDefault("storage.database_url", "")
	v.SetDefault("persistence.debounce_ms", DefaultDebounceMs)
	v.SetDefault("remote.backend", DefaultBackend)
	v.SetDefault("remote.firestore_project", "")
	v.SetDefault("remote.credentials_file", "")
	v.SetDefault("remote.redis_addr", "localhost:6379")
	v.SetDefault("remote.batch_size", DefaultBatchSize)
	v.SetDefault("ai.anthropic_api_key", "")
	v.SetDefault("ai.model", "")
}

func (c *Config) validate() error {
	if c.App.DailyTarget <= 0 {
		return fmt.Errorf("app.daily_target must be positive, got %d", c.App.DailyTarget)
	}
	if _, err := time.Parse(DateLayout, c.App.StartDate); err != nil {
		return fmt.Errorf("app.start_date must be YYYY-MM-DD: %w", err)
	}
	if c.Remote.BatchSize < 1 || c.Remote.BatchSize > MaxBatchSize {
		return fmt.Errorf("remote.batch_size must be in 1..%d, got %d", MaxBatchSize, c.Remote.BatchSize)
	}
	if c.Persistence.DebounceMs <= 0 {
		return fmt.Errorf("persistence.debounce_ms must be positive, got %d", c.Persistence.DebounceMs)
	}
	if !slices.Contains([]string{MirrorCSV, MirrorSQLite, MirrorPostgres}, c.Storage.Mirror) {
		return fmt.Errorf("unknown storage.mirror %q", c.Storage.Mirror)
	}
	if c.Storage.Mirror == MirrorPostgres && c.Storage.DatabaseURL == "" {
		return errors.New("storage.database_url is required for postgres mirror")
	}
	switch c.Remote.Backend {
	case BackendNone, BackendMemory:
	case BackendFirestore:
		if c.Remote.FirestoreProject == "" {
			return errors.New("remote.firestore_project is required for firestore backend")
		}
	case BackendRedis:
		if c.Remote.RedisAddr == "" {
			return errors.New("remote.redis_addr is required for redis backend")
		}
	default:
		return fmt.Errorf("unknown remote.backend %q", c.Remote.Backend)
	}
	if c.Remote.Backend != BackendNone && strings.TrimSpace(c.App.AccountToken) == "" {
		return errors.New("app.account_token is required when a remote backend is configured")
	}
	return nil
}

// StartDate は計画の開始日 (UTC の暦日)
func (c *Config) StartDate() time.Time {
	t, _ := time.Parse(DateLayout, c.App.StartDate)
	return t
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Persistence.DebounceMs) * time.Millisecond
}
