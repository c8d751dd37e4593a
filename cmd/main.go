// cmd/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
	"github.com/rs/cors"

	"go_vocab_drill/internal/config"
	"go_vocab_drill/internal/explain"
	"go_vocab_drill/internal/handlers"
	"go_vocab_drill/internal/middleware"
	"go_vocab_drill/internal/progress"
	"go_vocab_drill/internal/remote"
	"go_vocab_drill/internal/repository"
	"go_vocab_drill/internal/service"
)

func main() {
	// 設定ファイル読み込み用の一時的なロガー
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	configDir := os.Getenv("APP_CONFIG_DIR")
	if configDir == "" {
		configDir = "configs"
	}
	if err := config.LoadConfig(configDir); err != nil {
		slog.Error("Error loading configuration", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := &config.Cfg

	logger := newLogger(cfg.Log.Level, os.Getenv("APP_ENV"))
	slog.SetDefault(logger)
	logger.Info("Application starting...", slog.String("app", config.AppName), slog.String("version", config.AppVersion))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mirror, closeMirror, err := newMirror(cfg, logger)
	if err != nil {
		logger.Error("Error initializing local mirror", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeMirror()

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Error initializing remote backend", slog.Any("error", err))
		os.Exit(1)
	}

	var explainer explain.Explainer
	if cfg.AI.AnthropicAPIKey != "" {
		ce, err := explain.NewClaudeExplainer(cfg.AI.AnthropicAPIKey, cfg.AI.Model)
		if err != nil {
			logger.Error("Error initializing explainer", slog.Any("error", err))
			os.Exit(1)
		}
		explainer = ce
	} else {
		logger.Info("Explanation disabled (no API key)")
	}

	sess, err := service.NewSession(service.SessionOptions{
		Mirror:    mirror,
		Seed:      repository.SeedEntries,
		Debounce:  cfg.Debounce(),
		Backend:   backend,
		Account:   cfg.App.AccountToken,
		BatchSize: cfg.Remote.BatchSize,
		Explainer: explainer,
		Plan:      progress.Plan{DailyTarget: cfg.App.DailyTarget, StartDate: cfg.StartDate()},
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Error creating session", slog.Any("error", err))
		os.Exit(1)
	}
	if err := sess.Start(ctx); err != nil {
		logger.Error("Error starting session", slog.Any("error", err))
		os.Exit(1)
	}
	if sess.Syncer != nil {
		sess.Syncer.OnStatus(func(st remote.Status, err error) {
			if err != nil {
				logger.Warn("Remote sync degraded", slog.String("status", string(st)), slog.Any("error", err))
			}
		})
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      newRouter(cfg, sess.Controller, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute, // 一括処理と解説生成は時間がかかる
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Server listening", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Could not listen on port", slog.String("port", cfg.Server.Port), slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.Any("error", err))
	}
	// 保留中のローカル書き込みをフラッシュしてからリモートを閉じる
	if err := sess.Close(shutdownCtx); err != nil {
		logger.Error("Error closing session", slog.Any("error", err))
	}
	logger.Info("Server exiting")
}

func newLogger(level, appEnv string) *slog.Logger {
	logLevel := new(slog.LevelVar)
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}

	var handler slog.Handler
	if strings.ToLower(appEnv) == "dev" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: logLevel, TimeFormat: time.RFC3339})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel, AddSource: true})
	}
	return slog.New(handler)
}

func newMirror(cfg *config.Config, logger *slog.Logger) (repository.Mirror, func(), error) {
	switch cfg.Storage.Mirror {
	case config.MirrorSQLite, config.MirrorPostgres:
		db, err := repository.NewDB(cfg.Storage.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if err := sqlDB.Close(); err != nil {
				logger.Error("Error closing database connection", slog.Any("error", err))
				return
			}
			logger.Info("Database connection closed.")
		}
		m, err := repository.NewGormMirror(db, logger)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		return m, closeDB, nil
	default:
		return repository.NewCSVMirror(cfg.Storage.CSVPath, logger), func() {}, nil
	}
}

func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (remote.Backend, error) {
	switch cfg.Remote.Backend {
	case config.BackendMemory:
		logger.Warn("Using in-process memory backend; remote data is lost on exit")
		return remote.NewMemoryBackend(), nil
	case config.BackendFirestore:
		b, err := remote.NewFirestoreBackend(ctx, cfg.Remote.FirestoreProject, cfg.Remote.CredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendRedis:
		b, err := remote.NewRedisBackend(ctx, cfg.Remote.RedisAddr, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendNone, "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
}

func newRouter(cfg *config.Config, svc service.EntryService, logger *slog.Logger) http.Handler {
	entryHandler := handlers.NewEntryHandler(svc, logger)
	reportHandler := handlers.NewReportHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}).Handler)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(90 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		entryHandler.Routes(r)
		r.Get("/progress", reportHandler.GetProgress)
		r.Get("/status", reportHandler.GetStatus)
	})
	r.Get("/health", reportHandler.Health)
	return r
}
