package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"todoapp/api/internal/app"
	"todoapp/api/internal/chat"
	"todoapp/api/internal/config"
	"todoapp/api/internal/events"
	"todoapp/api/internal/logging"
	"todoapp/api/internal/metrics"
	"todoapp/api/internal/search"
	"todoapp/api/internal/session"
	"todoapp/api/internal/store"
)

var (
	configPath string
	logLevel   string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "todoapi",
	Short:         "Owner-scoped todo API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Load()
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Apply migrations and serve the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()
		logger.Info("migrations applied", zap.String("driver", string(st.Dialect())))
		return nil
	},
}

var pruneSessionsCmd = &cobra.Command{
	Use:   "prune-sessions",
	Short: "Delete expired sessions from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()
		removed, err := st.DeleteExpiredSessions(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		logger.Info("expired sessions pruned", zap.Int64("removed", removed))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (env vars override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(pruneSessionsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore connects to the configured database and applies migrations.
func openStore(ctx context.Context) (*store.SQLStore, func(), error) {
	dialect, err := store.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := store.ApplyMigrations(ctx, db, dialect, store.MigrationsPath(cfg.MigrationsDir, dialect)); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations failed: %w", err)
	}
	return store.NewSQLStore(db, dialect), func() { _ = db.Close() }, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, closeDB, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	opts := []app.Option{app.WithLogger(logger)}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info("using redis for session storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisStore.Close()
		opts = append(opts, app.WithSessionStore(redisStore))
	} else {
		logger.Info("using database for session storage", zap.String("driver", string(st.Dialect())))
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
		opts = append(opts, app.WithSearchIndex(meiliClient))
	}

	if strings.TrimSpace(cfg.NATSURL) != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, app.WithPublisher(publisher))
	}

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		model, err := chat.NewGenAI(ctx, cfg.GeminiAPIKey, cfg.ChatModel)
		if err != nil {
			return fmt.Errorf("chat model init failed: %w", err)
		}
		opts = append(opts, app.WithChat(model))
		logger.Info("chat enabled", zap.String("model", model.Model()))
	}

	service := app.New(cfg, st, opts...)
	defer service.Wait()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin).WithMetrics(metrics.NewHTTP())
	// No WriteTimeout: chat responses stream until the model finishes.
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("todo api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}
