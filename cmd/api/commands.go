package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-todo-app/internal/config"
	"go-todo-app/internal/database"
	"go-todo-app/internal/repositories"
	"go-todo-app/internal/routes"
	"go-todo-app/internal/services"
)

// rootOptions はすべてのサブコマンドに共通のフラグです。
type rootOptions struct {
	envFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "todo-api",
		Short:         "Todo REST API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to a .env file (optional)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the schema and start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the todos table and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()
			log.WithField("driver", cfg.DBDriver).Info("schema is up to date")
			return nil
		},
	}
}

// setup は設定を読み込み、DBに接続してマイグレーションを実行します。
func setup(ctx context.Context, opts *rootOptions) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ConfigureLogger(log.StandardLogger()); err != nil {
		return nil, nil, err
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		db.Close()
		return nil, nil, err
	}
	return cfg, db, nil
}

// buildStore は REDIS_URL が設定されていればキャッシュ付きのストアを返します。
func buildStore(ctx context.Context, cfg *config.Config, db *sql.DB) (services.TodoStore, func(), error) {
	repo := repositories.NewTodoRepository(db)
	if cfg.RedisURL == "" {
		return repo, func() {}, nil
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// キャッシュが落ちていてもDBだけで動作する
		log.WithError(err).Warn("redis is unreachable, todo list will be read from the database")
	} else {
		log.WithField("ttl", cfg.CacheTTL).Info("todo list cache enabled")
	}

	return repositories.NewCachedTodoRepository(repo, rdb, cfg.CacheTTL), func() { rdb.Close() }, nil
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, db, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := buildStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.SetupRouter(routes.Deps{
		DB:           db,
		TodoStore:    store,
		Logger:       log.StandardLogger(),
		AllowOrigins: cfg.AllowOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
