package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitstack/internal/config"
	"github.com/habitstack/internal/db"
	"github.com/habitstack/internal/handler"
	"github.com/habitstack/internal/lock"
	"github.com/habitstack/internal/logger"
	"github.com/habitstack/internal/router"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "habitstack",
		Short:         "Habit stack tracking API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			log.Info("migration complete", "dialect", store.Dialect())
			return nil
		},
	}
}

func bootstrap() (config.AppConfig, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.AppConfig{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return config.AppConfig{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

// openStore 打开存储并执行迁移
func openStore(cfg config.AppConfig, log *logger.Logger) (*db.Store, error) {
	store, err := db.Open(db.Options{
		URL:     cfg.DatabaseURL,
		Name:    cfg.DatabaseName,
		Timeout: cfg.StoreTimeout,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	log.Info("store initialized", "dialect", store.Dialect(), "db_name", cfg.DatabaseName)
	return store, nil
}

// newLocker 按配置构造 stack 锁，返回的 closer 总是非 nil
func newLocker(cfg config.AppConfig) (lock.Locker, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StackLock {
	case config.LockRedis:
		locker, err := lock.NewRedisLocker(cfg.RedisAddr, cfg.LockTTL)
		if err != nil {
			return nil, noop, err
		}
		return locker, locker.Close, nil
	case config.LockNone:
		return lock.Noop{}, noop, nil
	default:
		return lock.NewKeyedMutex(), noop, nil
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("configuration loaded", "listen_addr", cfg.ListenAddr, "stack_lock", cfg.StackLock)

	gin.SetMode(cfg.GinMode)

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		store.Close()
		return fmt.Errorf("init stack lock: %w", err)
	}

	api := handler.NewAPI(store, locker, log)
	r := router.SetupRouter(api, router.Options{CORSOrigins: cfg.CORSOrigins, Logger: log})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "address", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown initiated")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("serve http: %w", err)
		}
		log.Info("shutdown initiated after server exit")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// 先停 HTTP，再关锁和存储
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := closeLocker(); err != nil {
		log.Error("lock close error", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("store close error", "error", err)
	}

	log.Info("shutdown complete")
	return runErr
}
