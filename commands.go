package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"p9e.in/launchpad/config"
	"p9e.in/launchpad/handlers"
	"p9e.in/launchpad/middleware"
	"p9e.in/launchpad/pkg/logger"
	"p9e.in/launchpad/pkg/otp"
	"p9e.in/launchpad/pkg/storage"
	"p9e.in/launchpad/pkg/workflow"
	"p9e.in/launchpad/routes"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "launchpad",
		Version: Version,
	})
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	log := newLogger(cfg)

	db, err := config.Connect(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := config.Migrations(db); err != nil {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	var (
		codes  otp.Store
		sender otp.Sender
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		queue := asynq.NewClient(redisOpt(cfg))
		defer queue.Close()
		codes = otp.NewRedisStore(rdb, cfg.OTPTTL)
		sender = otp.NewQueueSender(queue)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, keeping otp codes in memory and logging them")
		codes = otp.NewMemoryStore(cfg.OTPTTL)
		sender = otp.NewLogSender(log)
	}

	receipts, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	uploadDir := ""
	if local, ok := receipts.(*storage.LocalStore); ok {
		uploadDir = local.Dir()
	}

	auth := middleware.NewAuth(cfg.JWTSecret, cfg.SessionTTL, cfg.CookieSecure)
	h := handlers.New(handlers.Deps{
		DB:       db,
		Services: workflow.NewServices(db, log),
		Auth:     auth,
		OTP:      codes,
		Sender:   sender,
		OTPTTL:   cfg.OTPTTL,
		Receipts: receipts,
		Log:      log,
	})
	router := routes.RegisterRoutes(h, auth, routes.Options{
		CORSOrigin: cfg.CORSOrigin,
		OTPLimiter: middleware.NewRateLimiter(cfg.OTPSendRate, cfg.OTPSendBurst),
		UploadDir:  uploadDir,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	db, err := config.Connect(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := config.Migrations(db); err != nil {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	log.Info().Msg("migrations applied")

	if seedFlag {
		if err := config.SeedUsers(db); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		log.Info().Msg("seeding complete")
	}
	return nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required for the worker")
	}
	log := newLogger(cfg)

	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.WorkerCount,
	})
	processor := otp.NewProcessor(otp.LogMailer{Log: log}, log)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info().Int("concurrency", cfg.WorkerCount).Msg("worker starting")
	if err := server.Run(processor.Handler()); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	return nil
}
