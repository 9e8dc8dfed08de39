package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dosada05/tennis-tournament/config"
	"github.com/Dosada05/tennis-tournament/handlers"
	"github.com/Dosada05/tennis-tournament/hub"
	"github.com/Dosada05/tennis-tournament/repositories"
	"github.com/Dosada05/tennis-tournament/routes"
	"github.com/Dosada05/tennis-tournament/services"
	"github.com/Dosada05/tennis-tournament/storage"
	"github.com/Dosada05/tennis-tournament/utils"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("store_driver", cfg.StoreDriver),
	)

	stores, err := repositories.Open(ctx, cfg, true)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		} else {
			logger.Info("store closed")
		}
	}()
	logger.Info("store ready", slog.String("driver", cfg.StoreDriver))

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	wsHub := hub.NewHub(logger)
	go wsHub.Run(hubCtx)

	var mailer services.Notifier = services.LogNotifier{Logger: logger}
	if cfg.SMTP.Enabled() {
		mailer = services.NewEmailService(cfg.SMTP)
		logger.Info("smtp notifications enabled", slog.String("host", cfg.SMTP.Host))
	} else {
		logger.Warn("SMTP is not configured, notifications are only logged")
	}
	notifier := notifierChain(wsHub, mailer)

	var uploader storage.FileUploader
	if cfg.R2.Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, cfg.R2)
		if err != nil {
			return fmt.Errorf("init export archive: %w", err)
		}
		logger.Info("export archive enabled", slog.String("bucket", cfg.R2.BucketName))
	}

	userService := services.NewUserService(stores.Users, utils.NewBcryptHasher(cfg.BcryptCost), notifier, logger)
	matchService := services.NewMatchService(stores.Matches, stores.Users, uploader, logger)

	router := routes.SetupRoutes(routes.Handlers{
		Auth:      handlers.NewAuthHandler(userService, cfg.JWTSecretKey, cfg.JWTTTL),
		Users:     handlers.NewUserHandler(userService),
		Matches:   handlers.NewMatchHandler(matchService),
		WebSocket: handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins, logger),
	}, routes.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}

	stopHub()
	logger.Info("application exited")
	return nil
}

// notifierChain delivers to connected websocket clients before mail, so an
// SMTP failure cannot hold back live notifications.
func notifierChain(wsHub *hub.Hub, mailer services.Notifier) services.MultiNotifier {
	return services.MultiNotifier{hub.Notifier{Hub: wsHub}, mailer}
}
