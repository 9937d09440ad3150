package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpRouter "rate-cache-service/internal/adapter/http"
	"rate-cache-service/internal/domain/ports"
	"rate-cache-service/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		log := a.log
		log.Info("Starting rate cache service")

		handler := httpRouter.NewHandler(a.service, log, a.metrics)
		router := httpRouter.NewRouter(handler, log, a.metrics, a.registry)

		server := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router.SetupRoutes(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		if cfg.QuoteAPI.RefreshInterval > 0 {
			go refreshRates(ctx, a.service, cfg.QuoteAPI.RefreshInterval, log)
		}

		serverErr := make(chan error, 1)
		go func() {
			log.Info("Starting HTTP server", "port", cfg.Server.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()

		select {
		case err := <-serverErr:
			return fmt.Errorf("http server: %w", err)
		case <-ctx.Done():
		}
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info("Server exited")
		return nil
	},
}

// refreshRates refetches every cached pair once at startup and then on each
// tick until ctx is done.
func refreshRates(ctx context.Context, service ports.ExchangeService, interval time.Duration, log *logger.Logger) {
	if err := service.RefreshRates(ctx); err != nil {
		log.Error("Failed to refresh rates at startup", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := service.RefreshRates(ctx); err != nil {
				log.Error("Failed to refresh rates", "error", err)
			}
		case <-ctx.Done():
			log.Info("Stopping rate refresh goroutine")
			return
		}
	}
}
