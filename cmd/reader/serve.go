package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"articlewave/internal/config"
	"articlewave/internal/controller"
	"articlewave/internal/fetcher"
	"articlewave/internal/imagecache"
	"articlewave/internal/logger"
	"articlewave/internal/metrics"
	"articlewave/internal/models"
	"articlewave/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reader and its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg *config.Config) error {
	defer logger.Log.Info("Application stopped")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, release, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cache := imagecache.New(
		imagecache.NewHTTPTransport(cfg.Timeout()),
		imagecache.WithMetrics(m),
		imagecache.WithDecoder(imagecache.StdDecoder{MaxPixels: cfg.ImageCache.MaxPixels}),
		imagecache.WithMaxEntries(cfg.ImageCache.MaxEntries),
		imagecache.WithMaxBytes(cfg.ImageCache.MaxBytes),
	)
	ctrl := controller.New(source, cache,
		controller.WithCountry(cfg.DefaultCountry),
		controller.WithDiscardStale(cfg.DiscardStaleResponses),
		controller.WithMetrics(m),
	)

	if _, err := ctrl.Subscribe("log", func(s models.FetchState) {
		logger.Log.WithField("state", s.Kind.String()).Debug("List state changed")
	}); err != nil {
		return err
	}

	ctrl.SelectCountry(cfg.DefaultCountry)
	go fetcher.StartPolling(ctx, ctrl, cfg.Refresh())

	srv := server.NewServer(ctrl, cache, cfg.Countries)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.WithField("source", cfg.Source).Infof("Starting HTTP server on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Log.Errorf("Server error: %v", err)
		}
	}

	logger.Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var shutdownErr error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if err := ctrl.Close(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if err := cache.Close(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	return shutdownErr
}
