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

	"github.com/Brownie44l1/potato-api/internal/config"
	"github.com/Brownie44l1/potato-api/internal/handlers"
	"github.com/Brownie44l1/potato-api/internal/model"
	"github.com/Brownie44l1/potato-api/internal/preprocess"
	"github.com/sirupsen/logrus"
)

// @title Potato Disease Classification API
// @version 1.0
// @description Classifies potato leaf images as Early Blight, Late Blight or Healthy.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		logrus.Fatalf("logger error: %v", err)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format {%s}", cfg.Format)
	}
	return logger, nil
}

// run loads the model before anything listens. A load error returns
// immediately, so /predict is never reachable without a model.
func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	predictor, err := model.Open(ctx, cfg.Model, len(cfg.ClassNames), logger)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer func() {
		if err := predictor.Close(); err != nil {
			logger.WithError(err).Warn("failed to release model")
		}
	}()

	decoder := preprocess.NewDecoder()
	decoder.MaxPixels = cfg.Server.MaxImagePixels

	h := handlers.NewHandler(predictor, decoder,
		model.Labels(cfg.ClassNames), cfg.Server.MaxUploadBytes, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: handlers.NewRouter(h, cfg.CORS, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		logger.WithField("classes", cfg.ClassNames).Infof("server started %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
