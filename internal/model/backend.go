package model

import (
	"context"
	"fmt"
	"time"

	"github.com/Brownie44l1/potato-api/internal/config"
	"github.com/Brownie44l1/potato-api/internal/metrics"
	"github.com/Brownie44l1/potato-api/internal/preprocess"
	"github.com/sirupsen/logrus"
)

// Predictor returns one score vector per batch element.
type Predictor interface {
	Predict(ctx context.Context, batch *preprocess.Batch) ([][]float32, error)
	Close() error
}

// Open loads the configured backend. It is called once at startup and any
// error is meant to stop the process.
func Open(ctx context.Context, cfg config.ModelConfig, classes int, logger logrus.FieldLogger) (Predictor, error) {
	logger = logger.WithField("backend", cfg.Backend)
	logger.Info("Loading model...")

	var (
		p   Predictor
		err error
	)
	switch cfg.Backend {
	case config.BackendONNX:
		logger = logger.WithField("path", cfg.Path)
		p, err = NewServer(cfg, classes, logger)
	case config.BackendTFServing:
		logger = logger.WithField("url", cfg.TFServingURL)
		p, err = NewTFServing(ctx, cfg, logger)
	default:
		err = fmt.Errorf("unsupported model backend {%s}", cfg.Backend)
	}
	if err != nil {
		logger.WithError(err).Error("Error loading model")
		return nil, err
	}

	logger.Info("Model loaded successfully")
	return &instrumented{Predictor: p, backend: cfg.Backend}, nil
}

type instrumented struct {
	Predictor
	backend string
}

func (i *instrumented) Predict(ctx context.Context, batch *preprocess.Batch) ([][]float32, error) {
	start := time.Now()
	out, err := i.Predictor.Predict(ctx, batch)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.InferenceDuration(i.backend, status, time.Since(start))
	return out, err
}
