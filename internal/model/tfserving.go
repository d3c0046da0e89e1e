package model

import (
	"context"
	"fmt"

	"github.com/Brownie44l1/potato-api/internal/config"
	"github.com/Brownie44l1/potato-api/internal/preprocess"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const stateAvailable = "AVAILABLE"

// TFServing forwards batches to a TensorFlow Serving REST endpoint, which is
// how the original SavedModel export is usually hosted.
type TFServing struct {
	client  *resty.Client
	model   string
	version string
	logger  logrus.FieldLogger
}

// NewTFServing fails unless the served model already has an available version.
func NewTFServing(ctx context.Context, cfg config.ModelConfig, logger logrus.FieldLogger) (*TFServing, error) {
	client := resty.New().
		SetBaseURL(cfg.TFServingURL).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	s := &TFServing{
		client:  client,
		model:   cfg.TFServingModel,
		version: cfg.TFServingVersion,
		logger:  logger,
	}

	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TFServing) ready(ctx context.Context) error {
	var status tfModelStatus
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("model", s.model).
		SetResult(&status).
		Get("/v1/models/{model}")
	if err != nil {
		return fmt.Errorf("failed to reach TensorFlow Serving: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("model status for %s: %s", s.model, resp.Status())
	}

	for _, v := range status.ModelVersionStatus {
		if s.version != "" && v.Version != s.version {
			continue
		}
		if v.State == stateAvailable {
			s.logger.WithFields(logrus.Fields{
				"model":   s.model,
				"version": v.Version,
			}).Debug("tensorflow serving model available")
			return nil
		}
	}
	return fmt.Errorf("model %s has no %s version", s.model, stateAvailable)
}

func (s *TFServing) predictURL() string {
	if s.version != "" {
		return "/v1/models/{model}/versions/{version}:predict"
	}
	return "/v1/models/{model}:predict"
}

func (s *TFServing) Predict(ctx context.Context, batch *preprocess.Batch) ([][]float32, error) {
	var (
		out    tfPredictResponse
		apiErr tfErrorResponse
	)
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"model":   s.model,
			"version": s.version,
		}).
		SetBody(tfPredictRequest{Instances: batch.Instances()}).
		SetResult(&out).
		SetError(&apiErr).
		Post(s.predictURL())
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}

	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("inference failed: %s", msg)
	}

	if len(out.Predictions) != batch.Len() {
		return nil, fmt.Errorf("inference returned %d predictions for a batch of %d",
			len(out.Predictions), batch.Len())
	}
	return out.Predictions, nil
}

func (s *TFServing) Close() error {
	return nil
}
