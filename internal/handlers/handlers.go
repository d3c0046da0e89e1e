package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Brownie44l1/potato-api/internal/metrics"
	"github.com/Brownie44l1/potato-api/internal/model"
	"github.com/Brownie44l1/potato-api/internal/preprocess"
	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
)

// formField is the multipart field holding the uploaded image.
const formField = "file"

type predictor interface {
	Predict(ctx context.Context, batch *preprocess.Batch) ([][]float32, error)
}

type imageDecoder interface {
	Decode(data []byte) (*preprocess.PixelArray, string, error)
}

type Handler struct {
	model          predictor
	decoder        imageDecoder
	labels         model.Labels
	maxUploadBytes int64
	logger         logrus.FieldLogger
}

func NewHandler(p predictor, decoder imageDecoder, labels model.Labels, maxUploadBytes int64, logger logrus.FieldLogger) *Handler {
	return &Handler{
		model:          p,
		decoder:        decoder,
		labels:         labels,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Root godoc
// @Summary Welcome document
// @Description Lists the service endpoints.
// @Tags meta
// @Produce json
// @Success 200 {object} handlers.WelcomeResponse
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, WelcomeResponse{
		Message: welcomeMessage,
		Endpoints: map[string]string{
			"ping":    "/ping",
			"predict": "/predict (POST)",
		},
	})
}

// Ping godoc
// @Summary Liveness check
// @Description Answers regardless of model state.
// @Tags meta
// @Produce json
// @Success 200 {string} string "Hello, I am alive"
// @Router /ping [get]
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, pingMessage)
}

// Predict godoc
// @Summary Classify a potato leaf image
// @Description Upload an image as multipart field "file". The image is converted to RGB and stretched to 256x256 before inference.
// @Tags predict
// @Accept mpfd
// @Produce json
// @Param file formData file true "Leaf image"
// @Success 200 {object} model.PredictionResponse
// @Failure 400 {object} handlers.ErrorResponse
// @Failure 413 {object} handlers.ErrorResponse
// @Failure 500 {object} handlers.ErrorResponse
// @Router /predict [post]
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	result, fault := h.predict(w, r)
	if fault != nil {
		h.writeFault(w, r, fault)
		return
	}

	metrics.Prediction(result.Class)
	h.logger.WithFields(logrus.Fields{
		"class":      result.Class,
		"confidence": result.Confidence,
	}).Info("prediction served")

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request) (result *model.PredictionResponse, fault *Fault) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			fault = serverFault(fmt.Errorf("panic: %v", rec))
		}
	}()

	data, fault := h.readUpload(w, r)
	if fault != nil {
		return nil, fault
	}

	start := time.Now()
	pixels, format, err := h.decoder.Decode(data)
	if err != nil {
		metrics.ImageDecode("error", format, time.Since(start))
		h.logger.WithError(err).Error("Error processing image")
		return nil, clientFault(http.StatusBadRequest, preprocess.ErrInvalidImage, "Invalid image file", err)
	}
	metrics.ImageDecode("ok", format, time.Since(start))

	outputs, err := h.model.Predict(r.Context(), pixels.Batch())
	if err != nil {
		return nil, serverFault(err)
	}
	if len(outputs) == 0 {
		return nil, serverFault(model.ErrEmptyPrediction)
	}

	result, err = h.labels.Map(outputs[0])
	if err != nil {
		return nil, serverFault(err)
	}
	return result, nil
}

// readUpload returns the uploaded bytes once the part is known to declare an
// image media type.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, *Fault) {
	if r.ContentLength > h.maxUploadBytes {
		return nil, tooLarge(h.maxUploadBytes, fmt.Errorf("content length %d", r.ContentLength))
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, tooLarge(maxErr.Limit, err)
		}
		return nil, clientFault(http.StatusBadRequest, ErrBadUpload, "Failed to parse form", err)
	}

	file, header, err := r.FormFile(formField)
	if err != nil {
		return nil, clientFault(http.StatusBadRequest, ErrBadUpload,
			fmt.Sprintf("No image file provided. Use '%s' as the form field name", formField), err)
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, clientFault(http.StatusBadRequest, ErrUnsupportedMediaType, "File must be an image",
			fmt.Errorf("content type %q", contentType))
	}

	h.logger.WithFields(logrus.Fields{
		"filename":     header.Filename,
		"size":         header.Size,
		"content_type": contentType,
	}).Debug("received file")

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, serverFault(fmt.Errorf("failed to read upload: %w", err))
	}
	return data, nil
}

func (h *Handler) writeFault(w http.ResponseWriter, r *http.Request, fault *Fault) {
	entry := h.logger.WithFields(logrus.Fields{
		"fault":  fault.Class.String(),
		"status": fault.Status,
		"path":   r.URL.Path,
	}).WithError(fault.Err)

	status := fault.Status
	switch fault.Class {
	case ClientFault:
		entry.Warn("request rejected")
	case ServerFault:
		entry.Error("Error during prediction")
	default:
		entry.Error("unclassified fault")
		status = http.StatusInternalServerError
	}

	h.writeJSON(w, status, ErrorResponse{Detail: fault.Detail})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("failed to encode response")
	}
}
