package client

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

type Prediction struct {
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
}

type Welcome struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

type Client struct {
	rest *resty.Client
}

func New(baseURL string) *Client {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	return &Client{rest: rest}
}

func (c *Client) Ping(ctx context.Context) (string, error) {
	var msg string
	if err := c.get(ctx, "/ping", &msg); err != nil {
		return "", err
	}
	return msg, nil
}

func (c *Client) Info(ctx context.Context) (*Welcome, error) {
	var w Welcome
	if err := c.get(ctx, "/", &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// PredictFile uploads the file at path as the "file" form field.
func (c *Client) PredictFile(ctx context.Context, path string) (*Prediction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return c.Predict(ctx, filepath.Base(path), ContentType(path, data), data)
}

func (c *Client) Predict(ctx context.Context, filename, contentType string, data []byte) (*Prediction, error) {
	var (
		out    Prediction
		apiErr APIError
	)
	resp, err := c.rest.R().
		SetContext(ctx).
		SetMultipartField("file", filename, contentType, bytes.NewReader(data)).
		SetResult(&out).
		SetError(&apiErr).
		Post("/predict")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		return nil, &apiErr
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	var apiErr APIError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		return &apiErr
	}
	return nil
}

// ContentType guesses the media type from the extension and falls back to
// sniffing the content.
func ContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
