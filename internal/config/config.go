package config

import (
	"fmt"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendONNX      = "onnx"
	BackendTFServing = "tfserving"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	CORS       CORSConfig
	Model      ModelConfig
	ClassNames []string `env:"CLASS_NAMES" envSeparator:"," envDefault:"Early Blight,Late Blight,Healthy"`
}

type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"PORT" envDefault:"8000"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	MaxImagePixels  int64         `env:"MAX_IMAGE_PIXELS" envDefault:"89478485"`
}

func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// CORSConfig defaults to the fully open development posture.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,PATCH,DELETE,OPTIONS,HEAD"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"*"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
}

type ModelConfig struct {
	Backend      string `env:"MODEL_BACKEND" envDefault:"onnx"`
	Path         string `env:"MODEL_PATH" envDefault:"models/potatoes.onnx"`
	MetadataPath string `env:"MODEL_METADATA_PATH" envDefault:"models/model_metadata.json"`
	LibraryPath  string `env:"ONNXRUNTIME_LIB_PATH"`

	TFServingURL     string `env:"TFSERVING_URL" envDefault:"http://localhost:8501"`
	TFServingModel   string `env:"TFSERVING_MODEL" envDefault:"potatoes_model"`
	TFServingVersion string `env:"TFSERVING_VERSION"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Model.Backend {
	case BackendONNX:
		if c.Model.Path == "" {
			return fmt.Errorf("MODEL_PATH is empty")
		}
	case BackendTFServing:
		if c.Model.TFServingURL == "" || c.Model.TFServingModel == "" {
			return fmt.Errorf("TFSERVING_URL and TFSERVING_MODEL are required for the %s backend", BackendTFServing)
		}
	default:
		return fmt.Errorf("unsupported model backend {%s}", c.Model.Backend)
	}
	if len(c.ClassNames) == 0 {
		return fmt.Errorf("CLASS_NAMES is empty")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if c.Server.MaxImagePixels < 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must not be negative, got %d", c.Server.MaxImagePixels)
	}
	return nil
}
