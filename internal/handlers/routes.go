package handlers

import (
	"net/http"
	"slices"

	_ "github.com/Brownie44l1/potato-api/docs"
	"github.com/Brownie44l1/potato-api/internal/config"
	"github.com/Brownie44l1/potato-api/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
)

func NewRouter(h *Handler, corsCfg config.CORSConfig, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use([]func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}),
		middleware.Recoverer,
		metrics.Middleware,
		cors.Handler(corsOptions(corsCfg)),
	}...)

	r.Get("/", h.Root)
	r.Get("/ping", h.Ping)
	r.Post("/predict", h.Predict)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// corsOptions echoes the request origin instead of "*" when credentials are
// allowed, since browsers refuse a wildcard on credentialed requests.
func corsOptions(cfg config.CORSConfig) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
	}
	if cfg.AllowCredentials && slices.Contains(cfg.AllowedOrigins, "*") {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
	}
	return opts
}
