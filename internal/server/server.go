// Package server provides the HTTP API for the classifier.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/coa-classifier/internal/classifier"
	"github.com/Veraticus/coa-classifier/internal/common"
)

// Server provides HTTP endpoints over a classifier.Service.
type Server struct {
	echo   *echo.Echo
	svc    *classifier.Service
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// DefaultConfig returns the default listen address.
func DefaultConfig() *Config {
	return &Config{Host: "localhost", Port: 8080}
}

// NewServer creates a new HTTP server. gatherer backs GET /metrics and may
// be nil to disable it.
func NewServer(svc *classifier.Service, gatherer prometheus.Gatherer, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("classifier service cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			logger := common.Logger(req.Context()).With("request_id", requestID)
			if company := c.Param("company_id"); company != "" {
				logger = logger.With("company_id", company)
			}
			c.SetRequest(req.WithContext(common.WithLogger(req.Context(), logger)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				"method", req.Method,
				"uri", req.RequestURI,
				"status", c.Response().Status,
				"duration", time.Since(start))
			return nil
		}
	})

	s := &Server{
		echo:   e,
		svc:    svc,
		config: cfg,
	}
	s.registerRoutes(gatherer)

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)
	if gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	company := s.echo.Group("/api/v1/companies/:company_id")
	company.POST("/classify", s.handleClassify)
	company.POST("/similar", s.handleSimilar)
	company.POST("/feedback", s.handleFeedback)
	company.GET("/low-confidence", s.handleLowConfidence)
	company.GET("/metrics", s.handleMetrics)
	company.POST("/embeddings", s.handleGenerateEmbeddings)
	company.GET("/stats", s.handleStats)
	company.GET("/retraining", s.handleRetraining)
	company.POST("/retraining", s.handleMarkRetrained)
	company.POST("/transactions", s.handleIngest)
	company.GET("/transactions/:id", s.handleGetTransaction)
	company.POST("/transactions/:id/classify", s.handleClassifyTransaction)
	company.GET("/accounts", s.handleAccounts)
	company.POST("/accounts/seed", s.handleSeedAccounts)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	slog.Info("starting http server", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, common.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		msg = fmt.Sprint(he.Message)
	case status == http.StatusInternalServerError:
		common.LogError(c.Request().Context(), err, "Request failed", nil)
		msg = "internal error"
	case status == http.StatusServiceUnavailable:
		common.LogError(c.Request().Context(), err, "Request degraded", nil)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrorResponse{Error: msg})
}
