// Package server exposes the answer pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/viso-study/visocode/config"
	"github.com/viso-study/visocode/internal/agent/core"
	"github.com/viso-study/visocode/internal/agent/telemetry"
	"github.com/viso-study/visocode/internal/capability"
	"github.com/viso-study/visocode/internal/sink"
)

// Runner runs the pipeline for one question.
type Runner interface {
	Run(ctx context.Context, question string) (core.Payload, error)
}

// AnswerStore reads back the most recently persisted payload.
type AnswerStore interface {
	Load() (core.Payload, error)
	Path() string
}

// Server wires the HTTP handlers to the pipeline.
type Server struct {
	cfg    *config.Config
	logger *log.Logger
	runner Runner
	store  AnswerStore
}

// NewServer creates a Server around an already-built pipeline.
func NewServer(cfg *config.Config, logger *log.Logger, runner Runner, store AnswerStore) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	return &Server{cfg: cfg, logger: logger, runner: runner, store: store}
}

// Run builds the whole pipeline from configuration and serves it until the
// listener fails.
func Run(addr string, cfg *config.Config) error {
	tele := telemetry.NewTelemetry(cfg.Telemetry)

	cards, err := capability.SignedDefaultCards(cfg.Capability.SigningSecret)
	if err != nil {
		return err
	}
	registry, err := capability.NewRegistry(cards, cfg.Capability.SigningSecret, cfg.Capability.RequiredTools)
	if err != nil {
		return fmt.Errorf("building capability registry: %w", err)
	}

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	caps, err := core.NewCapabilities(cfg, orchLogger)
	if err != nil {
		return err
	}
	answerSink := sink.New(cfg.Storage.File)
	planner := core.NewPlannerFromConfig(cfg, log.New(log.Writer(), "[PLANNER] ", log.LstdFlags))
	orch, err := core.NewOrchestrator(cfg, orchLogger, tele, registry, planner, caps, answerSink)
	if err != nil {
		return err
	}

	s := NewServer(cfg, log.New(log.Writer(), "[HTTP] ", log.LstdFlags), orch, answerSink)

	e := s.Echo()
	if addr == "" {
		addr = cfg.Server.Address
	}
	if addr != "" && !strings.HasPrefix(addr, ":") && !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// Echo builds the routed echo instance.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/ask", s.handleAsk)
	api.GET("/answers/latest", s.handleLatest)
	return e
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	ctx := c.Request().Context()
	if s.cfg.General.DefaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.General.DefaultTimeout)
		defer cancel()
	}

	payload, err := s.runner.Run(ctx, question)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *Server) handleLatest(c echo.Context) error {
	payload, err := s.store.Load()
	if err != nil {
		if os.IsNotExist(err) {
			return echo.NewHTTPError(http.StatusNotFound, "no answer persisted yet")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, payload)
}
