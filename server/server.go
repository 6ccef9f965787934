// Package server is a development stand-in for the remote auth API. It
// implements every endpoint the client consumes, issues real HS256 access
// tokens with rotating refresh tokens, and exposes hooks that let tests count
// calls, inject failures and pause requests.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env            string // Environment (e.g., "DEV", "PROD")
	echo           *echo.Echo
	routes         []string
	config         config.MockAPIConfig
	users          users.Repo
	signer         Signer
	nowFunc        func() time.Time
	logger         zerolog.Logger
	metricsHandler http.Handler

	grants *grantStore
	hooks  *hooks
}

type Option func(*Server)

func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithSigner(signer Signer) Option {
	return func(s *Server) {
		s.signer = signer
	}
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

func New(cfg config.MockAPIConfig, userRepo users.Repo, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] MockAPI config is required")
	}
	if userRepo == nil {
		return nil, errors.New("[server.New] Users repo is required")
	}

	s := &Server{
		config:  cfg,
		users:   userRepo,
		nowFunc: time.Now,
		logger:  log.Logger,
		grants:  newGrantStore(),
		hooks:   newHooks(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.signer == nil {
		s.signer = NewHMACSigner(cfg.GetJWTSecret(), s.nowFunc)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = auth.NewValidator()
	s.echo.HTTPErrorHandler = s.httpErrorHandler
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	if err := s.InitialiseSystem(); err != nil {
		return nil, errors.Wrap(err, "[server.New] Failed to initialise the system")
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) registerRoute(g *echo.Group, method, path string, handler echo.HandlerFunc, mw ...echo.MiddlewareFunc) {
	s.routes = append(s.routes, method+" "+APIPrefix+path)
	g.Add(method, path, handler, mw...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		s.logRoute(parts[0], parts[1])
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Info().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}

// LoggingMiddleware prints each request in DEV.
func (s *Server) LoggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.env == "DEV" {
			s.logRoute(c.Request().Method, c.Request().URL.Path)
		}
		return next(c)
	}
}
