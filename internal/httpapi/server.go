// Package httpapi is the archive core's HTTP surface: an Echo server
// wired with the teacher's standard middleware stack, ABAC-gated
// routes over the authorisation, routing, QC, archive and hook
// subsystems, and the {error, code} response shape from §7.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"archivecore.io/core/internal/archive"
	"archivecore.io/core/internal/authcore"
	"archivecore.io/core/internal/config"
	"archivecore.io/core/internal/hooks"
	"archivecore.io/core/internal/merge"
	"archivecore.io/core/internal/metadb"
	"archivecore.io/core/internal/obs"
	"archivecore.io/core/internal/qcqueue"
	"archivecore.io/core/internal/ratelimit"
	"archivecore.io/core/internal/storage"
)

// Server is the composition root for the HTTP surface: it holds
// concrete references to every subsystem a handler might call, the
// way the teacher's cmd/ wiring layer does, rather than narrow
// per-handler interfaces.
type Server struct {
	cfg *config.Config

	echo *echo.Echo

	authSvc      *authcore.Service
	qcQueue      *qcqueue.Queue
	organiser    *archive.Organiser
	merger       *merge.Merger
	backend      storage.Backend
	db           *metadb.DB
	dispatcher   *hooks.Dispatcher
	loginLimiter *ratelimit.LoginLimiter
	backstop     *ratelimit.Backstop

	version string
}

// NewServer wires every subsystem into a Server and registers the full
// route table (§6 External interfaces).
func NewServer(cfg *config.Config, authSvc *authcore.Service, qcQueue *qcqueue.Queue, organiser *archive.Organiser,
	merger *merge.Merger, backend storage.Backend, db *metadb.DB, dispatcher *hooks.Dispatcher,
	loginLimiter *ratelimit.LoginLimiter, backstop *ratelimit.Backstop, version string) *Server {

	s := &Server{
		cfg: cfg, authSvc: authSvc, qcQueue: qcQueue, organiser: organiser, merger: merger,
		backend: backend, db: db, dispatcher: dispatcher, loginLimiter: loginLimiter,
		backstop: backstop, version: version,
	}

	sc := DefaultServerConfig()
	sc.Host = cfg.Server.Host
	sc.Port = cfg.Server.Port
	s.echo = NewEchoServer(sc)
	s.registerRoutes()
	return s
}

// Echo exposes the underlying router, e.g. for cmd/archivecored to
// pass to StartServer.
func (s *Server) Echo() *echo.Echo { return s.echo }

// ServerConfig mirrors the teacher's ServerConfig (http/server.go),
// narrowed to the fields this service actually varies at boot.
type ServerConfig struct {
	Host            string
	Port            int
	Debug           bool
	BodyLimit       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DefaultServerConfig returns sensible defaults, mirroring the
// teacher's DefaultServerConfig.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		BodyLimit:       "50M",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"*"},
	}
}

// NewEchoServer builds an Echo instance with the teacher's standard
// middleware stack (http/server.go): access logging, panic recovery,
// body limit, CORS, request IDs. Session auth and ABAC gating are
// applied per-route, not globally, since /api/health and
// /api/auth/login are unauthenticated (§6).
func NewEchoServer(cfg ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Debug

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	e.Use(middleware.RequestID())

	e.HTTPErrorHandler = ErrorHandler
	return e
}

// HealthResponse is the /api/health body.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// HealthHandler answers liveness checks, unauthenticated per §6.
func HealthHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Service: "archivecore", Version: version})
	}
}

// StartServer starts e with the configured read/write timeouts,
// mirroring the teacher's StartServer (http/server.go).
func StartServer(e *echo.Echo, cfg ServerConfig) error {
	s := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	obs.Logger.WithField("addr", s.Addr).Info("starting http server")
	return e.StartServer(s)
}

// GracefulShutdown drains in-flight requests before returning,
// mirroring the teacher's GracefulShutdown.
func GracefulShutdown(e *echo.Echo, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	obs.Logger.Info("shutting down http server")
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
