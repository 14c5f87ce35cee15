// Package httpapi exposes the bridge's minimal operations surface:
// health, readiness, and Prometheus metrics. It intentionally carries
// no configuration CRUD — the admin UI and its storage implementation
// are external collaborators per spec.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"industrial-bridge/internal/health"
)

// Server wraps a gin engine and an *http.Server for graceful shutdown.
type Server struct {
	engine *gin.Engine
	http   *http.Server
}

// New builds the ops server bound to addr, wiring the health checker's
// handlers and the Prometheus handler.
func New(addr string, checker *health.Checker) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", gin.WrapF(checker.LivenessHandler))
	engine.GET("/readyz", gin.WrapF(checker.ReadinessHandler))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		engine: engine,
		http:   &http.Server{Addr: addr, Handler: engine},
	}
}

// Run serves until the listener errors; callers run it in a goroutine
// and rely on Shutdown to stop it cleanly.
func (s *Server) Run() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the given deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
