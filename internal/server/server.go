package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	pingTimeout     = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Pinger reports whether a backing dependency is reachable. *sql.DB
// satisfies it via PingContext.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server owns the gin engine and its lifecycle. Services attach their
// routes to Engine before Run is called.
type Server struct {
	Engine *gin.Engine
	Addr   string

	db     Pinger
	logger *slog.Logger
}

func New(addr string, db Pinger, mode string, logger *slog.Logger) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Engine: gin.Default(),
		Addr:   addr,
		db:     db,
		logger: logger,
	}
	s.Engine.GET("/health", s.healthHandler)
	return s
}

// healthHandler reports liveness plus database reachability. A nil db
// skips the check, which keeps tests free of a real connection.
func (s *Server) healthHandler(c *gin.Context) {
	checks := gin.H{}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()

		start := time.Now()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Error("[Server] Health check failed", "check", "database", "error", err)
			checks["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
			checks["database_latency_ms"] = time.Since(start).Milliseconds()
		}
	}

	body := gin.H{"status": "healthy", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	c.JSON(status, body)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("[Server] Listening", "address", s.Addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("[Server] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("[Server] Forced shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
