// Package server is the reference implementation of the notesync cloud
// service. It serves the remote procedures the cloud adapter calls, scoped
// to the principal named by the bearer token, keeping records in memory.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/notesync/internal/metrics"
	"github.com/aretw0/notesync/pkg/adapters/cloud"
	"github.com/aretw0/notesync/pkg/core"
)

// Config holds the configuration for the server.
type Config struct {
	Secret []byte
	Store  *Store
	Logger *slog.Logger
	// Registry receives the server collectors and backs /metrics.
	Registry *prometheus.Registry
	// RequestsPerSecond and Burst bound each principal; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// Server serves the RPC, presence and metrics endpoints.
type Server struct {
	engine   *gin.Engine
	store    *Store
	secret   []byte
	logger   *slog.Logger
	limiter  *RateLimiter
	hub      *Hub
	metrics  *metrics.Server
	validate *validator.Validate
	procs    map[string]procedure
}

type procedure func(c *gin.Context, user string) (any, error)

// New builds a server. Secret is required.
func New(config Config) (*Server, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("server secret is required")
	}
	if config.Store == nil {
		config.Store = NewStore()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	m := metrics.NewServer(config.Registry)
	s := &Server{
		store:    config.Store,
		secret:   config.Secret,
		logger:   config.Logger,
		hub:      NewHub(config.Logger, func(n int) { m.Clients.Set(float64(n)) }),
		metrics:  m,
		validate: validator.New(),
	}
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = int(config.RequestsPerSecond)
		}
		s.limiter = NewRateLimiter(config.RequestsPerSecond, burst)
	}
	s.procs = s.procedures()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.logMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(config.Registry, promhttp.HandlerOpts{})))

	authed := engine.Group("/", s.authMiddleware(), s.rateLimitMiddleware())
	authed.POST("/rpc/:procedure", s.handleRPC)
	authed.GET("/ws", s.handleWebSocket)

	s.engine = engine
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Store returns the backing store.
func (s *Server) Store() *Store {
	return s.store
}

// Hub returns the presence hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"correlation_id", c.GetHeader("X-Correlation-Id"),
		)
	}
}

func (s *Server) handleRPC(c *gin.Context) {
	name := c.Param("procedure")
	start := time.Now()
	status := s.serveRPC(c, name)
	s.metrics.Requests.WithLabelValues(name, strconv.Itoa(status)).Inc()
	s.metrics.Duration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (s *Server) serveRPC(c *gin.Context, name string) int {
	proc, ok := s.procs[name]
	if !ok {
		c.JSON(http.StatusNotFound, cloud.ErrorResponse{Code: "unknown_procedure", Message: "unknown procedure " + name})
		return http.StatusNotFound
	}
	user := c.GetString(userKey)
	result, err := proc(c, user)
	if err != nil {
		status := cloud.StatusForError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("procedure failed", "procedure", name, "user", user, "error", err)
		}
		c.JSON(status, cloud.ErrorResponse{Code: cloud.ErrorCode(err), Message: err.Error()})
		return status
	}
	if result == nil {
		c.Status(http.StatusNoContent)
		return http.StatusNoContent
	}
	c.JSON(http.StatusOK, result)
	return http.StatusOK
}

// bind decodes the request body into req and runs both gin binding rules
// and the domain validation rules.
func (s *Server) bind(c *gin.Context, op string, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return core.Invalid(op, err)
	}
	if err := s.validate.Struct(req); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return core.Invalid(op, err)
	}
	return nil
}

// changed notifies the principal's presence clients after a mutation.
func (s *Server) changed(user, procedure string) {
	s.hub.Broadcast(user, Message{Type: "changed", Procedure: procedure})
}
