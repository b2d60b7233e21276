// Package mockbackend is an in-process stand-in for the doffice backend: accounts, job
// submission with simulated processing, job listing and the websocket status channel.
package mockbackend

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/joseph-ayodele/doffice/internal/common"
)

// APIPrefix is where every route is mounted, matching the production backend.
const APIPrefix = "/api/v1"

type Server struct {
	cfg        common.MockConfig
	logger     *slog.Logger
	tokens     tokenIssuer
	store      *store
	hub        *hub
	upgrader   websocket.Upgrader
	bcryptCost int
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Server)

// WithBcryptCost lowers the hashing cost, mostly for tests.
func WithBcryptCost(cost int) Option { return func(s *Server) { s.bcryptCost = cost } }

func New(cfg common.MockConfig, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		tokens:     tokenIssuer{secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL},
		store:      newStore(),
		hub:        newHub(logger),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group(APIPrefix)
	api.POST("/users/", s.handleSignUp)
	api.POST("/auth/token", s.handleToken)
	api.POST("/auth/google", s.handleGoogle)

	optional := api.Group("", s.authMiddleware(false))
	optional.POST("/submit", s.handleSubmit)
	optional.GET("/ws/status/:job_id", s.handleStatusSocket)

	authed := api.Group("", s.authMiddleware(true))
	authed.GET("/users/me", s.handleMe)
	authed.GET("/jobs/", s.handleListJobs)
	authed.PUT("/jobs/:id", s.handleUpdateJob)
	authed.DELETE("/jobs/:id", s.handleDeleteJob)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return r
}

// Close stops simulated processing and disconnects websocket subscribers.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
	s.hub.closeAll()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("mock.http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}
