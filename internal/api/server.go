// Package api exposes the backtest engine over a JSON HTTP interface.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"quantlab/internal/config"
	"quantlab/internal/store"
	"quantlab/internal/strategy"
)

// Server hosts the JSON API: strategy and symbol listing, single backtest
// runs, walk-forward evaluations, and persisted run history.
type Server struct {
	cfg      *config.Config
	registry *strategy.Registry
	bars     store.BarStore
	results  store.ResultStore
	router   *gin.Engine
	log      *slog.Logger
}

// NewServer wires the API routes against the given stores and strategy
// registry. A nil logger falls back to slog.Default.
func NewServer(cfg *config.Config, registry *strategy.Registry, bars store.BarStore, results store.ResultStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		registry: registry,
		bars:     bars,
		results:  results,
		router:   router,
		log:      log.With("component", "api"),
	}

	router.Use(s.cors())
	router.Use(s.requestLog())

	router.GET("/healthz", s.health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/strategies", s.listStrategies)
		v1.GET("/symbols", s.listSymbols)
		v1.GET("/runs", s.listRuns)
		v1.POST("/backtest", s.runBacktest)
		v1.POST("/walkforward", s.runWalkForward)
	}
	return s
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the HTTP listener and blocks until it fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.log.Info("listening", "addr", addr)
	return s.router.Run(addr)
}

// cors allows browser dashboards on other origins to call the API.
func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
