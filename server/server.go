package server

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"pricewatch/config"
	"pricewatch/models"
)

// Runner triggers one reconciliation pass.
type Runner interface {
	RunBatch(ctx context.Context) (*models.BatchResult, error)
}

// RunHistory exposes recent batch run records for inspection.
type RunHistory interface {
	GetRecentBatchRuns(ctx context.Context, limit int) ([]models.BatchRun, error)
}

// Server exposes the price-check trigger endpoint. POST is gated by a
// shared bearer secret; with no secret configured every trigger is
// rejected.
type Server struct {
	cfg    *config.ServerConfig
	runner Runner
	runs   RunHistory
	http   *http.Server
}

func New(cfg *config.ServerConfig, runner Runner, runs RunHistory) *Server {
	return &Server{
		cfg:    cfg,
		runner: runner,
		runs:   runs,
	}
}

// Router builds the gin engine; split out so tests can drive it with
// httptest directly.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/api/cron/check-prices", s.handleProbe)
	router.POST("/api/cron/check-prices", s.handleTrigger)
	router.GET("/api/runs", s.handleRuns)

	return router
}

func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Router(),
	}

	log.Printf("Server listening on %s", s.cfg.Addr)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Price check endpoint is working. Use POST to trigger.",
	})
}

func (s *Server) handleTrigger(c *gin.Context) {
	if !s.authorized(c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, err := s.runner.RunBatch(c.Request.Context())
	if err != nil {
		log.Printf("Batch run error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Price check completed",
		"results": result,
	})
}

func (s *Server) handleRuns(c *gin.Context) {
	if !s.authorized(c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	runs, err := s.runs.GetRecentBatchRuns(c.Request.Context(), 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) authorized(header string) bool {
	return s.cfg.CronSecret != "" && header == "Bearer "+s.cfg.CronSecret
}
