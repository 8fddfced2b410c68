// Package api exposes the game over HTTP. Command routes are signal-style:
// they acknowledge immediately and clients poll state for the outcome.
package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rilhia/the-hallucinated-truth/internal/registry"
)

// Server holds the HTTP handlers.
type Server struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// NewServer creates the HTTP server facade.
func NewServer(reg *registry.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		registry: reg,
		logger:   logger.Named("api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}))

	r.GET("/", s.handleHealth)
	r.POST("/api/start", s.handleStart)
	r.POST("/api/init", s.handleInit)
	r.POST("/api/explainTruth", s.handleExplainTruth)
	r.POST("/api/end", s.handleEnd)
	r.GET("/api/state/:gameId", s.handleState)
	r.GET("/api/games", s.handleListGames)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "The Hallucinated Truth API is running")
}

// handleStart creates a new idle session and returns its id.
func (s *Server) handleStart(c *gin.Context) {
	sess := s.registry.Create(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"gameId": sess.ID()})
}

type initRequest struct {
	GameID        string `json:"gameId" binding:"required"`
	PromptSubject string `json:"promptSubject" binding:"required"`
}

// handleInit triggers the setup pipeline for a session. The pipeline runs in
// the background; clients poll /api/state for progress.
func (s *Server) handleInit(c *gin.Context) {
	var req initRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.registry.Get(req.GameID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	go sess.Start(context.Background(), req.PromptSubject)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type explainRequest struct {
	GameID      string `json:"gameId" binding:"required"`
	Explanation string `json:"explanation" binding:"required"`
}

// handleExplainTruth relays a guess into the session for judging.
func (s *Server) handleExplainTruth(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.registry.Get(req.GameID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	go sess.SubmitGuess(context.Background(), req.Explanation)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type endRequest struct {
	GameID string `json:"gameId" binding:"required"`
}

// handleEnd finalizes a session's score.
func (s *Server) handleEnd(c *gin.Context) {
	var req endRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.registry.Get(req.GameID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	go sess.DeclareDone(context.Background())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleState returns the full session snapshot. Always answerable, including
// mid-pipeline.
func (s *Server) handleState(c *gin.Context) {
	sess, err := s.registry.Get(c.Param("gameId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sess.State())
}

// handleListGames lists known sessions, split by whether they finished.
func (s *Server) handleListGames(c *gin.Context) {
	active, completed := s.registry.List()
	if active == nil {
		active = []string{}
	}
	if completed == nil {
		completed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"active": active, "completed": completed})
}
