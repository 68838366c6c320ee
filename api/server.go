// Package api exposes the dashboard HTTP surface: read-only status
// endpoints, control endpoints that enqueue engine commands, and a
// websocket status push.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hedgegrid/config"
	"hedgegrid/logger"
	"hedgegrid/store"
	"hedgegrid/trader"
)

// Server HTTP API server
type Server struct {
	router     *gin.Engine
	engine     *trader.Engine
	trades     *store.TradeStore
	cfg        *config.Config
	hub        *wsHub
	httpServer *http.Server
	port       int
}

// NewServer creates the API server
func NewServer(engine *trader.Engine, trades *store.TradeStore, cfg *config.Config) *Server {
	// Release mode to reduce log output
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.Use(corsMiddleware())

	s := &Server{
		router: router,
		engine: engine,
		trades: trades,
		cfg:    cfg,
		hub:    newWSHub(engine),
		port:   cfg.APIPort,
	}
	s.setupRoutes()
	return s
}

// corsMiddleware CORS middleware
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.Any("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.GET("/positions", s.handlePositions)
		api.GET("/levels", s.handleLevels)
		api.GET("/trades", s.handleTrades)
		api.GET("/summary", s.handleSummary)
		api.GET("/config", s.handleConfig)

		// Control endpoints enqueue commands; the engine applies them
		// at the top of its next cycle
		api.POST("/pause", s.handlePause)
		api.POST("/resume", s.handleResume)
		api.POST("/reset-daily", s.handleResetDaily)
		api.POST("/manual/long", s.handleManualLong)
		api.POST("/manual/short", s.handleManualShort)
		api.POST("/close/all", s.handleCloseAll)
	}

	s.router.GET("/ws", s.hub.handleConnect)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handlePositions(c *gin.Context) {
	positions := s.engine.PositionsInfo()
	out := make([]gin.H, 0, len(positions))
	for _, p := range positions {
		out = append(out, gin.H{
			"id":          p.ID,
			"side":        p.Side,
			"entry_price": p.EntryPrice,
			"quantity":    p.Quantity,
			"entry_atr":   p.EntryATR.ATR,
			"opened_at":   p.OpenedAt.Format(time.RFC3339),
			"order_id":    p.OrderID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"positions": out})
}

func (s *Server) handleLevels(c *gin.Context) {
	levels := s.engine.LevelsInfo()
	out := make([]gin.H, 0, len(levels))
	for _, lv := range levels {
		out = append(out, gin.H{
			"grid_id":    lv.GridID,
			"side":       lv.Side,
			"price":      lv.Price,
			"quantity":   lv.Quantity,
			"order_id":   lv.OrderID,
			"is_counter": lv.IsCounter,
		})
	}
	c.JSON(http.StatusOK, gin.H{"levels": out})
}

func (s *Server) handleTrades(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1..1000"})
			return
		}
		limit = n
	}

	trades, err := s.trades.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleSummary(c *gin.Context) {
	sum, err := s.trades.Summarize()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// handleConfig returns the running configuration with secrets masked
func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"exchange": gin.H{
			"api_key": maskSecret(s.cfg.Exchange.APIKey),
			"testnet": s.cfg.Exchange.Testnet,
		},
		"strategy": s.cfg.Strategy,
		"api_port": s.cfg.APIPort,
	})
}

func maskSecret(v string) string {
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "****" + v[len(v)-4:]
}

func (s *Server) handlePause(c *gin.Context) {
	s.command(c, s.engine.Pause, "pause requested")
}

func (s *Server) handleResume(c *gin.Context) {
	s.command(c, s.engine.Resume, "resume requested")
}

func (s *Server) handleResetDaily(c *gin.Context) {
	s.command(c, s.engine.ResetDaily, "daily counters reset requested")
}

func (s *Server) handleManualLong(c *gin.Context) {
	s.command(c, func() error { return s.engine.ManualOpen(trader.PositionLong) }, "manual long requested")
}

func (s *Server) handleManualShort(c *gin.Context) {
	s.command(c, func() error { return s.engine.ManualOpen(trader.PositionShort) }, "manual short requested")
}

func (s *Server) handleCloseAll(c *gin.Context) {
	s.command(c, s.engine.CloseAll, "close all requested")
}

func (s *Server) command(c *gin.Context, fn func() error, msg string) {
	if err := fn(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Start starts the server and the websocket broadcaster. Blocks until
// shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	logger.Infof("🌐 API server starting at http://localhost%s", addr)
	logger.Infof("  • GET  /api/status     - engine status snapshot")
	logger.Infof("  • GET  /api/positions  - open positions")
	logger.Infof("  • GET  /api/trades     - recent closed trades")
	logger.Infof("  • POST /api/pause      - pause trading")
	logger.Infof("  • GET  /ws             - status push")

	s.hub.start()

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.hub.stop()
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
