package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smc-trading-bot/internal/database"
	"smc-trading-bot/internal/events"
	"smc-trading-bot/internal/trading"
	"smc-trading-bot/internal/vault"
)

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	settings, err := s.store.GetAccountSettings(c.Request.Context(), s.userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"running":     s.bot.Running(),
		"botState":    settings.BotState,
		"tradingMode": settings.TradingMode,
		"autoTrading": settings.AutoTrading,
		"balance":     settings.Balance,
		"wsClients":   s.hub.ClientCount(),
	})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.store.GetAccountSettings(c.Request.Context(), s.userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) handleBotStart(c *gin.Context) {
	if err := s.bot.Start(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"botState": database.BotRunning})
}

func (s *Server) handleBotPause(c *gin.Context) {
	if err := s.bot.Pause(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"botState": database.BotPaused})
}

func (s *Server) handleBotStop(c *gin.Context) {
	if err := s.bot.Stop(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"botState": database.BotStopped})
}

type setModeRequest struct {
	Mode database.TradingMode `json:"mode" binding:"required"`
}

func (s *Server) handleSetMode(c *gin.Context) {
	var req setModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Mode != database.ModePaper && req.Mode != database.ModeReal {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be paper or real"})
		return
	}

	// Real mode needs stored credentials before it can be selected.
	if req.Mode == database.ModeReal && s.creds != nil {
		if _, err := s.creds.GetCredentials(c.Request.Context(), s.userID); err != nil {
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": "exchange credentials not configured"})
			return
		}
	}

	if err := s.store.SetTradingMode(c.Request.Context(), s.userID, req.Mode); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.bus.Publish(events.Event{
		Type:      events.EventTradingModeChanged,
		UserID:    s.userID,
		Timestamp: time.Now().UTC(),
		Data:      map[string]interface{}{"mode": string(req.Mode)},
	})
	c.JSON(http.StatusOK, gin.H{"tradingMode": req.Mode})
}

type setAutoTradingRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) handleSetAutoTrading(c *gin.Context) {
	var req setAutoTradingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.store.SetAutoTrading(c.Request.Context(), s.userID, *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.bus.Publish(events.Event{
		Type:      events.EventAutoTradingToggled,
		UserID:    s.userID,
		Timestamp: time.Now().UTC(),
		Data:      map[string]interface{}{"enabled": *req.Enabled},
	})
	c.JSON(http.StatusOK, gin.H{"autoTrading": *req.Enabled})
}

func (s *Server) handleGetPositions(c *gin.Context) {
	positions, err := s.store.GetOpenPositions(c.Request.Context(), s.userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if positions == nil {
		positions = []*database.Position{}
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) handleClosePosition(c *gin.Context) {
	positionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position id"})
		return
	}

	if err := s.bot.ClosePosition(c.Request.Context(), positionID); err != nil {
		status := http.StatusInternalServerError
		if trading.IsValidation(err) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": positionID})
}

func (s *Server) handleGetOperations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	operations, err := s.store.GetOperations(c.Request.Context(), s.userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if operations == nil {
		operations = []*database.Operation{}
	}
	c.JSON(http.StatusOK, gin.H{"operations": operations, "limit": limit, "offset": offset})
}

func (s *Server) handleGetPatterns(c *gin.Context) {
	stats, err := s.patterns.Stats(c.Request.Context(), s.userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": stats})
}

func (s *Server) handleResetPatterns(c *gin.Context) {
	if err := s.patterns.Reset(c.Request.Context(), s.userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

type credentialsRequest struct {
	APIKey    string `json:"apiKey" binding:"required"`
	SecretKey string `json:"secretKey" binding:"required"`
}

func (s *Server) handleStoreCredentials(c *gin.Context) {
	if s.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential store not configured"})
		return
	}
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "apiKey and secretKey are required"})
		return
	}
	err := s.creds.StoreCredentials(c.Request.Context(), s.userID, vault.Credentials{
		APIKey:    req.APIKey,
		SecretKey: req.SecretKey,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": true})
}

func (s *Server) handleDeleteCredentials(c *gin.Context) {
	if s.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential store not configured"})
		return
	}
	if err := s.creds.DeleteCredentials(c.Request.Context(), s.userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
