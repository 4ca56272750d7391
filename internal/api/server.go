// Package api is the dashboard surface: a gin HTTP server for commands
// and queries plus a websocket hub that streams the trading core's
// events.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smc-trading-bot/config"
	"smc-trading-bot/internal/database"
	"smc-trading-bot/internal/events"
	"smc-trading-bot/internal/patterns"
	"smc-trading-bot/internal/vault"
)

// BotController is the surface the trading bot exposes to the dashboard.
type BotController interface {
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
	ClosePosition(ctx context.Context, positionID int64) error
}

// Store is the persistence surface the handlers need.
type Store interface {
	HealthCheck(ctx context.Context) error
	GetAccountSettings(ctx context.Context, userID string) (*database.AccountSettings, error)
	SetTradingMode(ctx context.Context, userID string, mode database.TradingMode) error
	SetAutoTrading(ctx context.Context, userID string, enabled bool) error
	GetOpenPositions(ctx context.Context, userID string) ([]*database.Position, error)
	GetOperations(ctx context.Context, userID string, limit, offset int) ([]*database.Operation, error)
}

// PatternStore adds stats listing on top of the core pattern memory.
type PatternStore interface {
	patterns.Store
	Stats(ctx context.Context, userID string) ([]patterns.Stat, error)
}

// Server is the HTTP API server. One deployment serves one user.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        config.ServerConfig
	userID     string

	store    Store
	bot      BotController
	patterns PatternStore
	creds    *vault.Client
	bus      *events.EventBus
	hub      *WSHub
	logger   zerolog.Logger
}

// NewServer wires the routes and subscribes the websocket hub to the
// event bus.
func NewServer(cfg config.ServerConfig, userID string, store Store, bot BotController, patternStore PatternStore, creds *vault.Client, bus *events.EventBus, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		cfg:      cfg,
		userID:   userID,
		store:    store,
		bot:      bot,
		patterns: patternStore,
		creds:    creds,
		bus:      bus,
		hub:      NewWSHub(logger),
		logger:   logger.With().Str("component", "api").Logger(),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	s.setupRoutes()

	bus.SubscribeAll(s.hub.BroadcastEvent)

	return s
}

func corsConfig(allowedOrigins string) cors.Config {
	c := cors.DefaultConfig()
	if allowedOrigins == "" || allowedOrigins == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = strings.Split(allowedOrigins, ",")
	}
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	return c
}

func (s *Server) setupRoutes() {
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.GET("/settings", s.handleGetSettings)

		api.POST("/bot/start", s.handleBotStart)
		api.POST("/bot/pause", s.handleBotPause)
		api.POST("/bot/stop", s.handleBotStop)

		api.POST("/mode", s.handleSetMode)
		api.POST("/auto-trading", s.handleSetAutoTrading)

		api.GET("/positions", s.handleGetPositions)
		api.POST("/positions/:id/close", s.handleClosePosition)
		api.GET("/operations", s.handleGetOperations)

		api.GET("/patterns", s.handleGetPatterns)
		api.POST("/patterns/reset", s.handleResetPatterns)

		api.POST("/credentials", s.handleStoreCredentials)
		api.DELETE("/credentials", s.handleDeleteCredentials)
	}
}

// Start runs the websocket hub and serves HTTP. Blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("api server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
