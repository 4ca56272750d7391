package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"smc-trading-bot/config"
	"smc-trading-bot/internal/api"
	"smc-trading-bot/internal/bot"
	"smc-trading-bot/internal/database"
	"smc-trading-bot/internal/events"
	"smc-trading-bot/internal/execution"
	"smc-trading-bot/internal/logging"
	"smc-trading-bot/internal/supervisor"
	"smc-trading-bot/internal/vault"
)

// defaultUserID identifies the account a single-user deployment serves.
const defaultUserID = "default"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logger.Info().Msg("starting smc trading bot")

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}, logging.Component(logger, "database"))
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.RunMigrations(migrateCtx); err != nil {
		cancelMigrate()
		logger.Fatal().Err(err).Msg("database migration failed")
	}
	cancelMigrate()

	repo := database.NewRepository(db)
	patternRepo := database.NewPatternRepository(db)

	// Signal deduplication: Redis survives restarts; the in-process
	// tracker is the fallback for setups without it.
	var tracker execution.SignalTracker
	if cfg.RedisConfig.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		})
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancelPing()
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		cancelPing()
		defer redisClient.Close()
		tracker = database.NewSignalTracker(redisClient, database.DefaultSignalTTL)
		logger.Info().Str("addr", cfg.RedisConfig.Address).Msg("redis signal tracker enabled")
	} else {
		tracker = execution.NewMemoryTracker(database.DefaultSignalTTL)
		logger.Warn().Msg("redis disabled, using in-process signal tracker")
	}

	creds, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("credential store setup failed")
	}

	bus := events.NewEventBus()

	executor := execution.NewExecutor(repo, tracker, bus, logging.Component(logger, "executor"))
	sup := supervisor.New(repo, patternRepo, bus, logging.Component(logger, "supervisor"), cfg.SupervisorConfig.QuantityTolerance)

	tradingBot := bot.New(defaultUserID, cfg, repo, creds, executor, sup, patternRepo, bus, logger)

	server := api.NewServer(cfg.ServerConfig, defaultUserID, repo, tradingBot, patternRepo, creds, bus, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("api server failed")
		}
	}()

	// Resume the loops if the bot was running before the restart.
	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	settings, err := repo.GetAccountSettings(startCtx, defaultUserID)
	if err == nil && settings.BotState != database.BotStopped {
		if err := tradingBot.Start(startCtx); err != nil {
			logger.Error().Err(err).Msg("failed to resume bot")
		}
	}
	cancelStart()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown leaves the persisted bot state untouched so a running bot
	// resumes on the next start.
	tradingBot.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("shutdown complete")
}
