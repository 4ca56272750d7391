// Package database persists the trading core's state: account settings,
// open positions, the operation history and pattern statistics, plus the
// Redis-backed signal deduplication tracker.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection pool and verifies it.
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("running database migrations")

	migrations := []string{
		// One settings row per user; balance is the only field the trading
		// core mutates, always via atomic increment.
		`CREATE TABLE IF NOT EXISTS account_settings (
			user_id VARCHAR(64) PRIMARY KEY,
			balance DECIMAL(20, 8) NOT NULL DEFAULT 0,
			leverage INTEGER NOT NULL DEFAULT 1,
			risk_per_trade DECIMAL(6, 4) NOT NULL DEFAULT 0.01,
			max_positions INTEGER NOT NULL DEFAULT 3,
			trading_mode VARCHAR(10) NOT NULL DEFAULT 'paper',
			bot_state VARCHAR(10) NOT NULL DEFAULT 'stopped',
			auto_trading BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Positions hold only the open set; rows are deleted on close. The
		// unique index enforces at most one open position per (user, asset)
		// atomically with the insert.
		`CREATE TABLE IF NOT EXISTS positions (
			id SERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			direction VARCHAR(5) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			current_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			take_profit DECIMAL(20, 8) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			projected_profit DECIMAL(20, 8) NOT NULL,
			pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			reward_risk DECIMAL(10, 4) NOT NULL,
			pattern_id VARCHAR(128),
			order_id VARCHAR(64),
			opened_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_user_symbol
			ON positions(user_id, symbol)`,

		// Operation history; rows are append-only once closed.
		`CREATE TABLE IF NOT EXISTS operations (
			id SERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			direction VARCHAR(5) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8),
			quantity DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			take_profit DECIMAL(20, 8) NOT NULL,
			reward_risk DECIMAL(10, 4) NOT NULL,
			pattern_id VARCHAR(128),
			result VARCHAR(4) NOT NULL DEFAULT 'OPEN',
			pnl DECIMAL(20, 8),
			opened_at TIMESTAMP NOT NULL,
			closed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_user ON operations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_result ON operations(result)`,

		// Pattern statistics; counters only grow except on explicit reset.
		`CREATE TABLE IF NOT EXISTS pattern_stats (
			user_id VARCHAR(64) NOT NULL,
			pattern_id VARCHAR(128) NOT NULL,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			times_tested INTEGER NOT NULL DEFAULT 0,
			accumulated_reward DECIMAL(20, 8) NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, pattern_id)
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Int("count", len(migrations)).Msg("migrations complete")
	return nil
}
