package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// ACCOUNT SETTINGS
// ============================================================================

// GetAccountSettings retrieves a user's settings row, creating the
// default row on first access.
func (r *Repository) GetAccountSettings(ctx context.Context, userID string) (*AccountSettings, error) {
	query := `
		SELECT user_id, balance, leverage, risk_per_trade, max_positions,
		       trading_mode, bot_state, auto_trading, created_at, updated_at
		FROM account_settings
		WHERE user_id = $1
	`
	settings := &AccountSettings{}
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&settings.UserID, &settings.Balance, &settings.Leverage, &settings.RiskPerTrade,
		&settings.MaxPositions, &settings.TradingMode, &settings.BotState,
		&settings.AutoTrading, &settings.CreatedAt, &settings.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.createDefaultSettings(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *Repository) createDefaultSettings(ctx context.Context, userID string) (*AccountSettings, error) {
	query := `
		INSERT INTO account_settings (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, balance, leverage, risk_per_trade, max_positions,
		          trading_mode, bot_state, auto_trading, created_at, updated_at
	`
	settings := &AccountSettings{}
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&settings.UserID, &settings.Balance, &settings.Leverage, &settings.RiskPerTrade,
		&settings.MaxPositions, &settings.TradingMode, &settings.BotState,
		&settings.AutoTrading, &settings.CreatedAt, &settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// SetBotState transitions the bot run state.
func (r *Repository) SetBotState(ctx context.Context, userID string, state BotState) error {
	query := `
		UPDATE account_settings
		SET bot_state = $2, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query, userID, state)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no settings row for user %s", userID)
	}
	return nil
}

// SetTradingMode toggles paper/real execution.
func (r *Repository) SetTradingMode(ctx context.Context, userID string, mode TradingMode) error {
	query := `
		UPDATE account_settings
		SET trading_mode = $2, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, userID, mode)
	return err
}

// SetAutoTrading toggles automatic execution of qualifying decisions.
func (r *Repository) SetAutoTrading(ctx context.Context, userID string, enabled bool) error {
	query := `
		UPDATE account_settings
		SET auto_trading = $2, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, userID, enabled)
	return err
}

// AdjustBalance applies a realized PnL delta as an atomic increment and
// returns the new balance. Concurrent settlements never lose updates.
func (r *Repository) AdjustBalance(ctx context.Context, userID string, delta float64) (float64, error) {
	query := `
		UPDATE account_settings
		SET balance = balance + $2, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
		RETURNING balance
	`
	var balance float64
	if err := r.db.Pool.QueryRow(ctx, query, userID, delta).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// ============================================================================
// POSITIONS & OPERATIONS
// ============================================================================

// ErrDuplicatePosition reports a second open position on the same asset.
var ErrDuplicatePosition = errors.New("position already open for this symbol")

// CreatePositionWithOperation inserts the position and its OPEN operation
// in one transaction. The unique (user_id, symbol) index makes the
// one-position-per-asset check atomic with the insert.
func (r *Repository) CreatePositionWithOperation(ctx context.Context, pos *Position, op *Operation) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	posQuery := `
		INSERT INTO positions (user_id, symbol, direction, entry_price, current_price,
		                       stop_loss, take_profit, quantity, projected_profit,
		                       pnl, reward_risk, pattern_id, order_id, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	err = tx.QueryRow(ctx, posQuery,
		pos.UserID, pos.Symbol, pos.Direction, pos.EntryPrice, pos.CurrentPrice,
		pos.StopLoss, pos.TakeProfit, pos.Quantity, pos.ProjectedProfit,
		pos.PnL, pos.RewardRisk, pos.PatternID, pos.OrderID, pos.OpenedAt,
	).Scan(&pos.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePosition
		}
		return fmt.Errorf("insert position: %w", err)
	}

	opQuery := `
		INSERT INTO operations (user_id, symbol, direction, entry_price, quantity,
		                        stop_loss, take_profit, reward_risk, pattern_id,
		                        result, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err = tx.QueryRow(ctx, opQuery,
		op.UserID, op.Symbol, op.Direction, op.EntryPrice, op.Quantity,
		op.StopLoss, op.TakeProfit, op.RewardRisk, op.PatternID,
		ResultOpen, op.OpenedAt,
	).Scan(&op.ID)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}

	return tx.Commit(ctx)
}

// GetOpenPositions returns the user's open positions.
func (r *Repository) GetOpenPositions(ctx context.Context, userID string) ([]*Position, error) {
	query := `
		SELECT id, user_id, symbol, direction, entry_price, current_price,
		       stop_loss, take_profit, quantity, projected_profit, pnl,
		       reward_risk, pattern_id, order_id, opened_at, updated_at
		FROM positions
		WHERE user_id = $1
		ORDER BY opened_at
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*Position
	for rows.Next() {
		pos := &Position{}
		err := rows.Scan(
			&pos.ID, &pos.UserID, &pos.Symbol, &pos.Direction, &pos.EntryPrice,
			&pos.CurrentPrice, &pos.StopLoss, &pos.TakeProfit, &pos.Quantity,
			&pos.ProjectedProfit, &pos.PnL, &pos.RewardRisk, &pos.PatternID,
			&pos.OrderID, &pos.OpenedAt, &pos.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// GetPositionByID fetches one position scoped to its owner.
func (r *Repository) GetPositionByID(ctx context.Context, userID string, positionID int64) (*Position, error) {
	query := `
		SELECT id, user_id, symbol, direction, entry_price, current_price,
		       stop_loss, take_profit, quantity, projected_profit, pnl,
		       reward_risk, pattern_id, order_id, opened_at, updated_at
		FROM positions
		WHERE id = $1 AND user_id = $2
	`
	pos := &Position{}
	err := r.db.Pool.QueryRow(ctx, query, positionID, userID).Scan(
		&pos.ID, &pos.UserID, &pos.Symbol, &pos.Direction, &pos.EntryPrice,
		&pos.CurrentPrice, &pos.StopLoss, &pos.TakeProfit, &pos.Quantity,
		&pos.ProjectedProfit, &pos.PnL, &pos.RewardRisk, &pos.PatternID,
		&pos.OrderID, &pos.OpenedAt, &pos.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pos, nil
}

// HasOpenPosition reports whether the user holds an open position on the
// symbol.
func (r *Repository) HasOpenPosition(ctx context.Context, userID, symbol string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM positions WHERE user_id = $1 AND symbol = $2)`
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, userID, symbol).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CountOpenPositions returns the user's open position count.
func (r *Repository) CountOpenPositions(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM positions WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// UpdatePositionPrice persists a non-terminal price/PnL refresh.
func (r *Repository) UpdatePositionPrice(ctx context.Context, positionID int64, currentPrice, pnl float64) error {
	query := `
		UPDATE positions
		SET current_price = $2, pnl = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, positionID, currentPrice, pnl)
	return err
}

// SettlePosition closes a position in one transaction: the position row
// is deleted, the matching OPEN operation gets its exit fields, and the
// realized PnL is added to the balance as an atomic increment. Returns
// the new balance.
func (r *Repository) SettlePosition(ctx context.Context, pos *Position, exitPrice float64, result OperationResult, pnl float64) (float64, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM positions WHERE id = $1 AND user_id = $2`,
		pos.ID, pos.UserID)
	if err != nil {
		return 0, fmt.Errorf("delete position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already settled by a concurrent close.
		return 0, fmt.Errorf("position %d already closed", pos.ID)
	}

	opQuery := `
		UPDATE operations
		SET exit_price = $1, result = $2, pnl = $3, closed_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM operations
			WHERE user_id = $4 AND symbol = $5 AND result = 'OPEN'
			ORDER BY opened_at DESC
			LIMIT 1
		)
	`
	if _, err := tx.Exec(ctx, opQuery, exitPrice, result, pnl, pos.UserID, pos.Symbol); err != nil {
		return 0, fmt.Errorf("settle operation: %w", err)
	}

	var balance float64
	balQuery := `
		UPDATE account_settings
		SET balance = balance + $2, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
		RETURNING balance
	`
	if err := tx.QueryRow(ctx, balQuery, pos.UserID, pnl).Scan(&balance); err != nil {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// GetOperations returns the user's operation history, newest first.
func (r *Repository) GetOperations(ctx context.Context, userID string, limit, offset int) ([]*Operation, error) {
	query := `
		SELECT id, user_id, symbol, direction, entry_price, exit_price, quantity,
		       stop_loss, take_profit, reward_risk, pattern_id, result, pnl,
		       opened_at, closed_at
		FROM operations
		WHERE user_id = $1
		ORDER BY opened_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var operations []*Operation
	for rows.Next() {
		op := &Operation{}
		err := rows.Scan(
			&op.ID, &op.UserID, &op.Symbol, &op.Direction, &op.EntryPrice,
			&op.ExitPrice, &op.Quantity, &op.StopLoss, &op.TakeProfit,
			&op.RewardRisk, &op.PatternID, &op.Result, &op.PnL,
			&op.OpenedAt, &op.ClosedAt,
		)
		if err != nil {
			return nil, err
		}
		operations = append(operations, op)
	}
	return operations, rows.Err()
}

// isUniqueViolation matches PostgreSQL error 23505.
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
