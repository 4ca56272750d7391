// Package supervisor watches open positions: it refreshes mark prices,
// evaluates stop-loss and take-profit exits, closes positions and
// settles realized PnL into the account balance and pattern memory.
package supervisor

import (
	"context"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"smc-trading-bot/internal/binance"
	"smc-trading-bot/internal/database"
	"smc-trading-bot/internal/events"
	"smc-trading-bot/internal/patterns"
	"smc-trading-bot/internal/risk"
	"smc-trading-bot/internal/trading"
)

// Store is the persistence surface the supervisor needs.
type Store interface {
	GetOpenPositions(ctx context.Context, userID string) ([]*database.Position, error)
	GetPositionByID(ctx context.Context, userID string, positionID int64) (*database.Position, error)
	UpdatePositionPrice(ctx context.Context, positionID int64, currentPrice, pnl float64) error
	SettlePosition(ctx context.Context, pos *database.Position, exitPrice float64, result database.OperationResult, pnl float64) (float64, error)
}

// Supervisor runs the position lifecycle.
type Supervisor struct {
	store    Store
	patterns patterns.Store
	bus      *events.EventBus
	logger   zerolog.Logger

	// Relative tolerance for the quantity reconstruction check.
	quantityTolerance float64
}

// New creates a position supervisor.
func New(store Store, patternStore patterns.Store, bus *events.EventBus, logger zerolog.Logger, quantityTolerance float64) *Supervisor {
	if quantityTolerance <= 0 {
		quantityTolerance = 1e-6
	}
	return &Supervisor{
		store:             store,
		patterns:          patternStore,
		bus:               bus,
		logger:            logger,
		quantityTolerance: quantityTolerance,
	}
}

// RunCycle evaluates every open position for one user. Failures are
// isolated per asset: a bad price fetch or a failed close only skips
// that position until the next cycle.
func (s *Supervisor) RunCycle(ctx context.Context, userID string, client binance.ExchangeClient, mode database.TradingMode) {
	positions, err := s.store.GetOpenPositions(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user", userID).Msg("failed to load open positions")
		return
	}

	for _, pos := range positions {
		s.evaluate(ctx, userID, pos, client, mode)
	}
}

func (s *Supervisor) evaluate(ctx context.Context, userID string, pos *database.Position, client binance.ExchangeClient, mode database.TradingMode) {
	log := s.logger.With().Str("user", userID).Str("symbol", pos.Symbol).Int64("position", pos.ID).Logger()

	price, err := client.GetPrice(ctx, pos.Symbol)
	if err != nil {
		log.Warn().Err(err).Msg("price fetch failed, retrying next cycle")
		return
	}

	// Quantity must be reconstructible from the stored fields; a mismatch
	// means the row is inconsistent and must not drive money movement.
	qty, err := risk.ReconstructQuantity(pos.ProjectedProfit, pos.TakeProfit, pos.EntryPrice)
	if err != nil || math.Abs(qty-pos.Quantity) > s.quantityTolerance*math.Max(1, pos.Quantity) {
		detail := "quantity reconstruction mismatch on position " + strconv.FormatInt(pos.ID, 10)
		if err != nil {
			detail = err.Error()
		}
		log.Error().Float64("stored", pos.Quantity).Float64("reconstructed", qty).Msg("quantity reconstruction mismatch")
		s.bus.PublishInvariantViolation(userID, detail)
		return
	}

	pnl := unrealizedPnL(pos.Direction, pos.EntryPrice, price, qty)

	result, exitPrice := evaluateExit(pos, price)
	if result == database.ResultOpen {
		if err := s.store.UpdatePositionPrice(ctx, pos.ID, price, pnl); err != nil {
			log.Warn().Err(err).Msg("failed to persist price refresh")
			return
		}
		s.bus.PublishPositionUpdate(userID, pos.Symbol, price, pnl)
		return
	}

	realized := unrealizedPnL(pos.Direction, pos.EntryPrice, exitPrice, qty)
	s.close(ctx, userID, pos, client, mode, exitPrice, result, realized, log)
}

// CloseManual closes a position on user request at its last known price.
// The result is decided by the sign of the realized PnL.
func (s *Supervisor) CloseManual(ctx context.Context, userID string, positionID int64, client binance.ExchangeClient, mode database.TradingMode) error {
	pos, err := s.store.GetPositionByID(ctx, userID, positionID)
	if err != nil {
		return err
	}

	qty, err := risk.ReconstructQuantity(pos.ProjectedProfit, pos.TakeProfit, pos.EntryPrice)
	if err != nil {
		return err
	}
	if math.Abs(qty-pos.Quantity) > s.quantityTolerance*math.Max(1, pos.Quantity) {
		return &trading.InvariantViolation{Detail: "quantity reconstruction mismatch on manual close"}
	}

	exitPrice := pos.CurrentPrice
	pnl := unrealizedPnL(pos.Direction, pos.EntryPrice, exitPrice, qty)
	result := database.ResultLoss
	if pnl >= 0 {
		result = database.ResultWin
	}

	log := s.logger.With().Str("user", userID).Str("symbol", pos.Symbol).Int64("position", pos.ID).Logger()
	return s.close(ctx, userID, pos, client, mode, exitPrice, result, pnl, log)
}

// close runs the shared closing path: exchange close order in real mode,
// atomic settlement, pattern memory update and events. A failed exchange
// close leaves the position open for retry on the next cycle.
func (s *Supervisor) close(ctx context.Context, userID string, pos *database.Position, client binance.ExchangeClient, mode database.TradingMode, exitPrice float64, result database.OperationResult, pnl float64, log zerolog.Logger) error {
	if mode == database.ModeReal {
		side := binance.SideSell
		if pos.Direction == "short" {
			side = binance.SideBuy
		}
		_, err := client.PlaceMarketOrder(ctx, binance.OrderRequest{
			Symbol:   pos.Symbol,
			Side:     side,
			Quantity: strconv.FormatFloat(pos.Quantity, 'f', -1, 64),
			Price:    exitPrice,
		})
		if err != nil {
			log.Error().Err(err).Msg("exchange close failed, position stays open")
			s.bus.PublishError(userID, "supervisor", "exchange close failed", err)
			return err
		}
	}

	balance, err := s.store.SettlePosition(ctx, pos, exitPrice, result, pnl)
	if err != nil {
		log.Error().Err(err).Msg("settlement failed")
		return err
	}

	if pos.PatternID != "" {
		win := result == database.ResultWin
		if err := s.patterns.Record(ctx, userID, pos.PatternID, win, pnl); err != nil {
			log.Warn().Err(err).Msg("pattern record failed")
		}
	}

	log.Info().
		Str("result", string(result)).
		Float64("exit", exitPrice).
		Float64("pnl", pnl).
		Float64("balance", balance).
		Msg("position closed")
	s.bus.PublishPositionClosed(userID, pos.Symbol, string(result), exitPrice, pnl, balance)
	s.bus.PublishBalanceUpdate(userID, balance)
	return nil
}

// evaluateExit applies the SL/TP rules. Long positions lose at or below
// the stop and win at or above the target; shorts mirror.
func evaluateExit(pos *database.Position, price float64) (database.OperationResult, float64) {
	if pos.Direction == "long" {
		if price <= pos.StopLoss {
			return database.ResultLoss, price
		}
		if price >= pos.TakeProfit {
			return database.ResultWin, price
		}
	} else {
		if price >= pos.StopLoss {
			return database.ResultLoss, price
		}
		if price <= pos.TakeProfit {
			return database.ResultWin, price
		}
	}
	return database.ResultOpen, 0
}

func unrealizedPnL(direction string, entry, current, qty float64) float64 {
	if direction == "long" {
		return (current - entry) * qty
	}
	return (entry - current) * qty
}
