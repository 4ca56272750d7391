// Package execution turns an approved, sized decision into an exchange
// order and the matching bookkeeping records. It owns the signal
// deduplication, exchange-rule rounding and the atomic position plus
// operation insert.
package execution

import (
	"context"
	"errors"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"smc-trading-bot/internal/binance"
	"smc-trading-bot/internal/database"
	"smc-trading-bot/internal/events"
	"smc-trading-bot/internal/strategy"
	"smc-trading-bot/internal/trading"
)

// Store is the persistence surface the executor needs.
type Store interface {
	CreatePositionWithOperation(ctx context.Context, pos *database.Position, op *database.Operation) error
}

// SignalTracker is the atomic executed-signal claim store.
type SignalTracker interface {
	MarkExecuted(ctx context.Context, userID, signalID string) (bool, error)
	Clear(ctx context.Context, userID, signalID string) error
}

// Executor dispatches sized orders and records the results.
type Executor struct {
	store   Store
	tracker SignalTracker
	bus     *events.EventBus
	logger  zerolog.Logger
}

// NewExecutor creates the order executor.
func NewExecutor(store Store, tracker SignalTracker, bus *events.EventBus, logger zerolog.Logger) *Executor {
	return &Executor{
		store:   store,
		tracker: tracker,
		bus:     bus,
		logger:  logger,
	}
}

// Request is one fully approved execution intent.
type Request struct {
	UserID     string
	Symbol     string
	SignalID   string
	PatternID  string
	Entry      *strategy.EntryPoint
	Quantity   float64
	RiskAmount float64
	// ProjectedProfit to the managed take-profit; the quantity must stay
	// reconstructible from it.
	ProjectedProfit float64
}

// Execute claims the signal, validates the quantity against exchange
// rules, dispatches the market order and records the position and its
// OPEN operation atomically. On a clean failure before the order reaches
// the exchange the signal claim is released; after an ambiguous failure
// it is kept and the order is surfaced for reconciliation.
func (e *Executor) Execute(ctx context.Context, client binance.ExchangeClient, req Request) (*database.Position, error) {
	log := e.logger.With().Str("user", req.UserID).Str("symbol", req.Symbol).Logger()

	claimed, err := e.tracker.MarkExecuted(ctx, req.UserID, req.SignalID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		log.Debug().Str("signal", req.SignalID).Msg("signal already executed, skipping")
		return nil, &trading.ValidationError{Reason: "signal already executed"}
	}

	filters, err := client.GetSymbolFilters(ctx, req.Symbol)
	if err != nil {
		log.Warn().Err(err).Msg("symbol filter lookup failed, using conservative defaults")
		filters = binance.DefaultFilters(req.Symbol)
	}

	quantityStr, quantity, err := roundQuantity(req.Quantity, req.Entry.Price, filters)
	if err != nil {
		e.release(ctx, req)
		return nil, err
	}

	side := binance.SideBuy
	if req.Entry.Direction == strategy.Short {
		side = binance.SideSell
	}

	result, err := client.PlaceMarketOrder(ctx, binance.OrderRequest{
		Symbol:   req.Symbol,
		Side:     side,
		Quantity: quantityStr,
		Price:    req.Entry.Price,
	})
	if err != nil {
		return nil, e.orderFailure(ctx, req, err, log)
	}

	fillPrice := result.Price
	if fillPrice <= 0 {
		fillPrice = req.Entry.Price
	}

	now := time.Now().UTC()
	pos := &database.Position{
		UserID:          req.UserID,
		Symbol:          req.Symbol,
		Direction:       string(req.Entry.Direction),
		EntryPrice:      fillPrice,
		CurrentPrice:    fillPrice,
		StopLoss:        req.Entry.StopLoss,
		TakeProfit:      req.Entry.TakeProfits[1],
		Quantity:        quantity,
		ProjectedProfit: quantity * math.Abs(req.Entry.TakeProfits[1]-fillPrice),
		RewardRisk:      req.Entry.RewardRisk,
		PatternID:       req.PatternID,
		OrderID:         result.OrderID,
		OpenedAt:        now,
	}
	op := &database.Operation{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Direction:  string(req.Entry.Direction),
		EntryPrice: fillPrice,
		Quantity:   quantity,
		StopLoss:   req.Entry.StopLoss,
		TakeProfit: req.Entry.TakeProfits[1],
		RewardRisk: req.Entry.RewardRisk,
		PatternID:  req.PatternID,
		Result:     database.ResultOpen,
		OpenedAt:   now,
	}

	if err := e.store.CreatePositionWithOperation(ctx, pos, op); err != nil {
		// The order is live on the exchange but bookkeeping failed. Alert
		// loudly; this position must be reconciled by hand.
		detail := "order " + result.OrderID + " filled but position insert failed: " + err.Error()
		log.Error().Err(err).Str("order", result.OrderID).Msg("position insert failed after fill")
		e.bus.PublishInvariantViolation(req.UserID, detail)
		return nil, &trading.InvariantViolation{Detail: detail}
	}

	log.Info().
		Str("order", result.OrderID).
		Float64("entry", fillPrice).
		Float64("quantity", quantity).
		Msg("position opened")
	e.bus.PublishPositionOpened(req.UserID, req.Symbol, pos.Direction, fillPrice, quantity)

	return pos, nil
}

// orderFailure maps a dispatch error. Exchange rejections release the
// signal claim; ambiguous timeouts keep it and raise a reconciliation
// event so the order is never silently assumed successful.
func (e *Executor) orderFailure(ctx context.Context, req Request, err error, log zerolog.Logger) error {
	var apiErr *binance.APIError
	if errors.As(err, &apiErr) {
		log.Warn().Int("code", apiErr.Code).Str("msg", apiErr.Message).Msg("exchange rejected order")
		e.release(ctx, req)
		return &trading.ExchangeError{Code: apiErr.Code, Message: apiErr.Message}
	}

	if isAmbiguous(err) {
		log.Error().Err(err).Msg("order outcome unknown, keeping signal claim for reconciliation")
		e.bus.PublishReconcileRequired(req.UserID, req.Symbol, req.SignalID, err)
		return trading.ErrUnknownOutcome
	}

	// Transport failure before the request could have reached the
	// exchange.
	e.release(ctx, req)
	return err
}

func (e *Executor) release(ctx context.Context, req Request) {
	if err := e.tracker.Clear(ctx, req.UserID, req.SignalID); err != nil {
		e.logger.Warn().Err(err).Str("signal", req.SignalID).Msg("failed to release signal claim")
	}
}

// isAmbiguous reports whether the order may have reached the exchange
// despite the error.
func isAmbiguous(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// roundQuantity rounds down to the step size and formats to the symbol's
// quantity precision. Rounding is always toward zero so the order can
// never exceed the sized risk.
func roundQuantity(quantity, price float64, filters binance.SymbolFilters) (string, float64, error) {
	// The epsilon guards against float residue pushing an exact multiple
	// just below the integer boundary; it never promotes a real fraction.
	const eps = 1e-9
	if filters.StepSize > 0 {
		quantity = math.Floor(quantity/filters.StepSize+eps) * filters.StepSize
	}

	// Truncate, never round up, before formatting.
	factor := math.Pow(10, float64(filters.QuantityPrecision))
	quantity = math.Floor(quantity*factor+eps) / factor

	formatted := strconv.FormatFloat(quantity, 'f', filters.QuantityPrecision, 64)
	quantity, _ = strconv.ParseFloat(formatted, 64)

	if quantity < filters.MinQuantity || quantity <= 0 {
		return "", 0, &trading.ValidationError{Reason: "quantity below exchange minimum"}
	}
	if filters.MinNotional > 0 && quantity*price < filters.MinNotional {
		return "", 0, &trading.ValidationError{Reason: "order notional below exchange minimum"}
	}

	return formatted, quantity, nil
}
