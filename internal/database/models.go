package database

import (
	"time"
)

// BotState is the user's bot run state.
type BotState string

const (
	BotStopped BotState = "stopped"
	BotRunning BotState = "running"
	BotPaused  BotState = "paused"
)

// TradingMode selects paper or real execution.
type TradingMode string

const (
	ModePaper TradingMode = "paper"
	ModeReal  TradingMode = "real"
)

// OperationResult is the settled outcome of an operation.
type OperationResult string

const (
	ResultOpen OperationResult = "OPEN"
	ResultWin  OperationResult = "WIN"
	ResultLoss OperationResult = "LOSS"
)

// AccountSettings is the single per-user configuration row. The trading
// core only ever mutates Balance; everything else is user-driven.
type AccountSettings struct {
	UserID       string      `json:"userId"`
	Balance      float64     `json:"balance"`
	Leverage     int         `json:"leverage"`
	RiskPerTrade float64     `json:"riskPerTrade"`
	MaxPositions int         `json:"maxPositions"`
	TradingMode  TradingMode `json:"tradingMode"`
	BotState     BotState    `json:"botState"`
	AutoTrading  bool        `json:"autoTrading"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Position is an open trade. Deleted from the table once settled; the
// matching Operation row carries the history.
type Position struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"userId"`
	Symbol          string    `json:"symbol"`
	Direction       string    `json:"direction"`
	EntryPrice      float64   `json:"entryPrice"`
	CurrentPrice    float64   `json:"currentPrice"`
	StopLoss        float64   `json:"stopLoss"`
	TakeProfit      float64   `json:"takeProfit"`
	Quantity        float64   `json:"quantity"`
	ProjectedProfit float64   `json:"projectedProfit"`
	PnL             float64   `json:"pnl"`
	RewardRisk      float64   `json:"rewardRisk"`
	PatternID       string    `json:"patternId,omitempty"`
	OrderID         string    `json:"orderId"`
	OpenedAt        time.Time `json:"openedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Operation mirrors a position's entry fields plus its exit. Created at
// execution time with result OPEN; closed exactly once.
type Operation struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"userId"`
	Symbol     string          `json:"symbol"`
	Direction  string          `json:"direction"`
	EntryPrice float64         `json:"entryPrice"`
	ExitPrice  *float64        `json:"exitPrice,omitempty"`
	Quantity   float64         `json:"quantity"`
	StopLoss   float64         `json:"stopLoss"`
	TakeProfit float64         `json:"takeProfit"`
	RewardRisk float64         `json:"rewardRisk"`
	PatternID  string          `json:"patternId,omitempty"`
	Result     OperationResult `json:"result"`
	PnL        *float64        `json:"pnl,omitempty"`
	OpenedAt   time.Time       `json:"openedAt"`
	ClosedAt   *time.Time      `json:"closedAt,omitempty"`
}
