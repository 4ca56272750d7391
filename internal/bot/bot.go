// Package bot runs the per-user trading loops. The analysis loop turns
// market data into structure context, sweep signals and gated
// executions; the supervisor loop manages the open positions.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smc-trading-bot/config"
	"smc-trading-bot/internal/analysis"
	"smc-trading-bot/internal/binance"
	"smc-trading-bot/internal/confluence"
	"smc-trading-bot/internal/database"
	"smc-trading-bot/internal/events"
	"smc-trading-bot/internal/execution"
	"smc-trading-bot/internal/patterns"
	"smc-trading-bot/internal/risk"
	"smc-trading-bot/internal/strategy"
	"smc-trading-bot/internal/supervisor"
	"smc-trading-bot/internal/trading"
	"smc-trading-bot/internal/vault"
)

// Bot owns the trading loops for one user. Market data always flows
// through the public client; order dispatch goes through a per-mode
// execution client resolved each time a decision passes the gate.
type Bot struct {
	userID     string
	cfg        *config.Config
	repo       *database.Repository
	creds      *vault.Client
	executor   *execution.Executor
	supervisor *supervisor.Supervisor
	patterns   patterns.Store
	bus        *events.EventBus
	logger     zerolog.Logger

	market      binance.ExchangeClient
	strategyCfg strategy.Config
	gateParams  confluence.Params

	mu       sync.Mutex
	states   map[string]*strategy.State
	paper    *binance.PaperClient
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New wires a bot for one user.
func New(userID string, cfg *config.Config, repo *database.Repository, creds *vault.Client, exec *execution.Executor, sup *supervisor.Supervisor, patternStore patterns.Store, bus *events.EventBus, logger zerolog.Logger) *Bot {
	timeout := time.Duration(cfg.BinanceConfig.TimeoutSeconds) * time.Second

	strategyCfg := strategy.DefaultConfig()
	if cfg.AnalysisConfig.MinZoneStrength > 0 {
		strategyCfg.MinZoneStrength = cfg.AnalysisConfig.MinZoneStrength
	}
	if cfg.AnalysisConfig.SweepThresholdPct > 0 {
		strategyCfg.SweepThresholdPct = cfg.AnalysisConfig.SweepThresholdPct
	}
	if cfg.AnalysisConfig.MaxActiveEntries > 0 {
		strategyCfg.MaxActiveEntries = cfg.AnalysisConfig.MaxActiveEntries
	}
	if cfg.AnalysisConfig.EntryWindowMins > 0 {
		strategyCfg.EntryWindow = time.Duration(cfg.AnalysisConfig.EntryWindowMins) * time.Minute
	}
	if cfg.AnalysisConfig.RetentionHours > 0 {
		strategyCfg.Retention = time.Duration(cfg.AnalysisConfig.RetentionHours) * time.Hour
	}

	gateParams := confluence.DefaultParams()
	if cfg.TradingConfig.ExecuteThreshold > 0 {
		gateParams.ExecuteThreshold = cfg.TradingConfig.ExecuteThreshold
	}
	if cfg.TradingConfig.ConfluenceWeight > 0 {
		gateParams.BlendWeight = cfg.TradingConfig.ConfluenceWeight
	}
	if cfg.TradingConfig.MinRewardRiskAuto > 0 {
		gateParams.MinRewardRiskAuto = cfg.TradingConfig.MinRewardRiskAuto
	}
	if cfg.TradingConfig.MinRewardRiskChecklist > 0 {
		gateParams.MinRewardRiskChecked = cfg.TradingConfig.MinRewardRiskChecklist
	}

	return &Bot{
		userID:      userID,
		cfg:         cfg,
		repo:        repo,
		creds:       creds,
		executor:    exec,
		supervisor:  sup,
		patterns:    patternStore,
		bus:         bus,
		logger:      logger.With().Str("component", "bot").Str("user", userID).Logger(),
		market:      binance.NewClient("", "", cfg.BinanceConfig.BaseURL, timeout),
		strategyCfg: strategyCfg,
		gateParams:  gateParams,
		states:      make(map[string]*strategy.State),
	}
}

// Start launches the analysis and supervisor loops and persists the
// running state. Idempotent when already running.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return b.repo.SetBotState(ctx, b.userID, database.BotRunning)
	}
	if err := b.repo.SetBotState(ctx, b.userID, database.BotRunning); err != nil {
		return err
	}

	b.stopChan = make(chan struct{})
	b.running = true

	b.wg.Add(2)
	go b.analysisLoop()
	go b.superviseLoop()

	b.publishState(database.BotRunning)
	b.logger.Info().Msg("bot started")
	return nil
}

// Pause keeps the loops alive but stops new entries. Open positions
// stay supervised.
func (b *Bot) Pause(ctx context.Context) error {
	if err := b.repo.SetBotState(ctx, b.userID, database.BotPaused); err != nil {
		return err
	}
	b.publishState(database.BotPaused)
	b.logger.Info().Msg("bot paused")
	return nil
}

// Stop shuts the loops down and persists the stopped state.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return b.repo.SetBotState(ctx, b.userID, database.BotStopped)
	}
	close(b.stopChan)
	b.running = false
	b.mu.Unlock()

	b.wg.Wait()

	if err := b.repo.SetBotState(ctx, b.userID, database.BotStopped); err != nil {
		return err
	}
	b.publishState(database.BotStopped)
	b.logger.Info().Msg("bot stopped")
	return nil
}

// Shutdown stops the loops without persisting a state change, so a
// running bot resumes after a process restart.
func (b *Bot) Shutdown() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	close(b.stopChan)
	b.running = false
	b.mu.Unlock()
	b.wg.Wait()
}

// Running reports whether the loops are live.
func (b *Bot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// ClosePosition closes one open position on user request at its last
// known price.
func (b *Bot) ClosePosition(ctx context.Context, positionID int64) error {
	settings, err := b.repo.GetAccountSettings(ctx, b.userID)
	if err != nil {
		return err
	}
	client, err := b.executionClient(ctx, settings)
	if err != nil {
		return err
	}
	return b.supervisor.CloseManual(ctx, b.userID, positionID, client, settings.TradingMode)
}

// The ticker drops ticks while a cycle is still running, so slow cycles
// are skipped rather than queued.
func (b *Bot) analysisLoop() {
	defer b.wg.Done()

	interval := time.Duration(b.cfg.TradingConfig.AnalysisIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Each cycle gets the tick interval as its deadline so an
			// overrun is cut off instead of piling up behind the ticker.
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			b.analysisCycle(ctx)
			cancel()
		case <-b.stopChan:
			return
		}
	}
}

func (b *Bot) superviseLoop() {
	defer b.wg.Done()

	interval := time.Duration(b.cfg.SupervisorConfig.PollIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			b.superviseCycle(ctx)
			cancel()
		case <-b.stopChan:
			return
		}
	}
}

func (b *Bot) analysisCycle(ctx context.Context) {
	settings, err := b.repo.GetAccountSettings(ctx, b.userID)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to load account settings")
		return
	}
	if settings.BotState != database.BotRunning {
		return
	}

	for _, symbol := range b.cfg.TradingConfig.Symbols {
		b.analyzeSymbol(ctx, settings, symbol)
	}
}

func (b *Bot) superviseCycle(ctx context.Context) {
	settings, err := b.repo.GetAccountSettings(ctx, b.userID)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to load account settings")
		return
	}
	if settings.BotState == database.BotStopped {
		return
	}

	client, err := b.executionClient(ctx, settings)
	if err != nil {
		b.logger.Error().Err(err).Msg("no execution client for supervision")
		return
	}
	b.supervisor.RunCycle(ctx, b.userID, client, settings.TradingMode)
}

// analyzeSymbol runs the full pipeline for one symbol: higher-timeframe
// context, entry-timeframe structure snapshot, liquidity-sweep scan,
// decision gate and, when everything passes, sized execution. Data
// failures are transient and retried next cycle.
func (b *Bot) analyzeSymbol(ctx context.Context, settings *database.AccountSettings, symbol string) {
	log := b.logger.With().Str("symbol", symbol).Logger()
	now := time.Now().UTC()

	htf, err := b.market.GetKlines(ctx, symbol, b.cfg.TradingConfig.HigherTimeframe, b.cfg.TradingConfig.KlineLimit)
	if err != nil {
		log.Warn().Err(err).Msg("higher timeframe fetch failed, retrying next cycle")
		return
	}
	tradingCtx := analysis.BuildContext(htf, now)

	candles, err := b.market.GetKlines(ctx, symbol, b.cfg.TradingConfig.EntryTimeframe, b.cfg.TradingConfig.KlineLimit)
	if err != nil {
		log.Warn().Err(err).Msg("entry timeframe fetch failed, retrying next cycle")
		return
	}
	if len(candles) == 0 {
		return
	}
	snap := analysis.Analyze(candles, len(candles)-1)

	state := b.state(symbol)
	strategy.Cleanup(state, b.strategyCfg, now)
	result := strategy.Analyze(state, b.strategyCfg, candles, now)

	for i := range result.Entries {
		ep := &result.Entries[i]
		b.bus.PublishSignal(b.userID, symbol, string(ep.Direction), ep.Price, ep.StopLoss, ep.Confidence)
	}

	poi := strategy.BestEntry(result.Entries)

	patternID := ""
	patternScore := 50.0
	if poi != nil {
		patternID = patterns.IDForEntry(poi, snap, tradingCtx.Session)
		if score, err := b.patterns.Score(ctx, b.userID, patternID); err == nil {
			patternScore = score
		} else {
			log.Warn().Err(err).Msg("pattern score lookup failed, using neutral")
		}
	}

	cl := buildChecklist(snap, poi, b.gateParams.MinRewardRiskAuto)
	decision := confluence.Decide(tradingCtx, cl, poi, patternScore, b.gateParams, false)
	b.bus.PublishDecision(b.userID, symbol, decision.Execute, decision.Reason, decision.CombinedScore)
	if !decision.Execute {
		log.Debug().Str("reason", decision.Reason).Float64("combined", decision.CombinedScore).Msg("decision held")
		return
	}
	if !settings.AutoTrading {
		log.Info().Float64("combined", decision.CombinedScore).Msg("decision passed but auto trading is off")
		return
	}

	b.execute(ctx, settings, symbol, poi, patternID, log)
}

func (b *Bot) execute(ctx context.Context, settings *database.AccountSettings, symbol string, poi *strategy.EntryPoint, patternID string, log zerolog.Logger) {
	open, err := b.repo.CountOpenPositions(ctx, b.userID)
	if err != nil {
		log.Error().Err(err).Msg("failed to count open positions")
		return
	}
	hasOpen, err := b.repo.HasOpenPosition(ctx, b.userID, symbol)
	if err != nil {
		log.Error().Err(err).Msg("failed to check open position")
		return
	}

	if err := risk.Check(risk.Preconditions{
		BotRunning:     true,
		Balance:        settings.Balance,
		MinBalance:     b.cfg.TradingConfig.MinBalance,
		OpenPositions:  open,
		MaxPositions:   settings.MaxPositions,
		HasOpenOnAsset: hasOpen,
		Asset:          symbol,
		RewardRisk:     poi.RewardRisk,
		MinRewardRisk:  b.gateParams.MinRewardRiskAuto,
	}); err != nil {
		log.Info().Err(err).Msg("execution preconditions not met")
		return
	}

	sizing, err := risk.Size(settings.Balance, settings.RiskPerTrade, float64(settings.Leverage), poi.Price, poi.StopLoss, poi.TakeProfits[1])
	if err != nil {
		log.Warn().Err(err).Msg("sizing failed")
		return
	}

	client, err := b.executionClient(ctx, settings)
	if err != nil {
		log.Error().Err(err).Msg("execution client unavailable")
		b.bus.PublishError(b.userID, "bot", "execution client unavailable", err)
		return
	}

	_, err = b.executor.Execute(ctx, client, execution.Request{
		UserID:          b.userID,
		Symbol:          symbol,
		SignalID:        confluence.SignalID(poi),
		PatternID:       patternID,
		Entry:           poi,
		Quantity:        sizing.Quantity,
		RiskAmount:      sizing.RiskAmount,
		ProjectedProfit: sizing.ProjectedProfit,
	})
	switch {
	case err == nil:
	case trading.IsValidation(err):
		log.Debug().Err(err).Msg("execution skipped")
	case errors.Is(err, trading.ErrUnknownOutcome):
		log.Error().Err(err).Msg("order outcome unknown")
	default:
		log.Error().Err(err).Msg("execution failed")
		b.bus.PublishError(b.userID, "bot", "execution failed", err)
	}
}

// executionClient resolves the per-mode order client. Real mode signs
// with the user's stored credentials; missing credentials block
// execution but never analysis. Paper mode reuses one simulated client
// so its fills and balance persist across cycles.
func (b *Bot) executionClient(ctx context.Context, settings *database.AccountSettings) (binance.ExchangeClient, error) {
	timeout := time.Duration(b.cfg.BinanceConfig.TimeoutSeconds) * time.Second

	if settings.TradingMode == database.ModeReal {
		creds, err := b.creds.GetCredentials(ctx, b.userID)
		if err != nil {
			return nil, &trading.ConfigurationError{Reason: "exchange credentials unavailable: " + err.Error()}
		}
		return binance.NewExchangeClient(binance.ModeReal, creds.APIKey, creds.SecretKey, b.cfg.BinanceConfig.BaseURL, timeout, 0), nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paper == nil {
		b.paper = binance.NewPaperClient(b.market, settings.Balance)
	}
	return b.paper, nil
}

func (b *Bot) state(symbol string) *strategy.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[symbol]
	if !ok {
		st = strategy.NewState(symbol)
		b.states[symbol] = st
	}
	return st
}

func (b *Bot) publishState(state database.BotState) {
	b.bus.Publish(events.Event{
		Type:      events.EventBotStateChanged,
		UserID:    b.userID,
		Timestamp: time.Now().UTC(),
		Data:      map[string]interface{}{"state": string(state)},
	})
}

// buildChecklist reads the structure snapshot against the candidate's
// direction. Longs want bullish structure in discount; shorts mirror.
func buildChecklist(snap analysis.Snapshot, poi *strategy.EntryPoint, minRewardRisk float64) confluence.Checklist {
	cl := confluence.Checklist{
		SweepDetected: snap.Sweep != analysis.SweepNone,
		FVGPresent:    snap.FVG != analysis.FVGNone,
	}
	if poi == nil {
		return cl
	}
	if poi.Direction == strategy.Long {
		cl.StructureConfirmed = snap.Structure == analysis.BOSUp || snap.Structure == analysis.CHOCHUp
		cl.ZoneCorrect = snap.Zone == analysis.ZoneDiscount
	} else {
		cl.StructureConfirmed = snap.Structure == analysis.BOSDown || snap.Structure == analysis.CHOCHDown
		cl.ZoneCorrect = snap.Zone == analysis.ZonePremium
	}
	cl.RewardRiskValid = poi.RewardRisk >= minRewardRisk
	return cl
}
