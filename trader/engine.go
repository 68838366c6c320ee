package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hedgegrid/config"
	"hedgegrid/logger"
	"hedgegrid/market"
)

// Engine lifecycle states
const (
	StateIdle             = "idle"
	StateRunning          = "running"
	StateStopped          = "stopped"
	StateEmergencyStopped = "emergency_stopped"
)

// ============================================================================
// Commands
// ============================================================================

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdResetDaily
	cmdManualOpen
	cmdCloseAll
)

type command struct {
	kind commandKind
	side string // for cmdManualOpen
}

// ============================================================================
// Status snapshot
// ============================================================================

// Status is a point-in-time copy of engine state, safe for the API goroutine
type Status struct {
	State               string          `json:"state"`
	Mode                string          `json:"mode"`
	Symbol              string          `json:"symbol"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	ATR                 decimal.Decimal `json:"atr"`
	ATRValid            bool            `json:"atr_valid"`
	OpenPositions       int             `json:"open_positions"`
	OpenLevels          int             `json:"open_levels"`
	CumulativePnL       decimal.Decimal `json:"cumulative_pnl"`
	Risk                RiskState       `json:"risk"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ============================================================================
// Engine
// ============================================================================

// Engine drives the strategy: one goroutine owns the ledger and risk
// state, polls the exchange, and evaluates triggers. External callers
// interact only through the command queue and published snapshots.
type Engine struct {
	cfg        *config.StrategyConfig
	exchange   Exchange
	ledger     *Ledger
	risk       *RiskController
	recorder   TradeRecorder
	thresholds Thresholds

	pollInterval time.Duration
	atrRefresh   time.Duration
	backoffBase  time.Duration
	backoffMax   time.Duration
	maxFails     int

	commands chan command
	stopCh   chan struct{}
	doneCh   chan struct{}

	// Cycle-owned state, touched only by the run goroutine
	state          string
	snapshot       market.Snapshot
	snapshotValid  bool
	lastATRRefresh time.Time
	currentPrice   decimal.Decimal
	cumulativePnL  decimal.Decimal
	consecFails    int
	gridBase       decimal.Decimal
	gridSpace      decimal.Decimal

	published *statusBoard
}

func NewEngine(cfg *config.StrategyConfig, exchange Exchange, recorder TradeRecorder) *Engine {
	return &Engine{
		cfg:          cfg,
		exchange:     exchange,
		ledger:       NewLedger(),
		risk:         NewRiskController(cfg),
		recorder:     recorder,
		thresholds:   ThresholdsFromConfig(cfg),
		pollInterval: time.Duration(cfg.PollIntervalSec) * time.Second,
		atrRefresh:   time.Duration(cfg.ATRRefreshSec) * time.Second,
		backoffBase:  time.Duration(cfg.BackoffBaseSec) * time.Second,
		backoffMax:   time.Duration(cfg.BackoffMaxSec) * time.Second,
		maxFails:     cfg.MaxConsecutiveFail,
		commands:     make(chan command, 16),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		state:        StateIdle,
		published:    newStatusBoard(),
	}
}

// Start prepares the account (leverage, initial entries or the grid
// ladder) and launches the poll loop goroutine
func (e *Engine) Start(ctx context.Context) error {
	if err := e.exchange.SetLeverage(ctx, e.cfg.Symbol, e.cfg.Leverage); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}

	e.refreshIndicator(ctx)

	switch e.cfg.Mode {
	case config.ModeGrid:
		if err := e.placeInitialGrid(ctx); err != nil {
			return fmt.Errorf("place initial grid: %w", err)
		}
	default:
		price, err := e.exchange.Ticker(ctx, e.cfg.Symbol)
		if err != nil {
			return fmt.Errorf("initial ticker: %w", err)
		}
		e.currentPrice = price
		e.ensureHedgePair(ctx)
	}

	e.state = StateRunning
	e.publish()
	go e.run(ctx)
	logger.Infof("🚀 engine started: %s %s mode, poll %s", e.cfg.Symbol, e.cfg.Mode, e.pollInterval)
	return nil
}

// Stop requests a graceful shutdown and waits for the loop to exit
func (e *Engine) Stop() {
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
	<-e.doneCh
}

// Done exposes loop termination, used by main to notice emergency stops
func (e *Engine) Done() <-chan struct{} {
	return e.doneCh
}

// ============================================================================
// Command queue: the only external mutation path (drained at cycle top)
// ============================================================================

func (e *Engine) enqueue(c command) error {
	select {
	case e.commands <- c:
		return nil
	default:
		return fmt.Errorf("engine: command queue full")
	}
}

func (e *Engine) Pause() error      { return e.enqueue(command{kind: cmdPause}) }
func (e *Engine) Resume() error     { return e.enqueue(command{kind: cmdResume}) }
func (e *Engine) ResetDaily() error { return e.enqueue(command{kind: cmdResetDaily}) }
func (e *Engine) CloseAll() error   { return e.enqueue(command{kind: cmdCloseAll}) }

func (e *Engine) ManualOpen(side string) error {
	if side != PositionLong && side != PositionShort {
		return fmt.Errorf("engine: invalid side %q", side)
	}
	return e.enqueue(command{kind: cmdManualOpen, side: side})
}

func (e *Engine) drainCommands(ctx context.Context) {
	for {
		select {
		case c := <-e.commands:
			e.handleCommand(ctx, c)
		default:
			return
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, c command) {
	switch c.kind {
	case cmdPause:
		e.risk.Pause()
		logger.Info("⏸️ trading paused by operator")
	case cmdResume:
		e.risk.Resume()
		logger.Info("▶️ trading resumed by operator")
	case cmdResetDaily:
		e.risk.ResetDaily()
		logger.Info("🔄 daily risk counters reset")
	case cmdManualOpen:
		if !e.risk.CheckFull(e.ledger.PositionCount()) {
			logger.Warnf("manual %s open refused by risk control", c.side)
			return
		}
		if err := e.openPosition(ctx, c.side); err != nil {
			logger.Errorf("manual %s open failed: %v", c.side, err)
		}
	case cmdCloseAll:
		e.closeAllPositions(ctx, ReasonManual)
	}
}

// ============================================================================
// Poll loop
// ============================================================================

func (e *Engine) run(ctx context.Context) {
	defer close(e.doneCh)

	for {
		select {
		case <-e.stopCh:
			e.shutdown(ctx)
			return
		case <-ctx.Done():
			e.shutdown(context.Background())
			return
		default:
		}

		e.drainCommands(ctx)

		if err := e.cycle(ctx); err != nil {
			if IsRejected(err) {
				// The exchange refused the request outright; the
				// connection is healthy, so retry at the normal pace
				// without feeding the failure counter
				logger.Errorf("cycle rejected: %v", err)
				e.publish()
				e.sleep(e.pollInterval)
				continue
			}
			e.consecFails++
			logger.Errorf("cycle failed (%d consecutive): %v", e.consecFails, err)

			if e.consecFails >= e.maxFails {
				e.emergencyStop(ctx)
				return
			}

			delay := backoffDelay(e.backoffBase, e.backoffMax, e.consecFails)
			logger.Warnf("backing off %s before retry", delay)
			e.publish()
			if !e.sleep(delay) {
				continue // stop requested, loop top handles it
			}
			e.reconcile(ctx)
		} else {
			e.consecFails = 0
			e.publish()
			if !e.sleep(e.pollInterval) {
				continue
			}
		}
	}
}

// backoffDelay is min(base × 2^(failures-1), max)
func backoffDelay(base, max time.Duration, failures int) time.Duration {
	if failures < 1 {
		return base
	}
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// sleep waits for d or until stop. Returns false when interrupted.
func (e *Engine) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.stopCh:
		return false
	case <-t.C:
		return true
	}
}

// cycle runs one full evaluation pass. An error return means the loop's
// own bookkeeping failed and feeds the backoff counter; per-entity
// action failures are logged and absorbed.
func (e *Engine) cycle(ctx context.Context) error {
	e.refreshIndicator(ctx)

	price, err := e.exchange.Ticker(ctx, e.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("ticker: %w", err)
	}
	e.currentPrice = price

	if !e.risk.CheckBasic() {
		return nil // paused or limit hit, healthy loop
	}

	switch e.cfg.Mode {
	case config.ModeGrid:
		if err := e.syncLevels(ctx); err != nil {
			return err
		}
	default:
		e.evaluateHedgeCycle(ctx)
	}
	return nil
}

// refreshIndicator recomputes the ATR snapshot, throttled to the
// configured interval. Indicator unavailability is a reported condition,
// never a cycle failure.
func (e *Engine) refreshIndicator(ctx context.Context) {
	if !e.lastATRRefresh.IsZero() && time.Since(e.lastATRRefresh) < e.atrRefresh {
		return
	}

	candles, err := e.exchange.Candles(ctx, e.cfg.Symbol, e.cfg.ATRTimeframe, e.cfg.ATRPeriod+1)
	if err != nil {
		logger.Warnf("candle fetch failed, keeping previous snapshot: %v", err)
		return
	}

	atr, err := market.ATR(candles, e.cfg.ATRPeriod)
	if err != nil {
		e.snapshotValid = false
		logger.Warnf("indicator unavailable: %v", err)
		return
	}

	e.snapshot = market.Snapshot{
		ATR:        atr,
		Period:     e.cfg.ATRPeriod,
		Timeframe:  e.cfg.ATRTimeframe,
		ComputedAt: time.Now(),
	}
	e.snapshotValid = true
	e.lastATRRefresh = time.Now()
}

// ============================================================================
// Hedge mode
// ============================================================================

func (e *Engine) evaluateHedgeCycle(ctx context.Context) {
	actions := evaluateHedge(e.ledger.OpenPositions(""), e.currentPrice, e.thresholds)
	for _, a := range actions {
		if err := e.closePosition(ctx, a.Position, a.Reason); err != nil {
			// Entity stays in the ledger, next cycle re-evaluates
			logger.Errorf("close %s %s failed: %v", a.Position.Side, a.Position.ID, err)
			continue
		}
		if e.risk.CheckFull(e.ledger.PositionCount()) {
			if err := e.openPosition(ctx, a.Position.Side); err != nil {
				logger.Errorf("reopen %s failed: %v", a.Position.Side, err)
			}
		}
	}

	e.ensureHedgePair(ctx)
}

// ensureHedgePair opens the missing leg(s) so both sides stay populated
// while risk control permits
func (e *Engine) ensureHedgePair(ctx context.Context) {
	for _, side := range []string{PositionLong, PositionShort} {
		if len(e.ledger.OpenPositions(side)) > 0 {
			continue
		}
		if !e.risk.CheckFull(e.ledger.PositionCount()) {
			return
		}
		if err := e.openPosition(ctx, side); err != nil {
			logger.Errorf("open %s failed: %v", side, err)
		}
	}
}

func (e *Engine) openPosition(ctx context.Context, side string) error {
	if e.thresholds.NeedsATR() && !e.snapshotValid {
		return fmt.Errorf("indicator unavailable, not opening %s", side)
	}

	balance, err := e.exchange.Balance(ctx)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}

	qty := positionSize(balance, e.cfg.PositionRatio, e.cfg.Leverage, e.currentPrice)
	if qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("computed quantity is zero (balance %s)", balance)
	}

	order, err := e.exchange.CreateMarketOrder(ctx, e.cfg.Symbol, openSide(side), side, qty, false)
	if err != nil {
		return fmt.Errorf("market order: %w", err)
	}

	entry := order.AvgFillPrice
	if entry.IsZero() {
		entry = e.currentPrice
	}

	pos := Position{
		ID:         uuid.New().String(),
		Side:       side,
		EntryPrice: entry,
		Quantity:   order.Quantity,
		EntryATR:   e.snapshot,
		OpenedAt:   time.Now(),
		OrderID:    order.OrderID,
	}
	if err := e.ledger.AddPosition(pos); err != nil {
		return err
	}

	tp, sl := e.thresholds.Resolve(side, entry, e.snapshot)
	logger.Infof("📈 opened %s %s @ %s qty %s (tp %s, sl %s)", side, e.cfg.Symbol, entry, pos.Quantity, tp, sl)
	return nil
}

func (e *Engine) closePosition(ctx context.Context, p Position, reason string) error {
	order, err := e.exchange.CreateMarketOrder(ctx, e.cfg.Symbol, closeSide(p.Side), p.Side, p.Quantity, true)
	if err != nil {
		return fmt.Errorf("close order: %w", err)
	}

	exit := order.AvgFillPrice
	if exit.IsZero() {
		exit = e.currentPrice
	}

	gross, fees, net := tradeProfit(p.Side, p.EntryPrice, exit, p.Quantity)
	e.ledger.RemovePosition(p.ID)
	e.risk.RecordOutcome(net)
	e.cumulativePnL = e.cumulativePnL.Add(net)

	e.record(TradeRecord{
		Symbol:      e.cfg.Symbol,
		OrderID:     order.OrderID,
		Side:        p.Side,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   exit,
		Quantity:    p.Quantity,
		GrossProfit: gross,
		Fees:        fees,
		NetProfit:   net,
		Reason:      reason,
		Timestamp:   time.Now(),
	})

	logger.Infof("💰 closed %s %s @ %s (%s): net %s", p.Side, e.cfg.Symbol, exit, reason, net)
	return nil
}

func (e *Engine) closeAllPositions(ctx context.Context, reason string) {
	for _, p := range e.ledger.OpenPositions("") {
		if err := e.closePosition(ctx, p, reason); err != nil {
			logger.Errorf("close %s %s failed: %v", p.Side, p.ID, err)
		}
	}
}

// ============================================================================
// Grid mode
// ============================================================================

// placeInitialGrid builds the ladder around the configured base price
// (market price when unset) and rests one limit order per level
func (e *Engine) placeInitialGrid(ctx context.Context) error {
	base := e.cfg.GridBasePrice
	if base.IsZero() {
		price, err := e.exchange.Ticker(ctx, e.cfg.Symbol)
		if err != nil {
			return fmt.Errorf("ticker for base price: %w", err)
		}
		base = price
	}
	e.gridBase = base
	e.gridSpace = gridSpacing(base, e.cfg.GridRatio)
	e.currentPrice = base

	// Per-level quantity splits the investment evenly across the ladder
	levels := 2 * e.cfg.GridCount
	qty := e.cfg.Investment.Div(decimal.NewFromInt(int64(levels))).Div(base)

	for _, lv := range calculateGridLevels(base, e.cfg.GridCount, e.cfg.GridRatio, qty) {
		if err := e.placeLevel(ctx, lv); err != nil {
			logger.Errorf("place level %d failed: %v", lv.GridID, err)
		}
	}
	logger.Infof("🪜 grid placed: base %s, %d levels, spacing %s", base, e.ledger.LevelCount(), e.gridSpace)
	return nil
}

func (e *Engine) placeLevel(ctx context.Context, lv GridLevel) error {
	// Ladder orders open a leg (buy -> long, sell -> short). Counter
	// orders unwind the leg their filled parent opened, so the
	// position side is inverted.
	positionSide := PositionLong
	if lv.Side == SideSell {
		positionSide = PositionShort
	}
	if lv.IsCounter {
		if lv.Side == SideSell {
			positionSide = PositionLong
		} else {
			positionSide = PositionShort
		}
	}
	order, err := e.exchange.CreateLimitOrder(ctx, e.cfg.Symbol, lv.Side, positionSide, lv.Price, lv.Quantity)
	if err != nil {
		return err
	}
	lv.OrderID = order.OrderID
	return e.ledger.AddLevel(lv)
}

// syncLevels diffs resting orders against the exchange and drives
// vanished orders through fill/cancel handling. Used both per cycle and
// by the reconciliation pass; running it twice with no exchange-side
// change produces no additional actions.
func (e *Engine) syncLevels(ctx context.Context) error {
	open, err := e.exchange.OpenOrders(ctx, e.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("open orders: %w", err)
	}

	active := make(map[string]bool, len(open))
	for _, o := range open {
		active[o.OrderID] = true
	}

	for _, lv := range e.ledger.OpenLevels() {
		if active[lv.OrderID] {
			continue
		}

		final, err := e.exchange.OrderStatus(ctx, e.cfg.Symbol, lv.OrderID)
		if err != nil {
			// Leave the level in place, next pass retries
			logger.Warnf("order %s status query failed: %v", lv.OrderID, err)
			continue
		}

		switch final.Status {
		case StatusFilled:
			e.handleLevelFill(ctx, lv, final)
		case StatusCanceled, StatusExpired, StatusRejected:
			logger.Infof("level %d order %s ended %s, dropping", lv.GridID, lv.OrderID, final.Status)
			e.ledger.RemoveLevel(lv.OrderID)
		default:
			// Partially filled or still transitioning, keep waiting
		}
	}
	return nil
}

// handleLevelFill removes the filled level and rests exactly one counter
// order one spacing step on the opposite side
func (e *Engine) handleLevelFill(ctx context.Context, lv GridLevel, fill *Order) {
	e.ledger.RemoveLevel(lv.OrderID)

	fillPrice := fill.AvgFillPrice
	if fillPrice.IsZero() {
		fillPrice = lv.Price
	}
	logger.Infof("✅ level %d filled: %s %s @ %s", lv.GridID, lv.Side, e.cfg.Symbol, fillPrice)

	// A filled counter order completes a round trip
	if lv.IsCounter {
		gross := pairProfit(lv, e.gridSpace)
		fees := fillPrice.Mul(lv.Quantity).Mul(takerFeeRate).Mul(two)
		net := gross.Sub(fees)
		e.risk.RecordOutcome(net)
		e.cumulativePnL = e.cumulativePnL.Add(net)
		e.record(TradeRecord{
			Symbol:      e.cfg.Symbol,
			OrderID:     lv.OrderID,
			Side:        lv.Side,
			EntryPrice:  lv.Price,
			ExitPrice:   fillPrice,
			Quantity:    lv.Quantity,
			GrossProfit: gross,
			Fees:        fees,
			NetProfit:   net,
			Reason:      "grid_pair",
			Timestamp:   time.Now(),
		})
	}

	if !e.risk.CheckBasic() {
		logger.Warn("risk control blocks counter order, level left unreplaced")
		return
	}

	counter := counterLevel(lv, e.gridSpace)
	if e.cfg.GridMinProfit.IsPositive() && pairProfit(lv, e.gridSpace).LessThan(e.cfg.GridMinProfit) {
		logger.Warnf("counter for level %d skipped: pair profit below minimum", lv.GridID)
		return
	}
	if err := e.placeLevel(ctx, counter); err != nil {
		logger.Errorf("counter order for level %d failed: %v", lv.GridID, err)
	}
}

// ============================================================================
// Reconciliation / shutdown
// ============================================================================

// reconcile resynchronizes the ledger after a failed cycle
func (e *Engine) reconcile(ctx context.Context) {
	logger.Info("🔍 reconciling ledger against exchange state")
	if e.cfg.Mode == config.ModeGrid {
		if err := e.syncLevels(ctx); err != nil {
			logger.Warnf("reconciliation incomplete: %v", err)
		}
	}
	// Hedge positions hold no resting orders; their entry orders filled
	// at open, so there is nothing to diff
}

// emergencyStop cancels all resting orders and halts the loop. Terminal:
// the operator restarts the process.
func (e *Engine) emergencyStop(ctx context.Context) {
	logger.Errorf("🚨 emergency stop after %d consecutive failures", e.consecFails)
	if err := e.exchange.CancelAllOrders(ctx, e.cfg.Symbol); err != nil {
		logger.Errorf("cancel all during emergency stop failed: %v", err)
	}
	e.state = StateEmergencyStopped
	e.publish()
}

// shutdown is the graceful path: cancel resting orders, close open
// positions best-effort
func (e *Engine) shutdown(ctx context.Context) {
	logger.Info("🛑 engine stopping, flattening exposure")
	if err := e.exchange.CancelAllOrders(ctx, e.cfg.Symbol); err != nil {
		logger.Errorf("cancel all during shutdown failed: %v", err)
	}
	for _, lv := range e.ledger.OpenLevels() {
		e.ledger.RemoveLevel(lv.OrderID)
	}
	e.closeAllPositions(ctx, ReasonShutdown)
	e.state = StateStopped
	e.publish()
}

func (e *Engine) record(tr TradeRecord) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(tr); err != nil {
		logger.Warnf("trade record failed: %v", err)
	}
}
