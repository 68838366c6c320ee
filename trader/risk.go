package trader

import (
	"github.com/shopspring/decimal"

	"hedgegrid/config"
	"hedgegrid/logger"
)

// RiskState is a point-in-time copy of the risk counters
type RiskState struct {
	DailyLoss   decimal.Decimal `json:"daily_loss"`
	DailyTrades int             `json:"daily_trades"`
	Paused      bool            `json:"paused"`
}

// RiskController guards every order-issuing action. Owned by the engine
// goroutine; external readers go through the engine's status snapshot.
type RiskController struct {
	maxDailyLoss   decimal.Decimal
	maxDailyTrades int
	maxPositions   int
	accounting     string // loss-only | offset

	dailyLoss   decimal.Decimal
	dailyTrades int
	paused      bool
}

func NewRiskController(s *config.StrategyConfig) *RiskController {
	return &RiskController{
		maxDailyLoss:   s.MaxDailyLoss,
		maxDailyTrades: s.MaxDailyTrades,
		maxPositions:   s.MaxPositions,
		accounting:     s.RiskAccounting,
		dailyLoss:      decimal.Zero,
	}
}

// CheckBasic reports whether trading may proceed at all. Crossing a daily
// limit pauses the controller as a side effect; the pause is sticky until
// ResetDaily or an explicit Resume.
func (r *RiskController) CheckBasic() bool {
	if r.paused {
		return false
	}
	if r.dailyLoss.GreaterThanOrEqual(r.maxDailyLoss) {
		logger.Warnf("⛔ daily loss limit reached (%s >= %s), pausing", r.dailyLoss, r.maxDailyLoss)
		r.paused = true
		return false
	}
	if r.dailyTrades >= r.maxDailyTrades {
		logger.Warnf("⛔ daily trade limit reached (%d >= %d), pausing", r.dailyTrades, r.maxDailyTrades)
		r.paused = true
		return false
	}
	return true
}

// CheckFull is the basic check plus the concurrent-exposure limit.
// Hedge pairs are symmetric, so the budget is maxPositions per side.
func (r *RiskController) CheckFull(openPositions int) bool {
	if !r.CheckBasic() {
		return false
	}
	if openPositions >= r.maxPositions*2 {
		return false
	}
	return true
}

// RecordOutcome folds a closed trade's net P&L into the daily counters.
// Loss accounting follows the configured policy: loss-only ignores
// profits, offset lets profits reduce the accumulated loss (never below
// zero).
func (r *RiskController) RecordOutcome(netProfit decimal.Decimal) {
	r.dailyTrades++

	if netProfit.IsNegative() {
		r.dailyLoss = r.dailyLoss.Add(netProfit.Abs())
		return
	}
	if r.accounting == config.RiskOffset {
		r.dailyLoss = r.dailyLoss.Sub(netProfit)
		if r.dailyLoss.IsNegative() {
			r.dailyLoss = decimal.Zero
		}
	}
}

// ResetDaily clears the counters and un-pauses. Triggered externally on
// the daily boundary or by the operator.
func (r *RiskController) ResetDaily() {
	r.dailyLoss = decimal.Zero
	r.dailyTrades = 0
	r.paused = false
}

// Pause halts trading until Resume or ResetDaily
func (r *RiskController) Pause() {
	r.paused = true
}

// Resume clears the pause flag without touching the counters. If a limit
// is still exceeded the next CheckBasic pauses again.
func (r *RiskController) Resume() {
	r.paused = false
}

// State returns a point-in-time copy of the counters
func (r *RiskController) State() RiskState {
	return RiskState{
		DailyLoss:   r.dailyLoss,
		DailyTrades: r.dailyTrades,
		Paused:      r.paused,
	}
}
