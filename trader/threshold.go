package trader

import (
	"github.com/shopspring/decimal"

	"hedgegrid/config"
	"hedgegrid/market"
)

var one = decimal.NewFromInt(1)

// Thresholds resolves concrete exit prices from the strategy's threshold
// configuration and a position's entry-time indicator snapshot. Pure
// arithmetic, no state.
type Thresholds struct {
	TakeProfitMode  string
	TakeProfitValue decimal.Decimal
	StopLossMode    string
	StopLossValue   decimal.Decimal
}

// ThresholdsFromConfig pulls the threshold fields out of the strategy config
func ThresholdsFromConfig(s *config.StrategyConfig) Thresholds {
	return Thresholds{
		TakeProfitMode:  s.TakeProfitMode,
		TakeProfitValue: s.TakeProfitValue,
		StopLossMode:    s.StopLossMode,
		StopLossValue:   s.StopLossValue,
	}
}

// Resolve computes the take-profit and stop-loss prices for a position.
// Long: profit above entry, loss below. Short: mirrored.
// The snapshot must be the one captured at entry time.
func (t Thresholds) Resolve(side string, entry decimal.Decimal, snap market.Snapshot) (takeProfit, stopLoss decimal.Decimal) {
	tpDelta := delta(t.TakeProfitMode, t.TakeProfitValue, entry, snap.ATR)
	slDelta := delta(t.StopLossMode, t.StopLossValue, entry, snap.ATR)

	if side == PositionLong {
		return entry.Add(tpDelta), entry.Sub(slDelta)
	}
	return entry.Sub(tpDelta), entry.Add(slDelta)
}

// NeedsATR reports whether either threshold depends on the indicator.
// When true, positions must not open without a valid snapshot.
func (t Thresholds) NeedsATR() bool {
	return t.TakeProfitMode == config.ThresholdATRMultiple || t.StopLossMode == config.ThresholdATRMultiple
}

// delta is the absolute price distance for one threshold
func delta(mode string, value, entry, atr decimal.Decimal) decimal.Decimal {
	if mode == config.ThresholdPercent {
		return entry.Mul(value)
	}
	return atr.Mul(value)
}
