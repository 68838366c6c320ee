package market

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotEnoughData means the candle window is too short to compute the
// indicator. Callers treat it as a degraded condition, not a failure.
var ErrNotEnoughData = errors.New("market: not enough candles for indicator")

// Snapshot is an immutable indicator reading. Positions copy the snapshot
// taken at entry time so threshold arithmetic never shifts under them.
type Snapshot struct {
	ATR        decimal.Decimal
	Period     int
	Timeframe  string
	ComputedAt time.Time
}

// ATR computes the Average True Range over the given period as the
// arithmetic mean of the last period true ranges. Each true range needs
// the previous candle's close, so period+1 candles are required.
func ATR(candles []Candle, period int) (decimal.Decimal, error) {
	if period < 1 {
		return decimal.Zero, errors.New("market: atr period must be >= 1")
	}
	if len(candles) < period+1 {
		return decimal.Zero, ErrNotEnoughData
	}

	// Use the most recent period+1 candles
	window := candles[len(candles)-(period+1):]

	sum := decimal.Zero
	for i := 1; i < len(window); i++ {
		sum = sum.Add(trueRange(window[i], window[i-1].Close))
	}
	return sum.Div(decimal.NewFromInt(int64(period))), nil
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|)
func trueRange(c Candle, prevClose decimal.Decimal) decimal.Decimal {
	tr := c.High.Sub(c.Low)
	if hc := c.High.Sub(prevClose).Abs(); hc.GreaterThan(tr) {
		tr = hc
	}
	if lc := c.Low.Sub(prevClose).Abs(); lc.GreaterThan(tr) {
		tr = lc
	}
	return tr
}
