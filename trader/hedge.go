package trader

import (
	"github.com/shopspring/decimal"
)

// Close reasons carried on trade records
const (
	ReasonTakeProfit = "take_profit"
	ReasonStopLoss   = "stop_loss"
	ReasonManual     = "manual"
	ReasonShutdown   = "shutdown"
)

// takerFeeRate is the fixed per-side taker fee used for the round-trip
// fee estimate on realized P&L
var takerFeeRate = decimal.RequireFromString("0.0004")

var two = decimal.NewFromInt(2)

// closeAction is a decided but not yet executed position close
type closeAction struct {
	Position Position
	Reason   string
}

// evaluateHedge decides which open positions must close at the current
// price. Pure decision, no side effects; the engine executes the actions.
//
// Long: price >= takeProfit closes with take-profit, price <= stopLoss
// closes with stop-loss. Mirrored for short.
func evaluateHedge(positions []Position, price decimal.Decimal, th Thresholds) []closeAction {
	var actions []closeAction
	for _, p := range positions {
		tp, sl := th.Resolve(p.Side, p.EntryPrice, p.EntryATR)

		switch p.Side {
		case PositionLong:
			if price.GreaterThanOrEqual(tp) {
				actions = append(actions, closeAction{Position: p, Reason: ReasonTakeProfit})
			} else if price.LessThanOrEqual(sl) {
				actions = append(actions, closeAction{Position: p, Reason: ReasonStopLoss})
			}
		case PositionShort:
			if price.LessThanOrEqual(tp) {
				actions = append(actions, closeAction{Position: p, Reason: ReasonTakeProfit})
			} else if price.GreaterThanOrEqual(sl) {
				actions = append(actions, closeAction{Position: p, Reason: ReasonStopLoss})
			}
		}
	}
	return actions
}

// tradeProfit computes realized P&L for a closed position net of the
// round-trip taker fee estimate. The fee base is the exit notional for
// longs and the entry notional for shorts.
func tradeProfit(side string, entry, exit, quantity decimal.Decimal) (gross, fees, net decimal.Decimal) {
	if side == PositionLong {
		gross = exit.Sub(entry).Mul(quantity)
		fees = quantity.Mul(exit).Mul(takerFeeRate).Mul(two)
	} else {
		gross = entry.Sub(exit).Mul(quantity)
		fees = quantity.Mul(entry).Mul(takerFeeRate).Mul(two)
	}
	return gross, fees, gross.Sub(fees)
}

// closeSide maps a position side to the order side that reduces it
func closeSide(positionSide string) string {
	if positionSide == PositionLong {
		return SideSell
	}
	return SideBuy
}

// openSide maps a position side to the order side that opens it
func openSide(positionSide string) string {
	if positionSide == PositionLong {
		return SideBuy
	}
	return SideSell
}

// positionSize converts the balance budget into a base-asset quantity:
// balance × positionRatio × leverage / price
func positionSize(balance, positionRatio decimal.Decimal, leverage int, price decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return balance.Mul(positionRatio).Mul(decimal.NewFromInt(int64(leverage))).Div(price)
}
