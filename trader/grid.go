package trader

import (
	"github.com/shopspring/decimal"
)

// calculateGridLevels builds the symmetric ladder around base: for each
// step i in 1..count a buy at base×(1-ratio×i) and a sell at
// base×(1+ratio×i). Returns exactly 2×count levels in deterministic
// evaluation order (buys ascending, then sells ascending), no order IDs
// yet.
func calculateGridLevels(base decimal.Decimal, count int, ratio, quantity decimal.Decimal) []GridLevel {
	levels := make([]GridLevel, 0, 2*count)

	// Buys below base, ascending by price means descending by step
	for i := count; i >= 1; i-- {
		step := ratio.Mul(decimal.NewFromInt(int64(i)))
		levels = append(levels, GridLevel{
			GridID:   -i,
			Side:     SideBuy,
			Price:    base.Mul(one.Sub(step)),
			Quantity: quantity,
		})
	}
	// Sells above base, ascending
	for i := 1; i <= count; i++ {
		step := ratio.Mul(decimal.NewFromInt(int64(i)))
		levels = append(levels, GridLevel{
			GridID:   i,
			Side:     SideSell,
			Price:    base.Mul(one.Add(step)),
			Quantity: quantity,
		})
	}
	return levels
}

// gridSpacing is the absolute price distance between adjacent levels
func gridSpacing(base, ratio decimal.Decimal) decimal.Decimal {
	return base.Mul(ratio)
}

// counterLevel builds the replacement order for a filled level: one
// spacing step away on the opposite side, same notional, quantity
// recomputed at the counter price. No order ID until placed.
// The counter flag alternates: the replacement for a ladder fill
// unwinds it, the replacement for a counter fill starts a fresh round
// trip and opens again.
func counterLevel(filled GridLevel, spacing decimal.Decimal) GridLevel {
	var price decimal.Decimal
	var side string
	var gridID int

	if filled.Side == SideBuy {
		side = SideSell
		price = filled.Price.Add(spacing)
		gridID = filled.GridID + 1
	} else {
		side = SideBuy
		price = filled.Price.Sub(spacing)
		gridID = filled.GridID - 1
	}

	notional := filled.Price.Mul(filled.Quantity)
	quantity := decimal.Zero
	if !price.IsZero() {
		quantity = notional.Div(price)
	}

	return GridLevel{
		GridID:    gridID,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		IsCounter: !filled.IsCounter,
	}
}

// pairProfit is the gross profit one fill/counter-fill round trip earns
// at the given spacing, used against the configured minimum
func pairProfit(filled GridLevel, spacing decimal.Decimal) decimal.Decimal {
	return spacing.Mul(filled.Quantity)
}
