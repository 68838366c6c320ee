package trader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgegrid/config"
)

func atrThresholds() Thresholds {
	return Thresholds{
		TakeProfitMode:  config.ThresholdATRMultiple,
		TakeProfitValue: d("0.9"),
		StopLossMode:    config.ThresholdATRMultiple,
		StopLossValue:   d("1.5"),
	}
}

func TestEvaluateHedgeLongTakeProfit(t *testing.T) {
	// entry 100, ATR 2 -> tp 101.8, sl 97.0
	positions := []Position{
		{ID: "long", Side: PositionLong, EntryPrice: d("100"), Quantity: d("1"), EntryATR: snap("2")},
	}

	// Below tp: nothing
	assert.Empty(t, evaluateHedge(positions, d("101.79"), atrThresholds()))

	// At tp: close with take-profit
	actions := evaluateHedge(positions, d("101.8"), atrThresholds())
	require.Len(t, actions, 1)
	assert.Equal(t, "long", actions[0].Position.ID)
	assert.Equal(t, ReasonTakeProfit, actions[0].Reason)
}

func TestEvaluateHedgeLongStopLoss(t *testing.T) {
	positions := []Position{
		{ID: "long", Side: PositionLong, EntryPrice: d("100"), Quantity: d("1"), EntryATR: snap("2")},
	}

	actions := evaluateHedge(positions, d("97.0"), atrThresholds())
	require.Len(t, actions, 1)
	assert.Equal(t, ReasonStopLoss, actions[0].Reason)
}

func TestEvaluateHedgeShortMirrored(t *testing.T) {
	positions := []Position{
		{ID: "short", Side: PositionShort, EntryPrice: d("100"), Quantity: d("1"), EntryATR: snap("2")},
	}

	// Short tp at 98.2, sl at 103.0
	actions := evaluateHedge(positions, d("98.2"), atrThresholds())
	require.Len(t, actions, 1)
	assert.Equal(t, ReasonTakeProfit, actions[0].Reason)

	actions = evaluateHedge(positions, d("103.0"), atrThresholds())
	require.Len(t, actions, 1)
	assert.Equal(t, ReasonStopLoss, actions[0].Reason)

	assert.Empty(t, evaluateHedge(positions, d("100"), atrThresholds()))
}

func TestEvaluateHedgeBothLegs(t *testing.T) {
	positions := []Position{
		{ID: "long", Side: PositionLong, EntryPrice: d("100"), Quantity: d("1"), EntryATR: snap("2")},
		{ID: "short", Side: PositionShort, EntryPrice: d("100"), Quantity: d("1"), EntryATR: snap("2")},
	}

	// Price surge: long takes profit, short stops out
	actions := evaluateHedge(positions, d("103"), atrThresholds())
	require.Len(t, actions, 2)
	assert.Equal(t, "long", actions[0].Position.ID)
	assert.Equal(t, ReasonTakeProfit, actions[0].Reason)
	assert.Equal(t, "short", actions[1].Position.ID)
	assert.Equal(t, ReasonStopLoss, actions[1].Reason)
}

func TestEvaluateHedgeUsesEntrySnapshot(t *testing.T) {
	// Thresholds come from the snapshot frozen at entry, so the same
	// price decision holds regardless of any fresher market ATR
	positions := []Position{
		{ID: "long", Side: PositionLong, EntryPrice: d("100"), Quantity: d("1"), EntryATR: snap("2")},
	}
	actions := evaluateHedge(positions, d("101.8"), atrThresholds())
	require.Len(t, actions, 1)
}

func TestTradeProfitLong(t *testing.T) {
	// long 1.0 @ 100 -> 110: gross 10, fees = 1*110*0.0004*2 = 0.088
	gross, fees, net := tradeProfit(PositionLong, d("100"), d("110"), d("1"))
	assert.True(t, gross.Equal(d("10")), "gross %s", gross)
	assert.True(t, fees.Equal(d("0.088")), "fees %s", fees)
	assert.True(t, net.Equal(d("9.912")), "net %s", net)
}

func TestTradeProfitShortFeeBase(t *testing.T) {
	// short fee base is the entry notional: 1*100*0.0004*2 = 0.08
	gross, fees, net := tradeProfit(PositionShort, d("100"), d("90"), d("1"))
	assert.True(t, gross.Equal(d("10")), "gross %s", gross)
	assert.True(t, fees.Equal(d("0.08")), "fees %s", fees)
	assert.True(t, net.Equal(d("9.92")), "net %s", net)
}

func TestTradeProfitLosing(t *testing.T) {
	_, _, net := tradeProfit(PositionLong, d("100"), d("95"), d("2"))
	assert.True(t, net.IsNegative())
}

func TestPositionSize(t *testing.T) {
	// 10000 * 0.02 * 10 / 50000 = 0.04
	qty := positionSize(d("10000"), d("0.02"), 10, d("50000"))
	assert.True(t, qty.Equal(d("0.04")), "qty %s", qty)

	assert.True(t, positionSize(d("10000"), d("0.02"), 10, d("0")).IsZero())
}

func TestSideMapping(t *testing.T) {
	assert.Equal(t, SideSell, closeSide(PositionLong))
	assert.Equal(t, SideBuy, closeSide(PositionShort))
	assert.Equal(t, SideBuy, openSide(PositionLong))
	assert.Equal(t, SideSell, openSide(PositionShort))
}
