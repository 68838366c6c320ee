package trader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateGridLevelsScenario(t *testing.T) {
	// base 1000, count 5, ratio 0.05
	levels := calculateGridLevels(d("1000"), 5, d("0.05"), d("0.1"))
	require.Len(t, levels, 10)

	wantBuys := []string{"750", "800", "850", "900", "950"}
	wantSells := []string{"1050", "1100", "1150", "1200", "1250"}

	for i, want := range wantBuys {
		assert.Equal(t, SideBuy, levels[i].Side)
		assert.True(t, levels[i].Price.Equal(d(want)), "buy %d = %s, want %s", i, levels[i].Price, want)
	}
	for i, want := range wantSells {
		lv := levels[5+i]
		assert.Equal(t, SideSell, lv.Side)
		assert.True(t, lv.Price.Equal(d(want)), "sell %d = %s, want %s", i, lv.Price, want)
	}
}

func TestCalculateGridLevelsShape(t *testing.T) {
	for _, count := range []int{1, 3, 8} {
		levels := calculateGridLevels(d("25000"), count, d("0.01"), d("0.002"))
		require.Len(t, levels, 2*count, "count %d", count)

		buys, sells := 0, 0
		seen := map[string]bool{}
		base := d("25000")
		for i, lv := range levels {
			// Strictly ascending, no duplicate prices
			if i > 0 {
				assert.True(t, levels[i-1].Price.LessThan(lv.Price), "levels not strictly sorted at %d", i)
			}
			assert.False(t, seen[lv.Price.String()], "duplicate price %s", lv.Price)
			seen[lv.Price.String()] = true

			if lv.Side == SideBuy {
				buys++
				assert.True(t, lv.Price.LessThan(base))
			} else {
				sells++
				assert.True(t, lv.Price.GreaterThan(base))
			}
		}
		assert.Equal(t, count, buys)
		assert.Equal(t, count, sells)
	}
}

func TestCalculateGridLevelsSymmetry(t *testing.T) {
	base := d("1000")
	levels := calculateGridLevels(base, 4, d("0.02"), d("1"))

	// Buy at step -i and sell at step +i sit the same distance from base
	for i := 0; i < 4; i++ {
		buy := levels[3-i]  // buys ascending: step -4..-1
		sell := levels[4+i] // sells ascending: step +1..+4
		assert.True(t, base.Sub(buy.Price).Equal(sell.Price.Sub(base)),
			"asymmetric at step %d: buy %s sell %s", i+1, buy.Price, sell.Price)
	}
}

func TestCounterLevelFromFilledBuy(t *testing.T) {
	spacing := gridSpacing(d("1000"), d("0.05")) // 50
	filled := GridLevel{GridID: -1, Side: SideBuy, Price: d("950"), Quantity: d("2"), OrderID: "b1"}

	counter := counterLevel(filled, spacing)
	assert.Equal(t, SideSell, counter.Side)
	assert.Equal(t, 0, counter.GridID)
	assert.True(t, counter.Price.Equal(d("1000")), "price %s", counter.Price)
	assert.True(t, counter.IsCounter)
	assert.Empty(t, counter.OrderID)

	// Notional preserved: 950*2 = 1900 = 1000*1.9
	assert.True(t, counter.Price.Mul(counter.Quantity).Equal(d("1900")),
		"notional %s", counter.Price.Mul(counter.Quantity))
}

func TestCounterLevelFromFilledSell(t *testing.T) {
	spacing := d("50")
	filled := GridLevel{GridID: 2, Side: SideSell, Price: d("1100"), Quantity: d("1"), OrderID: "s2"}

	counter := counterLevel(filled, spacing)
	assert.Equal(t, SideBuy, counter.Side)
	assert.Equal(t, 1, counter.GridID)
	assert.True(t, counter.Price.Equal(d("1050")), "price %s", counter.Price)
	assert.True(t, counter.Price.Mul(counter.Quantity).Equal(d("1100")))
}

func TestCounterLevelFromFilledCounterOpensAgain(t *testing.T) {
	spacing := d("50")
	// A counter sell that just completed a buy round trip
	filled := GridLevel{GridID: 0, Side: SideSell, Price: d("1000"), Quantity: d("1.9"), IsCounter: true}

	next := counterLevel(filled, spacing)
	assert.Equal(t, SideBuy, next.Side)
	assert.Equal(t, -1, next.GridID)
	assert.True(t, next.Price.Equal(d("950")), "price %s", next.Price)
	// Starts a new round trip, so it is an opening order again
	assert.False(t, next.IsCounter)
}

func TestPairProfit(t *testing.T) {
	filled := GridLevel{Side: SideBuy, Price: d("950"), Quantity: d("2")}
	assert.True(t, pairProfit(filled, d("50")).Equal(d("100")))
}
