package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgegrid/trader"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(net string, at time.Time) trader.TradeRecord {
	return trader.TradeRecord{
		Symbol:      "BTCUSDT",
		OrderID:     "1001",
		Side:        trader.PositionLong,
		EntryPrice:  decimal.RequireFromString("100"),
		ExitPrice:   decimal.RequireFromString("110"),
		Quantity:    decimal.RequireFromString("0.5"),
		GrossProfit: decimal.RequireFromString("5"),
		Fees:        decimal.RequireFromString("0.044"),
		NetProfit:   decimal.RequireFromString(net),
		Reason:      trader.ReasonTakeProfit,
		Timestamp:   at,
	}
}

func TestTradeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ts := s.Trade()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, ts.Record(record("4.956", now)))

	got, err := ts.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	tr := got[0]
	assert.Equal(t, "BTCUSDT", tr.Symbol)
	assert.Equal(t, trader.PositionLong, tr.Side)
	assert.True(t, tr.EntryPrice.Equal(decimal.RequireFromString("100")))
	assert.True(t, tr.NetProfit.Equal(decimal.RequireFromString("4.956")))
	assert.Equal(t, trader.ReasonTakeProfit, tr.Reason)
	assert.True(t, tr.Timestamp.Equal(now))
}

func TestRecentOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ts := s.Trade()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, ts.Record(record("1", base.Add(time.Duration(i)*time.Hour))))
	}

	got, err := ts.Recent(3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Newest first
	assert.True(t, got[0].Timestamp.After(got[1].Timestamp))
	assert.True(t, got[1].Timestamp.After(got[2].Timestamp))
}

func TestSummarize(t *testing.T) {
	s := newTestStore(t)
	ts := s.Trade()

	now := time.Now().UTC()
	require.NoError(t, ts.Record(record("10", now)))
	require.NoError(t, ts.Record(record("-4", now)))
	require.NoError(t, ts.Record(record("2.5", now)))

	sum, err := ts.Summarize()
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalTrades)
	assert.Equal(t, 2, sum.WinningTrades)
	assert.Equal(t, 1, sum.LosingTrades)
	assert.True(t, sum.TotalNet.Equal(decimal.RequireFromString("8.5")), "net %s", sum.TotalNet)
}

func TestSummarizeEmpty(t *testing.T) {
	s := newTestStore(t)

	sum, err := s.Trade().Summarize()
	require.NoError(t, err)
	assert.Equal(t, 0, sum.TotalTrades)
	assert.True(t, sum.TotalNet.IsZero())
}
