package trader

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"hedgegrid/market"
)

// Position is one leg of the hedge pair. Created when an open order
// fills, removed when closed. The entry snapshot is frozen so exit
// targets stay stable for the lifetime of the position.
type Position struct {
	ID         string
	Side       string // LONG | SHORT
	EntryPrice decimal.Decimal
	Quantity   decimal.Decimal
	EntryATR   market.Snapshot
	OpenedAt   time.Time
	OrderID    string
}

// GridLevel is one resting limit order in the ladder
type GridLevel struct {
	GridID    int    // signed step index: -i below base, +i above
	Side      string // BUY | SELL
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	OrderID   string
	IsCounter bool
}

// TradeRecord is the immutable fact emitted when a position closes
type TradeRecord struct {
	Symbol      string
	OrderID     string
	Side        string
	EntryPrice  decimal.Decimal
	ExitPrice   decimal.Decimal
	Quantity    decimal.Decimal
	GrossProfit decimal.Decimal
	Fees        decimal.Decimal
	NetProfit   decimal.Decimal
	Reason      string
	Timestamp   time.Time
}

// TradeRecorder receives closed-trade facts. Recording is fire-and-forget
// from the engine's perspective.
type TradeRecorder interface {
	Record(TradeRecord) error
}

// Ledger is the in-memory registry of open positions and grid orders.
// It is mutated only from the engine's cycle goroutine; readers get copies.
type Ledger struct {
	positions map[string]Position  // by position ID
	levels    map[string]GridLevel // by order ID
	orderIDs  map[string]struct{}  // duplicate guard across both kinds
}

func NewLedger() *Ledger {
	return &Ledger{
		positions: make(map[string]Position),
		levels:    make(map[string]GridLevel),
		orderIDs:  make(map[string]struct{}),
	}
}

// AddPosition registers a new open position. Rejects duplicate order IDs.
func (l *Ledger) AddPosition(p Position) error {
	if p.OrderID != "" {
		if _, ok := l.orderIDs[p.OrderID]; ok {
			return fmt.Errorf("ledger: duplicate order id %s", p.OrderID)
		}
	}
	if _, ok := l.positions[p.ID]; ok {
		return fmt.Errorf("ledger: duplicate position id %s", p.ID)
	}
	l.positions[p.ID] = p
	if p.OrderID != "" {
		l.orderIDs[p.OrderID] = struct{}{}
	}
	return nil
}

// RemovePosition drops a position. Removing an unknown ID is a no-op.
func (l *Ledger) RemovePosition(id string) {
	p, ok := l.positions[id]
	if !ok {
		return
	}
	delete(l.positions, id)
	if p.OrderID != "" {
		delete(l.orderIDs, p.OrderID)
	}
}

// OpenPositions returns a copy of open positions, optionally filtered by
// side (empty side = all), sorted by open time for determinism
func (l *Ledger) OpenPositions(side string) []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		if side == "" || p.Side == side {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// PositionCount returns the number of open positions
func (l *Ledger) PositionCount() int {
	return len(l.positions)
}

// AddLevel registers a resting grid order. Rejects duplicate order IDs.
func (l *Ledger) AddLevel(lv GridLevel) error {
	if lv.OrderID == "" {
		return fmt.Errorf("ledger: grid level needs an order id")
	}
	if _, ok := l.orderIDs[lv.OrderID]; ok {
		return fmt.Errorf("ledger: duplicate order id %s", lv.OrderID)
	}
	l.levels[lv.OrderID] = lv
	l.orderIDs[lv.OrderID] = struct{}{}
	return nil
}

// RemoveLevel drops a grid level by order ID. Unknown IDs are a no-op.
func (l *Ledger) RemoveLevel(orderID string) {
	if _, ok := l.levels[orderID]; !ok {
		return
	}
	delete(l.levels, orderID)
	delete(l.orderIDs, orderID)
}

// OpenLevels returns a copy of resting grid levels in deterministic
// evaluation order: buys first then sells, each ascending by price
func (l *Ledger) OpenLevels() []GridLevel {
	out := make([]GridLevel, 0, len(l.levels))
	for _, lv := range l.levels {
		out = append(out, lv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Side != out[j].Side {
			return out[i].Side == SideBuy
		}
		if !out[i].Price.Equal(out[j].Price) {
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

// Level looks up a grid level by order ID
func (l *Ledger) Level(orderID string) (GridLevel, bool) {
	lv, ok := l.levels[orderID]
	return lv, ok
}

// LevelCount returns the number of resting grid levels
func (l *Ledger) LevelCount() int {
	return len(l.levels)
}

// HasOrder reports whether any entry holds this order ID
func (l *Ledger) HasOrder(orderID string) bool {
	_, ok := l.orderIDs[orderID]
	return ok
}
