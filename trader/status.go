package trader

import (
	"sync"
	"time"
)

// statusBoard holds the snapshots the engine publishes at the end of
// each cycle. The only mutex in the package: readers are the API
// goroutines, the writer is the engine loop.
type statusBoard struct {
	mu        sync.RWMutex
	status    Status
	positions []Position
	levels    []GridLevel
}

func newStatusBoard() *statusBoard {
	return &statusBoard{}
}

func (b *statusBoard) set(s Status, positions []Position, levels []GridLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
	b.positions = positions
	b.levels = levels
}

// publish copies the cycle-owned state onto the board
func (e *Engine) publish() {
	s := Status{
		State:               e.state,
		Mode:                e.cfg.Mode,
		Symbol:              e.cfg.Symbol,
		CurrentPrice:        e.currentPrice,
		ATR:                 e.snapshot.ATR,
		ATRValid:            e.snapshotValid,
		OpenPositions:       e.ledger.PositionCount(),
		OpenLevels:          e.ledger.LevelCount(),
		CumulativePnL:       e.cumulativePnL,
		Risk:                e.risk.State(),
		ConsecutiveFailures: e.consecFails,
		UpdatedAt:           time.Now(),
	}
	// OpenPositions/OpenLevels already return copies
	e.published.set(s, e.ledger.OpenPositions(""), e.ledger.OpenLevels())
}

// Status returns the last published point-in-time snapshot
func (e *Engine) Status() Status {
	e.published.mu.RLock()
	defer e.published.mu.RUnlock()
	return e.published.status
}

// PositionsInfo returns a copy of the open positions as of the last
// published cycle
func (e *Engine) PositionsInfo() []Position {
	e.published.mu.RLock()
	defer e.published.mu.RUnlock()
	out := make([]Position, len(e.published.positions))
	copy(out, e.published.positions)
	return out
}

// LevelsInfo returns a copy of the resting grid levels as of the last
// published cycle
func (e *Engine) LevelsInfo() []GridLevel {
	e.published.mu.RLock()
	defer e.published.mu.RUnlock()
	out := make([]GridLevel, len(e.published.levels))
	copy(out, e.published.levels)
	return out
}
