package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hedgegrid/trader"
)

// TradeStore persists closed-trade facts. Append-only: records are
// never updated after insert.
type TradeStore struct {
	db *sql.DB
}

// Summary aggregates the recorded trades
type Summary struct {
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	TotalNet      decimal.Decimal `json:"total_net"`
	TotalFees     decimal.Decimal `json:"total_fees"`
}

func (ts *TradeStore) initTables() error {
	// Decimal columns stored as TEXT to keep exact values
	_, err := ts.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			order_id TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			exit_price TEXT NOT NULL,
			quantity TEXT NOT NULL,
			gross_profit TEXT NOT NULL,
			fees TEXT NOT NULL,
			net_profit TEXT NOT NULL,
			reason TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = ts.db.Exec(`CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp)`)
	return err
}

// Record implements trader.TradeRecorder
func (ts *TradeStore) Record(tr trader.TradeRecord) error {
	_, err := ts.db.Exec(`
		INSERT INTO trades (symbol, order_id, side, entry_price, exit_price, quantity,
			gross_profit, fees, net_profit, reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tr.Symbol, tr.OrderID, tr.Side,
		tr.EntryPrice.String(), tr.ExitPrice.String(), tr.Quantity.String(),
		tr.GrossProfit.String(), tr.Fees.String(), tr.NetProfit.String(),
		tr.Reason, tr.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Recent returns the latest trades, newest first
func (ts *TradeStore) Recent(limit int) ([]trader.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := ts.db.Query(`
		SELECT symbol, order_id, side, entry_price, exit_price, quantity,
			gross_profit, fees, net_profit, reason, timestamp
		FROM trades ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []trader.TradeRecord
	for rows.Next() {
		var tr trader.TradeRecord
		var entry, exit, qty, gross, fees, net string
		var at time.Time
		if err := rows.Scan(&tr.Symbol, &tr.OrderID, &tr.Side, &entry, &exit, &qty,
			&gross, &fees, &net, &tr.Reason, &at); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		if tr.EntryPrice, err = decimal.NewFromString(entry); err != nil {
			return nil, fmt.Errorf("bad entry_price %q: %w", entry, err)
		}
		if tr.ExitPrice, err = decimal.NewFromString(exit); err != nil {
			return nil, fmt.Errorf("bad exit_price %q: %w", exit, err)
		}
		if tr.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("bad quantity %q: %w", qty, err)
		}
		if tr.GrossProfit, err = decimal.NewFromString(gross); err != nil {
			return nil, fmt.Errorf("bad gross_profit %q: %w", gross, err)
		}
		if tr.Fees, err = decimal.NewFromString(fees); err != nil {
			return nil, fmt.Errorf("bad fees %q: %w", fees, err)
		}
		if tr.NetProfit, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("bad net_profit %q: %w", net, err)
		}
		tr.Timestamp = at
		out = append(out, tr)
	}
	return out, rows.Err()
}

// Summarize aggregates all recorded trades
func (ts *TradeStore) Summarize() (*Summary, error) {
	rows, err := ts.db.Query(`SELECT net_profit, fees FROM trades`)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	sum := &Summary{TotalNet: decimal.Zero, TotalFees: decimal.Zero}
	for rows.Next() {
		var netStr, feesStr string
		if err := rows.Scan(&netStr, &feesStr); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		net, err := decimal.NewFromString(netStr)
		if err != nil {
			return nil, fmt.Errorf("bad net_profit %q: %w", netStr, err)
		}
		fees, err := decimal.NewFromString(feesStr)
		if err != nil {
			return nil, fmt.Errorf("bad fees %q: %w", feesStr, err)
		}

		sum.TotalTrades++
		if net.IsNegative() {
			sum.LosingTrades++
		} else {
			sum.WinningTrades++
		}
		sum.TotalNet = sum.TotalNet.Add(net)
		sum.TotalFees = sum.TotalFees.Add(fees)
	}
	return sum, rows.Err()
}
