package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hedgegrid/market"
)

// Order sides and position sides as the exchange reports them
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	PositionLong  = "LONG"
	PositionShort = "SHORT"
)

// Order statuses the engine cares about
const (
	StatusNew             = "NEW"
	StatusPartiallyFilled = "PARTIALLY_FILLED"
	StatusFilled          = "FILLED"
	StatusCanceled        = "CANCELED"
	StatusRejected        = "REJECTED"
	StatusExpired         = "EXPIRED"
)

// Order is the gateway's view of an exchange order
type Order struct {
	OrderID      string
	Symbol       string
	Side         string // BUY | SELL
	PositionSide string // LONG | SHORT
	Price        decimal.Decimal
	AvgFillPrice decimal.Decimal
	Quantity     decimal.Decimal
	Status       string
	ReduceOnly   bool
	UpdatedAt    time.Time
}

// Exchange is the capability set the engine consumes. Every call takes a
// context; implementations apply per-call timeouts shorter than the poll
// interval so a hung call cannot stall the cycle.
type Exchange interface {
	Ticker(ctx context.Context, symbol string) (decimal.Decimal, error)
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error)
	Balance(ctx context.Context) (decimal.Decimal, error)
	CreateMarketOrder(ctx context.Context, symbol, side, positionSide string, quantity decimal.Decimal, reduceOnly bool) (*Order, error)
	CreateLimitOrder(ctx context.Context, symbol, side, positionSide string, price, quantity decimal.Decimal) (*Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllOrders(ctx context.Context, symbol string) error
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)
	OrderStatus(ctx context.Context, symbol, orderID string) (*Order, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// ErrKind separates failures the backoff path should absorb from actions
// the exchange actively refused
type ErrKind int

const (
	// ErrKindTransient covers network trouble, timeouts, rate limits.
	// Feeds the consecutive-failure counter.
	ErrKindTransient ErrKind = iota
	// ErrKindRejected covers refused actions (insufficient balance,
	// invalid order). The loop itself is healthy, no backoff.
	ErrKindRejected
)

// ExchangeError wraps a gateway failure with its classification
type ExchangeError struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange %s: %v", e.Op, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err is an exchange rejection rather than a
// transport failure
func IsRejected(err error) bool {
	var ee *ExchangeError
	return errors.As(err, &ee) && ee.Kind == ErrKindRejected
}

func transientErr(op string, err error) error {
	return &ExchangeError{Kind: ErrKindTransient, Op: op, Err: err}
}

func rejectedErr(op string, err error) error {
	return &ExchangeError{Kind: ErrKindRejected, Op: op, Err: err}
}
