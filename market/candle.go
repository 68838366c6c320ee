package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a single OHLCV bar
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}
