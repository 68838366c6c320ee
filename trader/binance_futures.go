package trader

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"hedgegrid/logger"
	"hedgegrid/market"
)

// defaultCallTimeout bounds every exchange call. Must stay below the
// poll interval so a hung call cannot stall the cycle.
const defaultCallTimeout = 4 * time.Second

// BinanceFutures implements Exchange against Binance USDT-M futures
type BinanceFutures struct {
	client      *futures.Client
	callTimeout time.Duration
}

// NewBinanceFutures creates the gateway. Testnet selection is global in
// the underlying client, so it must happen before NewClient.
func NewBinanceFutures(apiKey, apiSecret string, testnet bool) *BinanceFutures {
	futures.UseTestnet = testnet
	return &BinanceFutures{
		client:      futures.NewClient(apiKey, apiSecret),
		callTimeout: defaultCallTimeout,
	}
}

// Init verifies connectivity and switches the account to dual position
// mode so long and short legs can coexist
func (b *BinanceFutures) Init(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	if _, err := b.client.NewServerTimeService().Do(cctx); err != nil {
		return transientErr("server time", err)
	}

	if err := b.client.NewChangePositionModeService().DualSide(true).Do(cctx); err != nil {
		// -4059: "No need to change position side", already dual
		var apiErr *common.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != -4059 {
			return classify("change position mode", err)
		}
	}
	logger.Info("🔗 binance futures gateway ready (dual position mode)")
	return nil
}

func (b *BinanceFutures) Ticker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(cctx)
	if err != nil {
		return decimal.Zero, classify("ticker", err)
	}
	for _, p := range prices {
		if p.Symbol == symbol {
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return decimal.Zero, rejectedErr("ticker", fmt.Errorf("bad price %q: %w", p.Price, err))
			}
			return price, nil
		}
	}
	return decimal.Zero, rejectedErr("ticker", fmt.Errorf("no price for %s", symbol))
}

func (b *BinanceFutures) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit).
		Do(cctx)
	if err != nil {
		return nil, classify("candles", err)
	}

	candles := make([]market.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := candleFromKline(k)
		if err != nil {
			return nil, rejectedErr("candles", err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func candleFromKline(k *futures.Kline) (market.Candle, error) {
	var c market.Candle
	var err error
	if c.Open, err = decimal.NewFromString(k.Open); err != nil {
		return c, fmt.Errorf("bad kline open %q: %w", k.Open, err)
	}
	if c.High, err = decimal.NewFromString(k.High); err != nil {
		return c, fmt.Errorf("bad kline high %q: %w", k.High, err)
	}
	if c.Low, err = decimal.NewFromString(k.Low); err != nil {
		return c, fmt.Errorf("bad kline low %q: %w", k.Low, err)
	}
	if c.Close, err = decimal.NewFromString(k.Close); err != nil {
		return c, fmt.Errorf("bad kline close %q: %w", k.Close, err)
	}
	if c.Volume, err = decimal.NewFromString(k.Volume); err != nil {
		return c, fmt.Errorf("bad kline volume %q: %w", k.Volume, err)
	}
	c.OpenTime = time.UnixMilli(k.OpenTime)
	return c, nil
}

// Balance returns the available USDT balance
func (b *BinanceFutures) Balance(ctx context.Context) (decimal.Decimal, error) {
	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	balances, err := b.client.NewGetBalanceService().Do(cctx)
	if err != nil {
		return decimal.Zero, classify("balance", err)
	}
	for _, bal := range balances {
		if bal.Asset == "USDT" {
			avail, err := decimal.NewFromString(bal.AvailableBalance)
			if err != nil {
				return decimal.Zero, rejectedErr("balance", fmt.Errorf("bad balance %q: %w", bal.AvailableBalance, err))
			}
			return avail, nil
		}
	}
	return decimal.Zero, nil
}

func (b *BinanceFutures) CreateMarketOrder(ctx context.Context, symbol, side, positionSide string, quantity decimal.Decimal, reduceOnly bool) (*Order, error) {
	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	svc := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		PositionSide(futures.PositionSideType(positionSide)).
		Type(futures.OrderTypeMarket).
		Quantity(quantity.String()).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	// In dual position mode the position side already implies reduce
	// semantics; the explicit flag is rejected by the exchange.
	_ = reduceOnly

	res, err := svc.Do(cctx)
	if err != nil {
		return nil, classify("create market order", err)
	}
	return orderFromCreateResponse(res, reduceOnly)
}

func (b *BinanceFutures) CreateLimitOrder(ctx context.Context, symbol, side, positionSide string, price, quantity decimal.Decimal) (*Order, error) {
	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	res, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		PositionSide(futures.PositionSideType(positionSide)).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Price(price.String()).
		Quantity(quantity.String()).
		Do(cctx)
	if err != nil {
		return nil, classify("create limit order", err)
	}
	return orderFromCreateResponse(res, false)
}

func orderFromCreateResponse(res *futures.CreateOrderResponse, reduceOnly bool) (*Order, error) {
	price, _ := decimal.NewFromString(res.Price)
	avg, _ := decimal.NewFromString(res.AvgPrice)
	qty, err := decimal.NewFromString(res.OrigQuantity)
	if err != nil {
		return nil, rejectedErr("create order", fmt.Errorf("bad quantity %q: %w", res.OrigQuantity, err))
	}
	return &Order{
		OrderID:      strconv.FormatInt(res.OrderID, 10),
		Symbol:       res.Symbol,
		Side:         string(res.Side),
		PositionSide: string(res.PositionSide),
		Price:        price,
		AvgFillPrice: avg,
		Quantity:     qty,
		Status:       string(res.Status),
		ReduceOnly:   reduceOnly,
		UpdatedAt:    time.UnixMilli(res.UpdateTime),
	}, nil
}

func (b *BinanceFutures) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return rejectedErr("cancel order", fmt.Errorf("bad order id %q: %w", orderID, err))
	}

	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	if _, err := b.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(cctx); err != nil {
		return classify("cancel order", err)
	}
	return nil
}

func (b *BinanceFutures) CancelAllOrders(ctx context.Context, symbol string) error {
	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	if err := b.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(cctx); err != nil {
		return classify("cancel all orders", err)
	}
	return nil
}

func (b *BinanceFutures) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	orders, err := b.client.NewListOpenOrdersService().Symbol(symbol).Do(cctx)
	if err != nil {
		return nil, classify("open orders", err)
	}

	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderFromFutures(o))
	}
	return out, nil
}

func (b *BinanceFutures) OrderStatus(ctx context.Context, symbol, orderID string) (*Order, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, rejectedErr("order status", fmt.Errorf("bad order id %q: %w", orderID, err))
	}

	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	o, err := b.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(cctx)
	if err != nil {
		return nil, classify("order status", err)
	}
	order := orderFromFutures(o)
	return &order, nil
}

func orderFromFutures(o *futures.Order) Order {
	price, _ := decimal.NewFromString(o.Price)
	avg, _ := decimal.NewFromString(o.AvgPrice)
	qty, _ := decimal.NewFromString(o.OrigQuantity)
	return Order{
		OrderID:      strconv.FormatInt(o.OrderID, 10),
		Symbol:       o.Symbol,
		Side:         string(o.Side),
		PositionSide: string(o.PositionSide),
		Price:        price,
		AvgFillPrice: avg,
		Quantity:     qty,
		Status:       string(o.Status),
		ReduceOnly:   o.ReduceOnly,
		UpdatedAt:    time.UnixMilli(o.UpdateTime),
	}
}

func (b *BinanceFutures) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	if _, err := b.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(cctx); err != nil {
		return classify("set leverage", err)
	}
	return nil
}

// classify maps an underlying client error to the engine's taxonomy.
// API errors are rejections except the codes Binance documents as
// retryable; everything else (network, timeout) is transient.
func classify(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1000, -1001, -1003, -1007, -1021:
			// unknown/internal/rate-limit/timeout/timestamp drift
			return transientErr(op, err)
		default:
			return rejectedErr(op, err)
		}
	}
	return transientErr(op, err)
}
