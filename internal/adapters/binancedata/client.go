package binancedata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"trademaestro/internal/domain"
	"trademaestro/internal/ports"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// timeframes maps engine timeframe names to Binance kline intervals.
var timeframes = map[string]string{
	"M1":  "1m",
	"M5":  "5m",
	"M15": "15m",
	"M30": "30m",
	"H1":  "1h",
	"H4":  "4h",
	"D1":  "1d",
}

// Client implements ports.MarketDataProvider against the Binance futures
// REST API. Market data endpoints are public, so no keys are required.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
}

// Config holds configuration specific to the Binance data adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a Binance market data client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance data client")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance data client configured", map[string]interface{}{"baseURL": client.BaseURL})

	return &Client{futuresClient: client, logger: cfg.Logger}, nil
}

// handleError translates Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		var mappedErr error
		switch apiErr.Code {
		case -1003:
			mappedErr = ports.ErrRateLimited
		case -1021:
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015:
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1120, -1121:
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrMarketDataUnavailable
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), map[string]interface{}{
			"apiErrorCode":    apiErr.Code,
			"apiErrorMessage": apiErr.Message,
		})
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	}
	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), map[string]interface{}{"originalError": err.Error()})
	return finalErr
}

// GetHistoricalBars fetches the most recent count bars for the symbol in the
// given timeframe.
func (c *Client) GetHistoricalBars(ctx context.Context, symbol, timeframe string, count int) (domain.Series, error) {
	op := "GetHistoricalBars"
	interval, ok := timeframes[timeframe]
	if !ok {
		return nil, fmt.Errorf("%s: %w: unknown timeframe %q", op, ports.ErrInvalidRequest, timeframe)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%s: %w: bar count must be positive", op, ports.ErrInvalidRequest)
	}

	klines, err := c.futuresClient.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(count).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	series := make(domain.Series, 0, len(klines))
	for _, k := range klines {
		bar, err := translateKline(k)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		series = append(series, bar)
	}
	return series, nil
}

// GetCurrentTick returns the top-of-book quote for the symbol. Exposed so a
// Binance-backed account gateway can share the client.
func (c *Client) GetCurrentTick(ctx context.Context, symbol string) (*ports.Tick, error) {
	op := "GetCurrentTick"
	books, err := c.futuresClient.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("%s: %w: no book ticker for %s", op, ports.ErrMarketDataUnavailable, symbol)
	}

	bid, err := strconv.ParseFloat(books[0].BidPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing bid price %q: %w", op, books[0].BidPrice, err)
	}
	ask, err := strconv.ParseFloat(books[0].AskPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing ask price %q: %w", op, books[0].AskPrice, err)
	}
	return &ports.Tick{Bid: bid, Ask: ask}, nil
}

// Ping checks connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, "Ping")
	}
	return nil
}

func translateKline(k *futures.Kline) (domain.Bar, error) {
	if k == nil {
		return domain.Bar{}, errors.New("received nil kline")
	}
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing open price %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing high price %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing low price %q: %w", k.Low, err)
	}
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing close price %q: %w", k.Close, err)
	}
	vol, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing volume %q: %w", k.Volume, err)
	}

	return domain.Bar{
		OpenTime: time.UnixMilli(k.OpenTime),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    cls,
		Volume:   vol,
	}, nil
}
