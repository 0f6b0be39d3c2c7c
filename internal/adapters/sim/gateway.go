package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"trademaestro/internal/domain"
	"trademaestro/internal/ports"
)

const (
	defaultBalance  = 10000.0
	defaultContract = 100000.0
	defaultPoint    = 0.0001
	defaultSpread   = 0.0002 // 2 pips
)

// basePrices seeds the random walk per symbol. Unknown symbols start at 1.0.
var basePrices = map[string]float64{
	"EURUSD": 1.1000,
	"GBPUSD": 1.2700,
	"USDJPY": 148.50,
	"AUDUSD": 0.6600,
	"USDCHF": 0.8800,
}

// Gateway is an in-memory paper-trading backend implementing the account,
// order and market data ports. Prices follow a seeded random walk so runs
// are reproducible; fills are instantaneous at the current quote.
type Gateway struct {
	mu         sync.Mutex
	rng        *rand.Rand
	balance    float64
	nextTicket int64
	prices     map[string]float64 // Last close per symbol
	positions  map[int64]*domain.Position
	now        func() time.Time
}

// NewGateway creates a paper gateway with the default starting balance.
func NewGateway(seed int64) *Gateway {
	return &Gateway{
		rng:        rand.New(rand.NewSource(seed)),
		balance:    defaultBalance,
		nextTicket: 1000,
		prices:     make(map[string]float64),
		positions:  make(map[int64]*domain.Position),
		now:        time.Now,
	}
}

func (g *Gateway) priceLocked(symbol string) float64 {
	p, ok := g.prices[symbol]
	if !ok {
		p = basePrices[symbol]
		if p == 0 {
			p = 1.0
		}
		g.prices[symbol] = p
	}
	return p
}

// GetAccountInfo returns the simulated account snapshot. Equity includes the
// floating profit of open positions at the last known prices.
func (g *Gateway) GetAccountInfo(ctx context.Context) (*ports.AccountInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	floating := 0.0
	for _, pos := range g.positions {
		floating += g.floatingProfitLocked(pos)
	}
	return &ports.AccountInfo{
		Balance:  g.balance,
		Equity:   g.balance + floating,
		Margin:   0,
		Currency: "USD",
	}, nil
}

func (g *Gateway) floatingProfitLocked(pos *domain.Position) float64 {
	price := g.priceLocked(pos.Symbol)
	if pos.Side == domain.Buy {
		return (price - pos.EntryPrice) * pos.Volume * defaultContract
	}
	return (pos.EntryPrice - price) * pos.Volume * defaultContract
}

// GetSymbolInfo returns the fixed trading parameters of the paper market.
func (g *Gateway) GetSymbolInfo(ctx context.Context, symbol string) (*ports.SymbolInfo, error) {
	return &ports.SymbolInfo{
		Point:        defaultPoint,
		ContractSize: defaultContract,
		VolumeMin:    0.01,
		VolumeMax:    100,
		Spread:       defaultSpread,
		TradeAllowed: true,
	}, nil
}

// GetCurrentTick quotes the symbol around the last close, half the spread on
// each side.
func (g *Gateway) GetCurrentTick(ctx context.Context, symbol string) (*ports.Tick, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	mid := g.priceLocked(symbol)
	return &ports.Tick{
		Bid:  mid - defaultSpread/2,
		Ask:  mid + defaultSpread/2,
		Time: g.now(),
	}, nil
}

// GetHistoricalBars generates count bars of a random walk ending at the
// symbol's current price. The walk advances the stored price so successive
// calls form a continuous series.
func (g *Gateway) GetHistoricalBars(ctx context.Context, symbol, timeframe string, count int) (domain.Series, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: bar count must be positive", ports.ErrInvalidRequest)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	step, err := barDuration(timeframe)
	if err != nil {
		return nil, err
	}

	price := g.priceLocked(symbol)
	series := make(domain.Series, 0, count)
	openTime := g.now().Add(-time.Duration(count) * step).Truncate(step)
	for i := 0; i < count; i++ {
		open := price
		drift := g.rng.NormFloat64() * 0.0004 * open / 1.1
		close := open + drift
		high := maxFloat(open, close) + g.rng.Float64()*0.0003
		low := minFloat(open, close) - g.rng.Float64()*0.0003
		series = append(series, domain.Bar{
			OpenTime: openTime,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
			Volume:   float64(100 + g.rng.Intn(900)),
		})
		price = close
		openTime = openTime.Add(step)
	}
	g.prices[symbol] = price
	return series, nil
}

func barDuration(timeframe string) (time.Duration, error) {
	switch timeframe {
	case "M1":
		return time.Minute, nil
	case "M5":
		return 5 * time.Minute, nil
	case "M15":
		return 15 * time.Minute, nil
	case "M30":
		return 30 * time.Minute, nil
	case "H1":
		return time.Hour, nil
	case "H4":
		return 4 * time.Hour, nil
	case "D1":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: unknown timeframe %q", ports.ErrInvalidRequest, timeframe)
	}
}

// SubmitOrder fills a market order instantly at the requested price, or the
// current quote when no price is given.
func (g *Gateway) SubmitOrder(ctx context.Context, req *ports.OrderRequest) (*ports.OrderResult, error) {
	if req == nil || req.Volume <= 0 {
		return nil, fmt.Errorf("%w: order volume must be positive", ports.ErrInvalidRequest)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	fill := req.Price
	if fill == 0 {
		mid := g.priceLocked(req.Symbol)
		if req.Side == domain.Buy {
			fill = mid + defaultSpread/2
		} else {
			fill = mid - defaultSpread/2
		}
	}

	g.nextTicket++
	ticket := g.nextTicket
	g.positions[ticket] = &domain.Position{
		Ticket:     ticket,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Volume:     req.Volume,
		EntryPrice: fill,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenTime:   g.now(),
		Comment:    req.Tag,
		Status:     domain.StatusOpen,
	}
	return &ports.OrderResult{Success: true, Ticket: ticket, Price: fill}, nil
}

// ClosePosition closes the position against the opposite side of the quote
// and realizes the profit into the balance.
func (g *Gateway) ClosePosition(ctx context.Context, ticket int64, volume float64) (*ports.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.positions[ticket]
	if !ok {
		return &ports.OrderResult{Success: false, Error: "position not found"}, nil
	}
	if volume <= 0 || volume > pos.Volume {
		volume = pos.Volume
	}

	mid := g.priceLocked(pos.Symbol)
	var exit, profit float64
	if pos.Side == domain.Buy {
		exit = mid - defaultSpread/2
		profit = (exit - pos.EntryPrice) * volume * defaultContract
	} else {
		exit = mid + defaultSpread/2
		profit = (pos.EntryPrice - exit) * volume * defaultContract
	}
	g.balance += profit

	if volume < pos.Volume {
		pos.Volume -= volume
	} else {
		delete(g.positions, ticket)
	}
	return &ports.OrderResult{Success: true, Ticket: ticket, Price: exit}, nil
}

// CancelOrder always reports not found: the paper gateway fills market
// orders instantly, so nothing is ever pending.
func (g *Gateway) CancelOrder(ctx context.Context, ticket int64) (*ports.OrderResult, error) {
	return &ports.OrderResult{Success: false, Error: "no pending order"}, nil
}

// ListPositions returns copies of the open simulated positions.
func (g *Gateway) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*domain.Position, 0, len(g.positions))
	for _, pos := range g.positions {
		copied := *pos
		copied.CurrentPrice = g.priceLocked(pos.Symbol)
		copied.Profit = g.floatingProfitLocked(pos)
		out = append(out, &copied)
	}
	return out, nil
}

// ListOrders returns no tickets: market orders never rest on the book.
func (g *Gateway) ListOrders(ctx context.Context) ([]int64, error) {
	return nil, nil
}

// ModifyPosition updates stop and target levels on an open position.
func (g *Gateway) ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) (*ports.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.positions[ticket]
	if !ok {
		return &ports.OrderResult{Success: false, Error: "position not found"}, nil
	}
	if stopLoss != 0 {
		pos.StopLoss = stopLoss
	}
	if takeProfit != 0 {
		pos.TakeProfit = takeProfit
	}
	return &ports.OrderResult{Success: true, Ticket: ticket}, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
