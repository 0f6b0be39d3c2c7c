package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trademaestro/internal/domain"
	"trademaestro/internal/orders"
	"trademaestro/internal/ports"
	"trademaestro/internal/risk"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockAccount struct{}

func (m *mockAccount) GetAccountInfo(ctx context.Context) (*ports.AccountInfo, error) {
	return &ports.AccountInfo{Balance: 10000, Equity: 10000, Currency: "USD"}, nil
}

func (m *mockAccount) GetSymbolInfo(ctx context.Context, symbol string) (*ports.SymbolInfo, error) {
	return &ports.SymbolInfo{
		Point:        0.0001,
		ContractSize: 100000,
		VolumeMin:    0.01,
		VolumeMax:    100,
		TradeAllowed: true,
	}, nil
}

func (m *mockAccount) GetCurrentTick(ctx context.Context, symbol string) (*ports.Tick, error) {
	return &ports.Tick{Bid: 1.0999, Ask: 1.1001}, nil
}

type mockOrderGateway struct {
	nextTicket int64
	submitted  int
}

func (m *mockOrderGateway) SubmitOrder(ctx context.Context, req *ports.OrderRequest) (*ports.OrderResult, error) {
	m.nextTicket++
	m.submitted++
	return &ports.OrderResult{Success: true, Ticket: m.nextTicket, Price: req.Price}, nil
}

func (m *mockOrderGateway) ClosePosition(ctx context.Context, ticket int64, volume float64) (*ports.OrderResult, error) {
	return &ports.OrderResult{Success: true, Ticket: ticket}, nil
}

func (m *mockOrderGateway) CancelOrder(ctx context.Context, ticket int64) (*ports.OrderResult, error) {
	return &ports.OrderResult{Success: true, Ticket: ticket}, nil
}

func (m *mockOrderGateway) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	return nil, nil
}

func (m *mockOrderGateway) ListOrders(ctx context.Context) ([]int64, error) {
	return nil, nil
}

func (m *mockOrderGateway) ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) (*ports.OrderResult, error) {
	return &ports.OrderResult{Success: true, Ticket: ticket}, nil
}

// mockData serves canned series per symbol, or an error.
type mockData struct {
	series map[string]domain.Series
	errs   map[string]error
	calls  []string
}

func (m *mockData) GetHistoricalBars(ctx context.Context, symbol, timeframe string, count int) (domain.Series, error) {
	m.calls = append(m.calls, symbol)
	if err := m.errs[symbol]; err != nil {
		return nil, err
	}
	return m.series[symbol], nil
}

// mockStrategy returns canned results per symbol.
type mockStrategy struct {
	results map[string]*domain.StrategyResult
	errs    map[string]error
	panics  map[string]bool
}

func (m *mockStrategy) Name() string            { return "mock" }
func (m *mockStrategy) Timeframe() string       { return "M1" }
func (m *mockStrategy) RequiredDataPoints() int { return 2 }

func (m *mockStrategy) AnalyzeMarket(ctx context.Context, symbol string, series domain.Series) (*domain.StrategyResult, error) {
	if m.panics[symbol] {
		panic("indicator blew up")
	}
	if err := m.errs[symbol]; err != nil {
		return nil, err
	}
	if r, ok := m.results[symbol]; ok {
		return r, nil
	}
	return domain.Hold("nothing to do"), nil
}

func bars(n int) domain.Series {
	s := make(domain.Series, n)
	for i := range s {
		s[i] = domain.Bar{Open: 1.1, High: 1.101, Low: 1.099, Close: 1.1, Volume: 100}
	}
	return s
}

func buyResult() *domain.StrategyResult {
	return &domain.StrategyResult{
		Signal:     domain.SignalBuy,
		Confidence: 0.8,
		EntryPrice: 1.1000,
		StopLoss:   1.0950,
		TakeProfit: 1.1100,
		Reason:     "confluence",
		Metadata:   map[string]any{},
	}
}

func newTestEngine(t *testing.T, strat *mockStrategy, data *mockData, gateway *mockOrderGateway, symbols []string) *Engine {
	t.Helper()
	account := &mockAccount{}
	manager, err := orders.NewManager(gateway, account, nil, &mockLogger{})
	require.NoError(t, err)
	gatekeeper, err := risk.NewGatekeeper(
		domain.RiskLimits{MaxPositions: 3, MaxRiskPerTrade: 0.02, MinConfidence: 0.6},
		account, 0.01, &mockLogger{},
	)
	require.NoError(t, err)
	eng, err := New(strat, data, gatekeeper, manager, &mockLogger{}, symbols)
	require.NoError(t, err)
	return eng
}

func TestRunCycleOpensApprovedSignal(t *testing.T) {
	gateway := &mockOrderGateway{}
	strat := &mockStrategy{results: map[string]*domain.StrategyResult{"EURUSD": buyResult()}}
	data := &mockData{series: map[string]domain.Series{"EURUSD": bars(5)}}
	eng := newTestEngine(t, strat, data, gateway, []string{"EURUSD"})

	eng.RunCycle(context.Background())

	assert.Equal(t, 1, gateway.submitted)
	assert.Equal(t, 1, eng.Manager().OpenCount())
}

func TestRunCycleOneSymbolFailureDoesNotAbort(t *testing.T) {
	gateway := &mockOrderGateway{}
	strat := &mockStrategy{results: map[string]*domain.StrategyResult{"GBPUSD": buyResult()}}
	data := &mockData{
		series: map[string]domain.Series{"GBPUSD": bars(5)},
		errs:   map[string]error{"EURUSD": errors.New("feed down")},
	}
	eng := newTestEngine(t, strat, data, gateway, []string{"EURUSD", "GBPUSD"})

	eng.RunCycle(context.Background())

	// The failing symbol is skipped, the healthy one still trades.
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, data.calls)
	assert.Equal(t, 1, gateway.submitted)
}

func TestRunCycleStrategyErrorHolds(t *testing.T) {
	gateway := &mockOrderGateway{}
	strat := &mockStrategy{errs: map[string]error{"EURUSD": errors.New("bad math")}}
	data := &mockData{series: map[string]domain.Series{"EURUSD": bars(5)}}
	eng := newTestEngine(t, strat, data, gateway, []string{"EURUSD"})

	eng.RunCycle(context.Background())

	assert.Zero(t, gateway.submitted)
}

func TestRunCycleStrategyPanicIsContained(t *testing.T) {
	gateway := &mockOrderGateway{}
	strat := &mockStrategy{
		panics:  map[string]bool{"EURUSD": true},
		results: map[string]*domain.StrategyResult{"GBPUSD": buyResult()},
	}
	data := &mockData{series: map[string]domain.Series{
		"EURUSD": bars(5),
		"GBPUSD": bars(5),
	}}
	eng := newTestEngine(t, strat, data, gateway, []string{"EURUSD", "GBPUSD"})

	require.NotPanics(t, func() { eng.RunCycle(context.Background()) })
	assert.Equal(t, 1, gateway.submitted)
}

func TestRunCycleSkipsShortHistory(t *testing.T) {
	gateway := &mockOrderGateway{}
	strat := &mockStrategy{results: map[string]*domain.StrategyResult{"EURUSD": buyResult()}}
	data := &mockData{series: map[string]domain.Series{"EURUSD": bars(1)}}
	eng := newTestEngine(t, strat, data, gateway, []string{"EURUSD"})

	eng.RunCycle(context.Background())

	assert.Zero(t, gateway.submitted)
}

func TestRunCycleCloseSignal(t *testing.T) {
	gateway := &mockOrderGateway{}
	strat := &mockStrategy{results: map[string]*domain.StrategyResult{"EURUSD": buyResult()}}
	data := &mockData{series: map[string]domain.Series{"EURUSD": bars(5)}}
	eng := newTestEngine(t, strat, data, gateway, []string{"EURUSD"})

	eng.RunCycle(context.Background())
	require.Equal(t, 1, eng.Manager().OpenCount())

	strat.results["EURUSD"] = &domain.StrategyResult{
		Signal:   domain.SignalCloseBuy,
		Reason:   "trend exhausted",
		Metadata: map[string]any{},
	}
	eng.RunCycle(context.Background())

	assert.Zero(t, eng.Manager().OpenCount())
}

func TestRunCycleRespectsMaxPositions(t *testing.T) {
	gateway := &mockOrderGateway{}
	strat := &mockStrategy{results: map[string]*domain.StrategyResult{
		"A": buyResult(), "B": buyResult(), "C": buyResult(), "D": buyResult(),
	}}
	data := &mockData{series: map[string]domain.Series{
		"A": bars(5), "B": bars(5), "C": bars(5), "D": bars(5),
	}}
	eng := newTestEngine(t, strat, data, gateway, []string{"A", "B", "C", "D"})

	eng.RunCycle(context.Background())

	// The gatekeeper allows at most three concurrent positions.
	assert.Equal(t, 3, eng.Manager().OpenCount())
}
