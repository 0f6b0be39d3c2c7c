package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trademaestro/internal/domain"
	"trademaestro/internal/engine"
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
	return &ports.AccountInfo{Balance: 10000}, nil
}

func (m *mockAccount) GetSymbolInfo(ctx context.Context, symbol string) (*ports.SymbolInfo, error) {
	return &ports.SymbolInfo{Point: 0.0001, ContractSize: 100000, TradeAllowed: true}, nil
}

func (m *mockAccount) GetCurrentTick(ctx context.Context, symbol string) (*ports.Tick, error) {
	return &ports.Tick{Bid: 1.0999, Ask: 1.1001}, nil
}

type mockOrderGateway struct{}

func (m *mockOrderGateway) SubmitOrder(ctx context.Context, req *ports.OrderRequest) (*ports.OrderResult, error) {
	return &ports.OrderResult{Success: true, Ticket: 1, Price: req.Price}, nil
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

func (m *mockOrderGateway) ListOrders(ctx context.Context) ([]int64, error) { return nil, nil }

func (m *mockOrderGateway) ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) (*ports.OrderResult, error) {
	return &ports.OrderResult{Success: true, Ticket: ticket}, nil
}

// countingStrategy tallies analysis calls per instance name.
type countingStrategy struct {
	name  string
	calls *atomic.Int64
}

func (s *countingStrategy) Name() string            { return s.name }
func (s *countingStrategy) Timeframe() string       { return "M1" }
func (s *countingStrategy) RequiredDataPoints() int { return 1 }

func (s *countingStrategy) AnalyzeMarket(ctx context.Context, symbol string, series domain.Series) (*domain.StrategyResult, error) {
	s.calls.Add(1)
	return domain.Hold("counting"), nil
}

type staticData struct{}

func (d *staticData) GetHistoricalBars(ctx context.Context, symbol, timeframe string, count int) (domain.Series, error) {
	return domain.Series{{Open: 1.1, High: 1.101, Low: 1.099, Close: 1.1, Volume: 100}}, nil
}

// testFactory builds engines around counting strategies and remembers the
// per-strategy call counters.
func testFactory(t *testing.T) (EngineFactory, map[string]*atomic.Int64) {
	t.Helper()
	counters := map[string]*atomic.Int64{
		"scalping": {},
		"swing":    {},
	}
	factory := func(name string) (*engine.Engine, error) {
		counter, ok := counters[name]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		account := &mockAccount{}
		manager, err := orders.NewManager(&mockOrderGateway{}, account, nil, &mockLogger{})
		if err != nil {
			return nil, err
		}
		gatekeeper, err := risk.NewGatekeeper(
			domain.RiskLimits{MaxPositions: 3, MaxRiskPerTrade: 0.02, MinConfidence: 0.6},
			account, 0.01, &mockLogger{},
		)
		if err != nil {
			return nil, err
		}
		strat := &countingStrategy{name: name, calls: counter}
		return engine.New(strat, &staticData{}, gatekeeper, manager, &mockLogger{}, []string{"EURUSD"})
	}
	return factory, counters
}

func waitForCalls(t *testing.T, counter *atomic.Int64, min int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if counter.Load() >= min {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least %d cycles, got %d", min, counter.Load())
}

func TestStartRunsCycles(t *testing.T) {
	factory, counters := testFactory(t)
	s, err := New(factory, 10*time.Millisecond, &mockLogger{})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background(), "scalping"))
	defer s.Stop(context.Background())

	assert.Equal(t, "scalping", s.Active())
	waitForCalls(t, counters["scalping"], 2)
}

func TestStopJoinsWorker(t *testing.T) {
	factory, counters := testFactory(t)
	s, err := New(factory, 10*time.Millisecond, &mockLogger{})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background(), "scalping"))
	waitForCalls(t, counters["scalping"], 1)

	s.Stop(context.Background())

	assert.Empty(t, s.Active())
	assert.Nil(t, s.Engine())

	// No further cycles run after the join.
	stopped := counters["scalping"].Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, counters["scalping"].Load())
}

func TestStopIsIdempotent(t *testing.T) {
	factory, _ := testFactory(t)
	s, err := New(factory, 10*time.Millisecond, &mockLogger{})
	require.NoError(t, err)

	s.Stop(context.Background()) // Never started
	require.NoError(t, s.Start(context.Background(), "scalping"))
	s.Stop(context.Background())
	s.Stop(context.Background())
	assert.Empty(t, s.Active())
}

func TestSwitchStopsBeforeStarting(t *testing.T) {
	factory, counters := testFactory(t)
	s, err := New(factory, 10*time.Millisecond, &mockLogger{})
	require.NoError(t, err)
	defer s.Stop(context.Background())

	require.NoError(t, s.Start(context.Background(), "scalping"))
	waitForCalls(t, counters["scalping"], 1)

	require.NoError(t, s.Switch(context.Background(), "swing"))
	assert.Equal(t, "swing", s.Active())
	waitForCalls(t, counters["swing"], 1)

	// The previous strategy no longer advances.
	scalping := counters["scalping"].Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, scalping, counters["scalping"].Load())
}

func TestConcurrentStartsLeaveOneWorker(t *testing.T) {
	factory, counters := testFactory(t)
	s, err := New(factory, 10*time.Millisecond, &mockLogger{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, name := range []string{"scalping", "swing"} {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			assert.NoError(t, s.Start(context.Background(), n))
		}(name)
	}
	wg.Wait()

	assert.Contains(t, []string{"scalping", "swing"}, s.Active())

	// Stopping the winner must leave no orphaned worker behind.
	s.Stop(context.Background())
	scalping := counters["scalping"].Load()
	swing := counters["swing"].Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, scalping, counters["scalping"].Load())
	assert.Equal(t, swing, counters["swing"].Load())
}

func TestStartUnknownStrategyKeepsSchedulerStopped(t *testing.T) {
	factory, _ := testFactory(t)
	s, err := New(factory, 10*time.Millisecond, &mockLogger{})
	require.NoError(t, err)

	err = s.Start(context.Background(), "martingale")

	assert.Error(t, err)
	assert.Empty(t, s.Active())
}

func TestNewSchedulerValidation(t *testing.T) {
	factory, _ := testFactory(t)

	_, err := New(nil, time.Second, &mockLogger{})
	assert.Error(t, err)

	_, err = New(factory, 0, &mockLogger{})
	assert.Error(t, err)

	_, err = New(factory, time.Second, nil)
	assert.Error(t, err)
}
