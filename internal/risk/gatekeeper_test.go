package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trademaestro/internal/domain"
	"trademaestro/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type stubAccount struct {
	balance      float64
	tradeAllowed bool
	volumeMin    float64
	volumeMax    float64
}

func (s *stubAccount) GetAccountInfo(ctx context.Context) (*ports.AccountInfo, error) {
	return &ports.AccountInfo{Balance: s.balance, Equity: s.balance, Currency: "USD"}, nil
}

func (s *stubAccount) GetSymbolInfo(ctx context.Context, symbol string) (*ports.SymbolInfo, error) {
	return &ports.SymbolInfo{
		Point:        0.0001,
		ContractSize: 100000,
		VolumeMin:    s.volumeMin,
		VolumeMax:    s.volumeMax,
		Spread:       0.0002,
		TradeAllowed: s.tradeAllowed,
	}, nil
}

func (s *stubAccount) GetCurrentTick(ctx context.Context, symbol string) (*ports.Tick, error) {
	return &ports.Tick{Bid: 1.0999, Ask: 1.1001}, nil
}

func defaultLimits() domain.RiskLimits {
	return domain.RiskLimits{MaxPositions: 3, MaxRiskPerTrade: 0.02, MinConfidence: 0.6}
}

func newTestGatekeeper(t *testing.T, limits domain.RiskLimits, account *stubAccount) *Gatekeeper {
	t.Helper()
	g, err := NewGatekeeper(limits, account, 0.01, &mockLogger{})
	require.NoError(t, err)
	return g
}

func buySignal() *domain.StrategyResult {
	return &domain.StrategyResult{
		Signal:     domain.SignalBuy,
		Confidence: 0.8,
		EntryPrice: 1.1000,
		StopLoss:   1.0950,
		TakeProfit: 1.1100,
		Metadata:   map[string]any{},
	}
}

func TestNewGatekeeperValidation(t *testing.T) {
	account := &stubAccount{balance: 10000, tradeAllowed: true}

	_, err := NewGatekeeper(domain.RiskLimits{MaxPositions: 0, MaxRiskPerTrade: 0.02}, account, 0.01, &mockLogger{})
	assert.Error(t, err)

	_, err = NewGatekeeper(domain.RiskLimits{MaxPositions: 3, MaxRiskPerTrade: 1.5}, account, 0.01, &mockLogger{})
	assert.Error(t, err)

	_, err = NewGatekeeper(defaultLimits(), nil, 0.01, &mockLogger{})
	assert.Error(t, err)
}

func TestApproveSizesFromRiskBudget(t *testing.T) {
	account := &stubAccount{balance: 10000, tradeAllowed: true, volumeMin: 0.01, volumeMax: 100}
	g := newTestGatekeeper(t, defaultLimits(), account)

	// 2% of 10000 = 200 at risk; stop distance 0.0050 on a 100000 contract
	// means 500 per lot, so 0.4 lots.
	lot, err := g.Approve(context.Background(), "EURUSD", buySignal(), 0, false)

	require.NoError(t, err)
	assert.InDelta(t, 0.4, lot, 1e-9)
}

func TestApproveClampsToVolumeLimits(t *testing.T) {
	account := &stubAccount{balance: 10000, tradeAllowed: true, volumeMin: 0.01, volumeMax: 0.1}
	g := newTestGatekeeper(t, defaultLimits(), account)

	lot, err := g.Approve(context.Background(), "EURUSD", buySignal(), 0, false)

	require.NoError(t, err)
	assert.InDelta(t, 0.1, lot, 1e-9)
}

func TestApproveRejections(t *testing.T) {
	tests := []struct {
		name          string
		account       *stubAccount
		signal        *domain.StrategyResult
		openPositions int
		holding       bool
		wantErr       error
	}{
		{
			name:    "hold signal is not actionable",
			account: &stubAccount{balance: 10000, tradeAllowed: true},
			signal:  &domain.StrategyResult{Signal: domain.SignalHold},
			wantErr: ports.ErrRiskRejected,
		},
		{
			name:    "confidence below floor",
			account: &stubAccount{balance: 10000, tradeAllowed: true},
			signal: func() *domain.StrategyResult {
				r := buySignal()
				r.Confidence = 0.55
				return r
			}(),
			wantErr: ports.ErrRiskRejected,
		},
		{
			name:          "max positions reached",
			account:       &stubAccount{balance: 10000, tradeAllowed: true},
			signal:        buySignal(),
			openPositions: 3,
			wantErr:       ports.ErrRiskRejected,
		},
		{
			name:    "already holding the symbol",
			account: &stubAccount{balance: 10000, tradeAllowed: true},
			signal:  buySignal(),
			holding: true,
			wantErr: ports.ErrRiskRejected,
		},
		{
			name:    "stop on wrong side of entry",
			account: &stubAccount{balance: 10000, tradeAllowed: true},
			signal: func() *domain.StrategyResult {
				r := buySignal()
				r.StopLoss = 1.1050
				return r
			}(),
			wantErr: ports.ErrRiskRejected,
		},
		{
			name:    "trading disabled for symbol",
			account: &stubAccount{balance: 10000, tradeAllowed: false},
			signal:  buySignal(),
			wantErr: ports.ErrTradeNotAllowed,
		},
		{
			name:    "empty account",
			account: &stubAccount{balance: 0, tradeAllowed: true},
			signal:  buySignal(),
			wantErr: ports.ErrInsufficientFunds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGatekeeper(t, defaultLimits(), tt.account)

			_, err := g.Approve(context.Background(), "EURUSD", tt.signal, tt.openPositions, tt.holding)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApproveHonorsSuppliedLot(t *testing.T) {
	account := &stubAccount{balance: 10000, tradeAllowed: true, volumeMin: 0.01, volumeMax: 100}
	g := newTestGatekeeper(t, defaultLimits(), account)

	// One lot over a 50-pip stop: risk fraction 1.0 x 0.0050 / 10000 is far
	// inside the 2% limit, so the request stands as given.
	r := buySignal()
	r.LotSize = 1.0

	lot, err := g.Approve(context.Background(), "EURUSD", r, 0, false)

	require.NoError(t, err)
	assert.InDelta(t, 1.0, lot, 1e-9)
}

func TestApproveRejectsOversizedSuppliedLot(t *testing.T) {
	account := &stubAccount{balance: 10000, tradeAllowed: true, volumeMin: 0.01, volumeMax: 100}
	g := newTestGatekeeper(t, defaultLimits(), account)

	// 50 lots x 0.0050 / 10000 = 2.5% of balance, past the 2% limit.
	r := buySignal()
	r.LotSize = 50

	_, err := g.Approve(context.Background(), "EURUSD", r, 0, false)

	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrRiskRejected)
}

func TestApproveRiskFractionProperty(t *testing.T) {
	// Across balances and stop distances the realized risk never exceeds
	// the configured fraction (modulo the volume floor).
	account := &stubAccount{balance: 25000, tradeAllowed: true, volumeMin: 0.01, volumeMax: 100}
	g := newTestGatekeeper(t, defaultLimits(), account)

	stops := []float64{1.0990, 1.0960, 1.0900, 1.0800}
	for _, stop := range stops {
		r := buySignal()
		r.StopLoss = stop

		lot, err := g.Approve(context.Background(), "EURUSD", r, 0, false)
		require.NoError(t, err)

		riskAmount := (r.EntryPrice - stop) * lot * 100000
		assert.LessOrEqual(t, riskAmount, 25000*0.02+1e-6, "stop %v", stop)
	}
}
