package risk

import (
	"context"
	"fmt"
	"math"

	"trademaestro/internal/domain"
	"trademaestro/internal/ports"
)

// Gatekeeper sits between strategy signals and order placement. Every
// actionable signal must pass its checks; approved signals come back with a
// position size derived from the account risk budget.
type Gatekeeper struct {
	limits     domain.RiskLimits
	account    ports.AccountGateway
	defaultLot float64
	logger     ports.Logger
}

// minApprovalConfidence is the floor applied to every signal regardless of
// the configured limits. Strategies carry their own, usually stricter,
// thresholds on top.
const minApprovalConfidence = 0.6

// NewGatekeeper creates a risk gatekeeper with the given limits.
func NewGatekeeper(limits domain.RiskLimits, account ports.AccountGateway, defaultLot float64, logger ports.Logger) (*Gatekeeper, error) {
	if account == nil {
		return nil, fmt.Errorf("account gateway is required for risk gatekeeper")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk gatekeeper")
	}
	if limits.MaxPositions <= 0 {
		return nil, fmt.Errorf("%w: max positions must be positive", ports.ErrConfigurationError)
	}
	if limits.MaxRiskPerTrade <= 0 || limits.MaxRiskPerTrade >= 1 {
		return nil, fmt.Errorf("%w: risk per trade must be in (0, 1)", ports.ErrConfigurationError)
	}
	if defaultLot <= 0 {
		defaultLot = 0.01
	}
	return &Gatekeeper{
		limits:     limits,
		account:    account,
		defaultLot: defaultLot,
		logger:     logger,
	}, nil
}

// Approve validates the signal against the risk limits and current exposure
// and returns the lot size to trade. Rejections wrap ports.ErrRiskRejected
// with the reason.
func (g *Gatekeeper) Approve(ctx context.Context, symbol string, res *domain.StrategyResult, openPositions int, alreadyHolding bool) (float64, error) {
	if res == nil || !res.Signal.IsActionable() {
		return 0, fmt.Errorf("%w: signal is not actionable", ports.ErrRiskRejected)
	}

	floor := math.Max(minApprovalConfidence, g.limits.MinConfidence)
	if res.Confidence < floor {
		return 0, fmt.Errorf("%w: confidence %.2f below minimum %.2f", ports.ErrRiskRejected, res.Confidence, floor)
	}
	if alreadyHolding {
		return 0, fmt.Errorf("%w: position already open for %s", ports.ErrRiskRejected, symbol)
	}
	if openPositions >= g.limits.MaxPositions {
		return 0, fmt.Errorf("%w: max positions reached (%d)", ports.ErrRiskRejected, g.limits.MaxPositions)
	}
	if !res.LevelsValid() {
		return 0, fmt.Errorf("%w: stop/target levels invalid for %s signal", ports.ErrRiskRejected, res.Signal)
	}

	info, err := g.account.GetSymbolInfo(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("risk: symbol info for %s: %w", symbol, err)
	}
	if !info.TradeAllowed {
		return 0, fmt.Errorf("%w: trading disabled for %s", ports.ErrTradeNotAllowed, symbol)
	}

	lot, err := g.positionSize(ctx, res, info)
	if err != nil {
		return 0, err
	}

	g.logger.Info(ctx, "Signal approved", map[string]interface{}{
		"symbol":     symbol,
		"signal":     res.Signal,
		"confidence": res.Confidence,
		"lot_size":   lot,
	})
	return lot, nil
}

// positionSize converts the per-trade risk budget into a lot size from the
// stop distance, clamped to the symbol volume limits. A lot size supplied by
// the strategy is kept once its risk fraction passes the limit.
func (g *Gatekeeper) positionSize(ctx context.Context, res *domain.StrategyResult, info *ports.SymbolInfo) (float64, error) {
	acct, err := g.account.GetAccountInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("risk: account info: %w", err)
	}
	if acct.Balance <= 0 {
		return 0, fmt.Errorf("%w: account balance is not positive", ports.ErrInsufficientFunds)
	}

	stopDistance := math.Abs(res.EntryPrice - res.StopLoss)
	contractSize := info.ContractSize
	if contractSize == 0 {
		contractSize = 100000
	}

	lot := g.defaultLot
	if res.LotSize > 0 {
		// The risk fraction for a supplied lot is lot x stop distance over
		// balance, without the contract factor.
		if stopDistance > 0 {
			fraction := res.LotSize * stopDistance / acct.Balance
			if fraction > g.limits.MaxRiskPerTrade+1e-9 {
				return 0, fmt.Errorf("%w: requested lot risks %.1f%% of balance (limit %.1f%%)",
					ports.ErrRiskRejected, fraction*100, g.limits.MaxRiskPerTrade*100)
			}
		}
		lot = res.LotSize
	} else if stopDistance > 0 {
		riskAmount := acct.Balance * g.limits.MaxRiskPerTrade
		lot = riskAmount / (stopDistance * contractSize)
	}

	if info.VolumeMin > 0 && lot < info.VolumeMin {
		lot = info.VolumeMin
	}
	if info.VolumeMax > 0 && lot > info.VolumeMax {
		lot = info.VolumeMax
	}
	// Round down to two decimals, the broker lot step.
	lot = math.Floor(lot*100) / 100
	if lot <= 0 {
		return 0, fmt.Errorf("%w: computed lot size is zero", ports.ErrRiskRejected)
	}
	return lot, nil
}
