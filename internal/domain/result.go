package domain

// StrategyResult is the outcome of analysing one symbol in one cycle.
// It is ephemeral: created by a strategy and consumed immediately by the
// risk gatekeeper.
//
// EntryPrice, StopLoss, TakeProfit and LotSize are optional; zero means
// unset (quoted prices and lot sizes are never zero).
type StrategyResult struct {
	Signal     SignalType
	Confidence float64 // 0.0 to 1.0
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	LotSize    float64
	Reason     string
	Metadata   map[string]any // strategy-specific diagnostics
}

// Hold builds a HOLD result with zero confidence and the given reason.
func Hold(reason string) *StrategyResult {
	return &StrategyResult{
		Signal:   SignalHold,
		Reason:   reason,
		Metadata: map[string]any{},
	}
}

// RewardRisk returns |take_profit-entry| / |entry-stop_loss|, or 0 when any
// of the three levels is unset or the risk distance is zero.
func (r *StrategyResult) RewardRisk() float64 {
	if r.EntryPrice == 0 || r.StopLoss == 0 || r.TakeProfit == 0 {
		return 0
	}
	risk := r.EntryPrice - r.StopLoss
	if risk < 0 {
		risk = -risk
	}
	if risk == 0 {
		return 0
	}
	reward := r.TakeProfit - r.EntryPrice
	if reward < 0 {
		reward = -reward
	}
	return reward / risk
}

// LevelsValid checks that stop loss and take profit sit on the economically
// correct side of the entry price for the signal direction. Unset levels are
// considered valid.
func (r *StrategyResult) LevelsValid() bool {
	if r.EntryPrice == 0 {
		return true
	}
	switch r.Signal {
	case SignalBuy:
		if r.StopLoss != 0 && r.StopLoss >= r.EntryPrice {
			return false
		}
		if r.TakeProfit != 0 && r.TakeProfit <= r.EntryPrice {
			return false
		}
	case SignalSell:
		if r.StopLoss != 0 && r.StopLoss <= r.EntryPrice {
			return false
		}
		if r.TakeProfit != 0 && r.TakeProfit >= r.EntryPrice {
			return false
		}
	}
	return true
}
