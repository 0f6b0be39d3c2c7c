package analytics

import (
	"math"

	"trademaestro/internal/domain"
)

// Summary aggregates the realized performance of a set of closed trades.
type Summary struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // Fraction of trades with positive profit
	TotalProfit   float64
	GrossProfit   float64
	GrossLoss     float64 // Absolute value
	ProfitFactor  float64 // GrossProfit / GrossLoss; Inf with no losses
	AverageWin    float64
	AverageLoss   float64 // Absolute value
	LargestWin    float64
	LargestLoss   float64
	Expectancy    float64 // Mean profit per trade
	MaxDrawdown   float64 // Largest equity drop from a running peak
}

// Summarize computes the performance summary over trades in close order.
func Summarize(trades []*domain.TradeRecord) Summary {
	var s Summary
	s.TotalTrades = len(trades)
	if s.TotalTrades == 0 {
		return s
	}

	equity, peak := 0.0, 0.0
	for _, t := range trades {
		s.TotalProfit += t.Profit
		if t.Profit > 0 {
			s.WinningTrades++
			s.GrossProfit += t.Profit
			if t.Profit > s.LargestWin {
				s.LargestWin = t.Profit
			}
		} else {
			s.LosingTrades++
			s.GrossLoss += -t.Profit
			if t.Profit < s.LargestLoss {
				s.LargestLoss = t.Profit
			}
		}

		equity += t.Profit
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	s.Expectancy = s.TotalProfit / float64(s.TotalTrades)
	if s.WinningTrades > 0 {
		s.AverageWin = s.GrossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = s.GrossLoss / float64(s.LosingTrades)
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	} else if s.GrossProfit > 0 {
		s.ProfitFactor = math.Inf(1)
	}
	return s
}

// BySymbol groups trades by symbol and summarizes each group.
func BySymbol(trades []*domain.TradeRecord) map[string]Summary {
	groups := make(map[string][]*domain.TradeRecord)
	for _, t := range trades {
		groups[t.Symbol] = append(groups[t.Symbol], t)
	}
	out := make(map[string]Summary, len(groups))
	for symbol, group := range groups {
		out[symbol] = Summarize(group)
	}
	return out
}
