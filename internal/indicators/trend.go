package indicators

import (
	"math"

	"trademaestro/internal/domain"
)

// TrendStrength computes a momentum-to-volatility ratio: the period rate of
// change divided by the rolling standard deviation of closes. Positions
// without enough history yield 0 rather than NaN.
func TrendStrength(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	momentum := ROC(values, period)
	volatility := rollingStd(values, period)
	for i := range values {
		if !math.IsNaN(momentum[i]) && !math.IsNaN(volatility[i]) && volatility[i] != 0 {
			out[i] = momentum[i] / volatility[i]
		}
	}
	return out
}

// RSIDivergence inspects the last lookback bars for divergence between price
// extremes and the RSI values at those extremes: price making a higher high
// while RSI makes a lower high is BEARISH; price making a lower low while
// RSI makes a higher low is BULLISH.
func RSIDivergence(series domain.Series, rsi []float64, lookback int) domain.Divergence {
	if len(series) < lookback || len(rsi) != len(series) {
		return domain.DivergenceNone
	}
	start := len(series) - lookback

	const window = 2 // Bars on each side confirming a local extreme

	highs := series.Highs()
	lows := series.Lows()
	var highIdx, lowIdx []int
	for i := start + window; i < len(series)-window; i++ {
		if isWindowMax(highs, i, window) {
			highIdx = append(highIdx, i)
		}
		if isWindowMin(lows, i, window) {
			lowIdx = append(lowIdx, i)
		}
	}

	if n := len(highIdx); n >= 2 {
		a, b := highIdx[n-2], highIdx[n-1]
		if series[b].High > series[a].High &&
			!math.IsNaN(rsi[a]) && !math.IsNaN(rsi[b]) && rsi[b] < rsi[a] {
			return domain.DivergenceBearish
		}
	}
	if n := len(lowIdx); n >= 2 {
		a, b := lowIdx[n-2], lowIdx[n-1]
		if series[b].Low < series[a].Low &&
			!math.IsNaN(rsi[a]) && !math.IsNaN(rsi[b]) && rsi[b] > rsi[a] {
			return domain.DivergenceBullish
		}
	}
	return domain.DivergenceNone
}
