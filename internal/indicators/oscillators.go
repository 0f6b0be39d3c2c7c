package indicators

import "math"

// RSI computes the Relative Strength Index using Wilder's smoothing method.
// The first value appears at index period.
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50 // Neutral if no change
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACD computes the Moving Average Convergence Divergence line, its signal
// line and the histogram (macd - signal).
func MACD(values []float64, fast, slow, signal int) (macd, signalLine, histogram []float64) {
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	macd = nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}

	signalLine = emaFrom(macd, signal)

	histogram = nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signalLine[i]) {
			histogram[i] = macd[i] - signalLine[i]
		}
	}
	return macd, signalLine, histogram
}

// ROC computes the rate of change (fractional) over period bars:
// (v[i] - v[i-period]) / v[i-period].
func ROC(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	for i := period; i < len(values); i++ {
		prev := values[i-period]
		if prev != 0 {
			out[i] = (values[i] - prev) / prev
		}
	}
	return out
}
