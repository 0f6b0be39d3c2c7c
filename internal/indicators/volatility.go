package indicators

import (
	"math"

	"trademaestro/internal/domain"
)

// BollingerBands computes the upper, middle and lower bands using a simple
// moving average and stdDev standard deviations of the same window.
func BollingerBands(values []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	middle = SMA(values, period)
	upper = nanSlice(len(values))
	lower = nanSlice(len(values))
	std := rollingStd(values, period)
	for i := range values {
		if !math.IsNaN(middle[i]) && !math.IsNaN(std[i]) {
			upper[i] = middle[i] + std[i]*stdDev
			lower[i] = middle[i] - std[i]*stdDev
		}
	}
	return upper, middle, lower
}

// ATR computes the Average True Range over the given period using Wilder's
// smoothing. The first value appears at index period-1.
func ATR(series domain.Series, period int) []float64 {
	out := nanSlice(len(series))
	if period <= 0 || len(series) < period {
		return out
	}

	trueRanges := make([]float64, len(series))
	trueRanges[0] = series[0].High - series[0].Low
	for i := 1; i < len(series); i++ {
		high := series[i].High
		low := series[i].Low
		prevClose := series[i-1].Close

		// True Range is the greatest of:
		// 1. Current High - Current Low
		// 2. |Current High - Previous Close|
		// 3. |Current Low - Previous Close|
		tr1 := high - low
		tr2 := math.Abs(high - prevClose)
		tr3 := math.Abs(low - prevClose)
		trueRanges[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)
	out[period-1] = atr

	for i := period; i < len(series); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// rollingStd computes the rolling sample standard deviation over period.
func rollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)
		variance := 0.0
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(period-1))
	}
	return out
}
