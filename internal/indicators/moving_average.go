// Package indicators provides pure, stateless technical-analysis transforms
// over price series. Every function returns series index-aligned with its
// input; positions without enough history hold math.NaN() rather than
// producing an error.
package indicators

import "math"

// SMA computes the simple moving average over the given period.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average over the given period,
// seeded with the simple average of the first period values.
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema
	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// emaFrom applies EMA smoothing to a series that may itself carry leading
// NaNs (e.g. a MACD line), seeding from the first stretch of valid values.
func emaFrom(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	start := firstValid(values)
	if start < 0 || len(values)-start < period {
		return out
	}
	sum := 0.0
	for i := start; i < start+period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[start+period-1] = ema
	multiplier := 2.0 / float64(period+1)
	for i := start + period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstValid(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}
