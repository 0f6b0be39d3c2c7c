package domain

import "time"

// Bar represents a single OHLCV price bar.
type Bar struct {
	OpenTime time.Time // Start time of the interval
	Open     float64   // Opening price
	High     float64   // Highest price
	Low      float64   // Lowest price
	Close    float64   // Closing price
	Volume   float64   // Traded volume
}

// Series is an ordered, time-indexed sequence of bars for one
// symbol/timeframe. It is owned by the caller of a strategy cycle and
// treated as immutable once fetched.
type Series []Bar

// Closes returns the close prices, index-aligned with the series.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high prices, index-aligned with the series.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

// Lows returns the low prices, index-aligned with the series.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

// Volumes returns the volumes, index-aligned with the series.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// Last returns the most recent bar. The series must not be empty.
func (s Series) Last() Bar {
	return s[len(s)-1]
}
