package indicators

// SupportResistance identifies historical support and resistance levels as
// local extrema of the lows/highs over a centered window. Levels are
// returned in chronological order.
func SupportResistance(highs, lows []float64, window int) (supports, resistances []float64) {
	half := window / 2
	if half < 1 || len(highs) != len(lows) {
		return nil, nil
	}
	for i := half; i < len(highs)-half; i++ {
		if isWindowMax(highs, i, half) {
			resistances = append(resistances, highs[i])
		}
		if isWindowMin(lows, i, half) {
			supports = append(supports, lows[i])
		}
	}
	return supports, resistances
}

// SwingHighs finds swing high points: bars whose high is not exceeded by any
// of the window bars on either side.
func SwingHighs(highs []float64, window int) []float64 {
	var out []float64
	for i := window; i < len(highs)-window; i++ {
		if isWindowMax(highs, i, window) {
			out = append(out, highs[i])
		}
	}
	return out
}

// SwingLows finds swing low points: bars whose low is not undercut by any of
// the window bars on either side.
func SwingLows(lows []float64, window int) []float64 {
	var out []float64
	for i := window; i < len(lows)-window; i++ {
		if isWindowMin(lows, i, window) {
			out = append(out, lows[i])
		}
	}
	return out
}

func isWindowMax(values []float64, i, half int) bool {
	for j := 1; j <= half; j++ {
		if values[i] < values[i-j] || values[i] < values[i+j] {
			return false
		}
	}
	return true
}

func isWindowMin(values []float64, i, half int) bool {
	for j := 1; j <= half; j++ {
		if values[i] > values[i-j] || values[i] > values[i+j] {
			return false
		}
	}
	return true
}

// lastN returns up to n trailing elements of values.
func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// LastLevels returns the n most recent levels, oldest first.
func LastLevels(levels []float64, n int) []float64 {
	return lastN(levels, n)
}
