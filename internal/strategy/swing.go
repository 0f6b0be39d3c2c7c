package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"trademaestro/internal/domain"
	"trademaestro/internal/indicators"
	"trademaestro/internal/ports"
)

// SwingParams holds the tunable constants for the swing strategy.
type SwingParams struct {
	MAShortPeriod  int // 20
	MALongPeriod   int // 50
	MASignalPeriod int // 200

	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	BBPeriod int
	BBStdDev float64

	ATRPeriod   int
	SwingWindow int
	SRWindow    int

	MinVolatility       float64 // Stddev floor of recent bar ranges
	ConfidenceThreshold float64
	MinRewardRisk       float64
}

func defaultSwingParams() SwingParams {
	return SwingParams{
		MAShortPeriod:       20,
		MALongPeriod:        50,
		MASignalPeriod:      200,
		RSIPeriod:           14,
		RSIOversold:         35,
		RSIOverbought:       65,
		MACDFast:            12,
		MACDSlow:            26,
		MACDSignal:          9,
		BBPeriod:            20,
		BBStdDev:            2.0,
		ATRPeriod:           14,
		SwingWindow:         10,
		SRWindow:            20,
		MinVolatility:       0.001,
		ConfidenceThreshold: 0.6,
		MinRewardRisk:       1.5,
	}
}

func (p *SwingParams) applyOverrides(overrides map[string]float64) {
	applyOverrideInt(overrides, "ma_short_period", &p.MAShortPeriod)
	applyOverrideInt(overrides, "ma_long_period", &p.MALongPeriod)
	applyOverrideInt(overrides, "ma_signal_period", &p.MASignalPeriod)
	applyOverrideInt(overrides, "rsi_period", &p.RSIPeriod)
	applyOverride(overrides, "rsi_oversold", &p.RSIOversold)
	applyOverride(overrides, "rsi_overbought", &p.RSIOverbought)
	applyOverride(overrides, "min_volatility", &p.MinVolatility)
	applyOverride(overrides, "confidence_threshold", &p.ConfidenceThreshold)
	applyOverride(overrides, "min_reward_risk", &p.MinRewardRisk)
}

// Swing is a medium-term strategy capturing larger moves around trend
// reversals and continuations, anchored on multi-timeframe trend structure.
type Swing struct {
	params  SwingParams
	account ports.AccountGateway
	logger  ports.Logger
	now     func() time.Time
}

// NewSwing creates a swing strategy instance.
func NewSwing(deps Deps) (Strategy, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	params := defaultSwingParams()
	params.applyOverrides(deps.Overrides["swing"])
	if params.MAShortPeriod >= params.MALongPeriod || params.MALongPeriod >= params.MASignalPeriod {
		return nil, fmt.Errorf("%w: swing MA periods must be strictly increasing", ports.ErrConfigurationError)
	}
	return &Swing{
		params:  params,
		account: deps.Account,
		logger:  deps.Logger,
		now:     deps.clock(),
	}, nil
}

// Name returns the registry name of the strategy.
func (s *Swing) Name() string { return "swing" }

// Timeframe returns the bar timeframe the strategy analyses.
func (s *Swing) Timeframe() string { return "H4" }

// RequiredDataPoints returns the minimum number of bars needed for the
// strategy calculations.
func (s *Swing) RequiredDataPoints() int { return s.params.MASignalPeriod }

type swingFeatures struct {
	maShort, maLong, maSignal []float64
	rsi                       []float64
	macd, macdSignal, macdHist []float64
	bbUpper, bbLower          []float64
	atr                       float64
	swingHighs, swingLows     []float64
	supports, resistances     []float64
}

// trendStructure captures the multi-timeframe trend classification.
type trendStructure struct {
	primary   domain.TrendDirection // Price vs 200-MA
	secondary domain.TrendDirection // 50-MA vs 200-MA
	short     domain.TrendDirection // 20-MA vs 50-MA
	alignment domain.TrendAlignment
	momentum  domain.MomentumState
	strength  float64 // Distance from 200-MA scaled to 0..1
}

// AnalyzeMarket analyses the series for swing trading opportunities.
func (s *Swing) AnalyzeMarket(ctx context.Context, symbol string, series domain.Series) (*domain.StrategyResult, error) {
	info, err := s.account.GetSymbolInfo(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("swing: symbol info for %s: %w", symbol, err)
	}

	features := s.computeFeatures(series)
	if why := s.unsuitable(series, features); why != "" {
		s.logger.Debug(ctx, "Market not suitable for swing trading", map[string]interface{}{"symbol": symbol, "reason": why})
		return domain.Hold("Market conditions not suitable for swing trading"), nil
	}

	trend := s.analyzeTrendStructure(series, features)
	result := s.generateSignal(series, features, trend)
	if result.Signal.IsActionable() {
		s.applyTradeLevels(result, features, info.Point)
	}
	return result, nil
}

// unsuitable runs the pre-filter and returns a non-empty reason when the
// market should be skipped.
func (s *Swing) unsuitable(series domain.Series, f swingFeatures) string {
	if len(series) < s.params.MASignalPeriod {
		return "insufficient bars"
	}

	// Recent bar ranges must show enough dispersion for swing moves.
	ranges := make([]float64, 0, 20)
	for _, b := range series[len(series)-20:] {
		ranges = append(ranges, b.High-b.Low)
	}
	if stddev(ranges) < s.params.MinVolatility {
		return "volatility too low"
	}

	// Avoid choppy sideways markets: both MA slopes near flat over 10 bars.
	last := len(series) - 1
	maShortSlope := slope(f.maShort, last, 9)
	maLongSlope := slope(f.maLong, last, 9)
	if math.Abs(maShortSlope) < 0.005 && math.Abs(maLongSlope) < 0.002 {
		return "sideways market"
	}

	if len(f.swingHighs)+len(f.swingLows) < 2 {
		return "no swing structure"
	}
	return ""
}

func (s *Swing) computeFeatures(series domain.Series) swingFeatures {
	closes := series.Closes()
	f := swingFeatures{
		maShort:  indicators.SMA(closes, s.params.MAShortPeriod),
		maLong:   indicators.SMA(closes, s.params.MALongPeriod),
		maSignal: indicators.SMA(closes, s.params.MASignalPeriod),
		rsi:      indicators.RSI(closes, s.params.RSIPeriod),
	}
	f.macd, f.macdSignal, f.macdHist = indicators.MACD(closes, s.params.MACDFast, s.params.MACDSlow, s.params.MACDSignal)
	f.bbUpper, _, f.bbLower = indicators.BollingerBands(closes, s.params.BBPeriod, s.params.BBStdDev)

	atr := indicators.ATR(series, s.params.ATRPeriod)
	f.atr = atr[len(atr)-1]

	f.swingHighs = indicators.SwingHighs(series.Highs(), s.params.SwingWindow)
	f.swingLows = indicators.SwingLows(series.Lows(), s.params.SwingWindow)

	supports, resistances := indicators.SupportResistance(series.Highs(), series.Lows(), s.params.SRWindow)
	f.supports = indicators.LastLevels(supports, 5)
	f.resistances = indicators.LastLevels(resistances, 5)
	return f
}

func (s *Swing) analyzeTrendStructure(series domain.Series, f swingFeatures) trendStructure {
	last := len(series) - 1
	price := series.Last().Close
	trend := trendStructure{momentum: domain.MomentumNeutral}

	trend.primary = classify(price, f.maSignal[last])
	trend.secondary = classify(f.maLong[last], f.maSignal[last])
	trend.short = classify(f.maShort[last], f.maLong[last])

	if ma := f.maSignal[last]; !math.IsNaN(ma) && ma != 0 {
		trend.strength = math.Min(1.0, math.Abs(price-ma)/ma*100)
	}

	bullish, bearish := 0, 0
	for _, t := range []domain.TrendDirection{trend.primary, trend.secondary, trend.short} {
		if t == domain.TrendBullish {
			bullish++
		} else {
			bearish++
		}
	}
	switch {
	case bullish == 3:
		trend.alignment = domain.AlignmentStrongBullish
	case bearish == 3:
		trend.alignment = domain.AlignmentStrongBearish
	case bullish > bearish:
		trend.alignment = domain.AlignmentWeakBullish
	case bearish > bullish:
		trend.alignment = domain.AlignmentWeakBearish
	default:
		trend.alignment = domain.AlignmentMixed
	}

	cur, prev := f.macdHist[last], f.macdHist[last-1]
	if !math.IsNaN(cur) && !math.IsNaN(prev) {
		switch {
		case cur > prev && prev > 0:
			trend.momentum = domain.MomentumAcceleratingUp
		case cur < prev && prev < 0:
			trend.momentum = domain.MomentumAcceleratingDown
		case cur > 0 && prev < 0:
			trend.momentum = domain.MomentumTurningBullish
		case cur < 0 && prev > 0:
			trend.momentum = domain.MomentumTurningBearish
		}
	}
	return trend
}

func (s *Swing) generateSignal(series domain.Series, f swingFeatures, trend trendStructure) *domain.StrategyResult {
	last := len(series) - 1
	currentPrice := series.Last().Close
	var v vote

	// 1. Trend alignment
	switch trend.alignment {
	case domain.AlignmentStrongBullish:
		v.addBuy(2, 0.8, fmt.Sprintf("Bullish trend alignment (%s)", trend.alignment))
	case domain.AlignmentWeakBullish:
		v.addBuy(1, 0.5, fmt.Sprintf("Bullish trend alignment (%s)", trend.alignment))
	case domain.AlignmentStrongBearish:
		v.addSell(2, 0.8, fmt.Sprintf("Bearish trend alignment (%s)", trend.alignment))
	case domain.AlignmentWeakBearish:
		v.addSell(1, 0.5, fmt.Sprintf("Bearish trend alignment (%s)", trend.alignment))
	}

	// 2. Golden/death cross of the 20/50 MAs
	shortCur, shortPrev := f.maShort[last], f.maShort[last-1]
	longCur, longPrev := f.maLong[last], f.maLong[last-1]
	if !math.IsNaN(shortPrev) && !math.IsNaN(longPrev) {
		if shortCur > longCur && shortPrev <= longPrev {
			v.addBuy(2, 0.9, "Golden cross (MA bullish crossover)")
		} else if shortCur < longCur && shortPrev >= longPrev {
			v.addSell(2, 0.9, "Death cross (MA bearish crossover)")
		}
	}

	// 3. MACD line crossing its signal line
	macdCur, macdPrev := f.macd[last], f.macd[last-1]
	sigCur, sigPrev := f.macdSignal[last], f.macdSignal[last-1]
	if !math.IsNaN(macdPrev) && !math.IsNaN(sigPrev) {
		if macdCur > sigCur && macdPrev <= sigPrev {
			v.addBuy(1, 0.7, "MACD bullish crossover")
		} else if macdCur < sigCur && macdPrev >= sigPrev {
			v.addSell(1, 0.7, "MACD bearish crossover")
		}
	}

	// 4. RSI extremes conditioned on the matching trend, plus divergence
	if rsi := f.rsi[last]; !math.IsNaN(rsi) {
		if rsi < s.params.RSIOversold && trend.alignment.Bullish() {
			v.addBuy(1, 0.6, fmt.Sprintf("RSI oversold in uptrend (%.1f)", rsi))
		} else if rsi > s.params.RSIOverbought && trend.alignment.Bearish() {
			v.addSell(1, 0.6, fmt.Sprintf("RSI overbought in downtrend (%.1f)", rsi))
		}
	}
	switch indicators.RSIDivergence(series, f.rsi, 20) {
	case domain.DivergenceBullish:
		v.addBuy(1, 0.8, "Bullish RSI divergence")
	case domain.DivergenceBearish:
		v.addSell(1, 0.8, "Bearish RSI divergence")
	}

	// 5. S/R bounce within 0.5%, suppressed when alignment strongly opposes
	for _, support := range f.supports {
		if math.Abs(currentPrice-support)/currentPrice < 0.005 &&
			trend.alignment != domain.AlignmentStrongBearish {
			v.addBuy(1, 0.6, "Price bouncing off support")
		}
	}
	for _, resistance := range f.resistances {
		if math.Abs(currentPrice-resistance)/currentPrice < 0.005 &&
			trend.alignment != domain.AlignmentStrongBullish {
			v.addSell(1, 0.6, "Price rejection at resistance")
		}
	}

	// 6. Momentum confirmation boosts confidence only
	switch trend.momentum {
	case domain.MomentumAcceleratingUp, domain.MomentumTurningBullish:
		if v.buy > 0 {
			v.addFactor(0.4, fmt.Sprintf("Momentum confirmation (%s)", trend.momentum))
		}
	case domain.MomentumAcceleratingDown, domain.MomentumTurningBearish:
		if v.sell > 0 {
			v.addFactor(0.4, fmt.Sprintf("Momentum confirmation (%s)", trend.momentum))
		}
	}

	result := &domain.StrategyResult{
		Signal:     domain.SignalHold,
		Reason:     "No clear swing signal",
		EntryPrice: currentPrice,
		Metadata: map[string]any{
			"buy_signals":    v.buy,
			"sell_signals":   v.sell,
			"alignment":      trend.alignment,
			"momentum":       trend.momentum,
			"trend_strength": trend.strength,
		},
	}
	if last < len(f.bbUpper) {
		if upper, lower := f.bbUpper[last], f.bbLower[last]; !math.IsNaN(upper) && upper > lower {
			result.Metadata["bb_position"] = (currentPrice - lower) / (upper - lower)
		}
	}

	switch {
	case v.buy >= 2 && v.buy > v.sell:
		result.Signal = domain.SignalBuy
	case v.sell >= 2 && v.sell > v.buy:
		result.Signal = domain.SignalSell
	default:
		return result
	}
	result.Confidence = v.confidence()
	result.Reason = joinReasons(v.reasons)

	if result.Confidence < s.params.ConfidenceThreshold {
		result.Reason = fmt.Sprintf("Low confidence (%.2f)", result.Confidence)
		result.Signal = domain.SignalHold
	}
	return result
}

// applyTradeLevels anchors stop and target on swing points and S/R levels
// with ATR fallbacks, then enforces the minimum reward/risk ratio.
func (s *Swing) applyTradeLevels(result *domain.StrategyResult, f swingFeatures, point float64) {
	if point == 0 {
		point = 0.0001
	}
	price := result.EntryPrice
	atr := f.atr
	if math.IsNaN(atr) || atr == 0 {
		atr = 0.002
	}

	if result.Signal == domain.SignalBuy {
		swingStop := price - atr*2.5
		if lows := indicators.LastLevels(below(f.swingLows, price), 3); len(lows) > 0 {
			swingStop = minOf(lows)
		}
		supportStop := price - atr*2.0
		if sups := below(f.supports, price); len(sups) > 0 {
			supportStop = maxOf(sups)
		}
		// The less aggressive of the two anchors, with a small buffer.
		result.StopLoss = math.Max(swingStop, supportStop) - 5*point

		result.TakeProfit = price + atr*3.0
		if res := above(f.resistances, price); len(res) > 0 {
			result.TakeProfit = minOf(res) - 5*point
		}
	} else {
		swingStop := price + atr*2.5
		if highs := indicators.LastLevels(above(f.swingHighs, price), 3); len(highs) > 0 {
			swingStop = maxOf(highs)
		}
		resistanceStop := price + atr*2.0
		if res := above(f.resistances, price); len(res) > 0 {
			resistanceStop = minOf(res)
		}
		result.StopLoss = math.Min(swingStop, resistanceStop) + 5*point

		result.TakeProfit = price - atr*3.0
		if sups := below(f.supports, price); len(sups) > 0 {
			result.TakeProfit = maxOf(sups) + 5*point
		}
	}

	ratio := result.RewardRisk()
	result.Metadata["risk_reward_ratio"] = ratio
	if ratio < s.params.MinRewardRisk {
		result.Signal = domain.SignalHold
		result.Confidence = 0
		result.Reason = fmt.Sprintf("Poor risk-reward ratio (%.2f)", ratio)
	}
}

func classify(a, b float64) domain.TrendDirection {
	if !math.IsNaN(b) && a > b {
		return domain.TrendBullish
	}
	return domain.TrendBearish
}

// slope returns the fractional change of values[last] vs values[last-back].
func slope(values []float64, last, back int) float64 {
	if last-back < 0 {
		return 0
	}
	prev := values[last-back]
	if math.IsNaN(prev) || math.IsNaN(values[last]) || prev == 0 {
		return 0
	}
	return (values[last] - prev) / prev
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

func below(levels []float64, price float64) []float64 {
	var out []float64
	for _, l := range levels {
		if l < price {
			out = append(out, l)
		}
	}
	return out
}

func above(levels []float64, price float64) []float64 {
	var out []float64
	for _, l := range levels {
		if l > price {
			out = append(out, l)
		}
	}
	return out
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
