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

// ScalpingParams holds the tunable constants for the scalping strategy.
type ScalpingParams struct {
	EMAFastPeriod int
	EMASlowPeriod int
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64

	BBPeriod int
	BBStdDev float64

	ATRPeriod int
	SRWindow  int

	MaxSpreadPips       float64
	MinATR              float64 // Volatility floor for suitability
	MaxATR              float64 // Volatility ceiling for suitability
	StopLossPips        float64
	TakeProfitPips      float64
	ConfidenceThreshold float64
	MinRewardRisk       float64
}

func defaultScalpingParams() ScalpingParams {
	return ScalpingParams{
		EMAFastPeriod:       5,
		EMASlowPeriod:       13,
		RSIPeriod:           14,
		RSIOversold:         30,
		RSIOverbought:       70,
		BBPeriod:            20,
		BBStdDev:            2.0,
		ATRPeriod:           14,
		SRWindow:            10,
		MaxSpreadPips:       3.0,
		MinATR:              0.0005,
		MaxATR:              0.0050,
		StopLossPips:        15,
		TakeProfitPips:      25,
		ConfidenceThreshold: 0.65,
		MinRewardRisk:       1.2,
	}
}

func (p *ScalpingParams) applyOverrides(overrides map[string]float64) {
	applyOverrideInt(overrides, "ema_fast_period", &p.EMAFastPeriod)
	applyOverrideInt(overrides, "ema_slow_period", &p.EMASlowPeriod)
	applyOverrideInt(overrides, "rsi_period", &p.RSIPeriod)
	applyOverride(overrides, "rsi_oversold", &p.RSIOversold)
	applyOverride(overrides, "rsi_overbought", &p.RSIOverbought)
	applyOverride(overrides, "max_spread_pips", &p.MaxSpreadPips)
	applyOverride(overrides, "stop_loss_pips", &p.StopLossPips)
	applyOverride(overrides, "take_profit_pips", &p.TakeProfitPips)
	applyOverride(overrides, "confidence_threshold", &p.ConfidenceThreshold)
	applyOverride(overrides, "min_reward_risk", &p.MinRewardRisk)
}

// Scalping is a high-frequency strategy focusing on small price movements
// with tight stops, active only in liquid sessions.
type Scalping struct {
	params  ScalpingParams
	account ports.AccountGateway
	logger  ports.Logger
	now     func() time.Time
}

// NewScalping creates a scalping strategy instance.
func NewScalping(deps Deps) (Strategy, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	params := defaultScalpingParams()
	params.applyOverrides(deps.Overrides["scalping"])
	if params.EMAFastPeriod >= params.EMASlowPeriod {
		return nil, fmt.Errorf("%w: scalping fast EMA period must be less than slow EMA period", ports.ErrConfigurationError)
	}
	return &Scalping{
		params:  params,
		account: deps.Account,
		logger:  deps.Logger,
		now:     deps.clock(),
	}, nil
}

// Name returns the registry name of the strategy.
func (s *Scalping) Name() string { return "scalping" }

// Timeframe returns the bar timeframe the strategy analyses.
func (s *Scalping) Timeframe() string { return "M1" }

// RequiredDataPoints returns the minimum number of bars needed for the
// strategy calculations.
func (s *Scalping) RequiredDataPoints() int {
	// Bollinger window plus enough tail for the centered S/R scan.
	return s.params.BBPeriod + 2*s.params.SRWindow
}

// scalpFeatures bundles the per-cycle indicator values the signal and level
// logic consume.
type scalpFeatures struct {
	emaFast, emaSlow []float64
	rsi              []float64
	bbPosition       float64 // Price position within the bands, 0..1
	atr              float64
	supports         []float64
	resistances      []float64
	momentum         float64 // Mean 3-bar rate of change over the last 3 bars
	volumeRatio      float64 // Last volume vs its 10-bar average
}

// AnalyzeMarket analyses the series for scalping opportunities.
func (s *Scalping) AnalyzeMarket(ctx context.Context, symbol string, series domain.Series) (*domain.StrategyResult, error) {
	info, err := s.account.GetSymbolInfo(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("scalping: symbol info for %s: %w", symbol, err)
	}

	suitable, why, err := s.suitable(ctx, symbol, series, info)
	if err != nil {
		return nil, err
	}
	if !suitable {
		s.logger.Debug(ctx, "Market not suitable for scalping", map[string]interface{}{"symbol": symbol, "reason": why})
		return domain.Hold("Market conditions not suitable for scalping"), nil
	}

	features := s.computeFeatures(series)
	result := s.generateSignal(series, features)
	if result.Signal.IsActionable() {
		s.applyTradeLevels(result, features, info.Point)
	}
	return result, nil
}

// suitable runs the pre-filter: history depth, spread, volatility band,
// trading session and news window.
func (s *Scalping) suitable(ctx context.Context, symbol string, series domain.Series, info *ports.SymbolInfo) (bool, string, error) {
	if len(series) < s.RequiredDataPoints() {
		return false, "insufficient bars", nil
	}

	tick, err := s.account.GetCurrentTick(ctx, symbol)
	if err != nil {
		return false, "", fmt.Errorf("scalping: current tick for %s: %w", symbol, err)
	}
	point := info.Point
	if point == 0 {
		point = 0.0001
	}
	if spreadPips := (tick.Ask - tick.Bid) / point; spreadPips > s.params.MaxSpreadPips {
		return false, fmt.Sprintf("spread %.1f pips too wide", spreadPips), nil
	}

	atr := indicators.ATR(series, s.params.ATRPeriod)
	currentATR := atr[len(atr)-1]
	if math.IsNaN(currentATR) || currentATR < s.params.MinATR || currentATR > s.params.MaxATR {
		return false, fmt.Sprintf("ATR %.5f outside band", currentATR), nil
	}

	if !s.inPreferredSession() {
		return false, "outside preferred sessions", nil
	}
	if s.inNewsWindow() {
		return false, "within news avoidance window", nil
	}
	return true, "", nil
}

// Preferred sessions in UTC hours: London 7-16, New York 13-22.
func (s *Scalping) inPreferredSession() bool {
	hour := s.now().UTC().Hour()
	return (hour >= 7 && hour < 16) || (hour >= 13 && hour < 22)
}

// High-impact news slots (UTC); trading pauses within 30 minutes of each.
var newsSlots = []struct{ hour, minute int }{
	{8, 30},  // European releases
	{12, 30}, // US releases
	{14, 30}, // FOMC, NFP
}

func (s *Scalping) inNewsWindow() bool {
	now := s.now().UTC()
	for _, slot := range newsSlots {
		slotTime := time.Date(now.Year(), now.Month(), now.Day(), slot.hour, slot.minute, 0, 0, time.UTC)
		diff := now.Sub(slotTime)
		if diff < 0 {
			diff = -diff
		}
		if diff <= 30*time.Minute {
			return true
		}
	}
	return false
}

func (s *Scalping) computeFeatures(series domain.Series) scalpFeatures {
	closes := series.Closes()
	f := scalpFeatures{
		emaFast: indicators.EMA(closes, s.params.EMAFastPeriod),
		emaSlow: indicators.EMA(closes, s.params.EMASlowPeriod),
		rsi:     indicators.RSI(closes, s.params.RSIPeriod),
	}

	upper, _, lower := indicators.BollingerBands(closes, s.params.BBPeriod, s.params.BBStdDev)
	last := len(closes) - 1
	if width := upper[last] - lower[last]; !math.IsNaN(width) && width > 0 {
		f.bbPosition = (closes[last] - lower[last]) / width
	} else {
		f.bbPosition = 0.5
	}

	atr := indicators.ATR(series, s.params.ATRPeriod)
	f.atr = atr[last]

	supports, resistances := indicators.SupportResistance(series.Highs(), series.Lows(), s.params.SRWindow)
	f.supports = indicators.LastLevels(supports, 3)
	f.resistances = indicators.LastLevels(resistances, 3)

	// Mean of the last three 3-bar momentum readings.
	roc := indicators.ROC(closes, 3)
	sum, n := 0.0, 0
	for i := len(roc) - 3; i < len(roc); i++ {
		if i >= 0 && !math.IsNaN(roc[i]) {
			sum += roc[i]
			n++
		}
	}
	if n > 0 {
		f.momentum = sum / float64(n)
	}

	volumes := series.Volumes()
	volSMA := indicators.SMA(volumes, 10)
	if avg := volSMA[last]; !math.IsNaN(avg) && avg > 0 {
		f.volumeRatio = volumes[last] / avg
	}
	return f
}

func (s *Scalping) generateSignal(series domain.Series, f scalpFeatures) *domain.StrategyResult {
	currentPrice := series.Last().Close
	last := len(series) - 1
	var v vote

	// 1. EMA crossover / trend continuation
	fastCur, fastPrev := f.emaFast[last], f.emaFast[last-1]
	slowCur, slowPrev := f.emaSlow[last], f.emaSlow[last-1]
	if !math.IsNaN(fastPrev) && !math.IsNaN(slowPrev) {
		switch {
		case fastCur > slowCur && fastPrev <= slowPrev:
			v.addBuy(2, 0.8, "EMA bullish crossover")
		case fastCur < slowCur && fastPrev >= slowPrev:
			v.addSell(2, 0.8, "EMA bearish crossover")
		case fastCur > slowCur:
			v.addBuy(1, 0.4, "EMA uptrend")
		case fastCur < slowCur:
			v.addSell(1, 0.4, "EMA downtrend")
		}
	}

	// 2. RSI extremes
	if rsi := f.rsi[last]; !math.IsNaN(rsi) {
		if rsi < s.params.RSIOversold {
			v.addBuy(1, 0.6, fmt.Sprintf("RSI oversold (%.1f)", rsi))
		} else if rsi > s.params.RSIOverbought {
			v.addSell(1, 0.6, fmt.Sprintf("RSI overbought (%.1f)", rsi))
		}
	}

	// 3. Bollinger band proximity
	if f.bbPosition < 0.2 {
		v.addBuy(1, 0.5, "Price near BB lower band")
	} else if f.bbPosition > 0.8 {
		v.addSell(1, 0.5, "Price near BB upper band")
	}

	// 4. Support/resistance proximity (within 0.05%)
	for _, support := range f.supports {
		if math.Abs(currentPrice-support)/currentPrice < 0.0005 {
			v.addBuy(1, 0.7, "Price at support level")
		}
	}
	for _, resistance := range f.resistances {
		if math.Abs(currentPrice-resistance)/currentPrice < 0.0005 {
			v.addSell(1, 0.7, "Price at resistance level")
		}
	}

	// 5. Momentum sign
	if f.momentum > 0.0001 {
		v.addBuy(1, 0.3, "Positive momentum")
	} else if f.momentum < -0.0001 {
		v.addSell(1, 0.3, "Negative momentum")
	}

	// 6. Volume confirmation: boosts confidence when one side already leads
	if f.volumeRatio > 1.5 && v.buy != v.sell {
		v.addFactor(0.2, "High volume confirmation")
	}

	result := &domain.StrategyResult{
		Signal:     domain.SignalHold,
		Reason:     "No clear signal",
		EntryPrice: currentPrice,
		Metadata: map[string]any{
			"buy_signals":  v.buy,
			"sell_signals": v.sell,
			"rsi":          f.rsi[last],
			"atr":          f.atr,
			"bb_position":  f.bbPosition,
		},
	}

	switch {
	case v.buy > v.sell && v.buy >= 2:
		result.Signal = domain.SignalBuy
	case v.sell > v.buy && v.sell >= 2:
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

// applyTradeLevels derives stop and target from ATR projections and fixed
// pip distances, clipping the target to an intervening S/R level, then
// enforces the minimum reward/risk ratio.
func (s *Scalping) applyTradeLevels(result *domain.StrategyResult, f scalpFeatures, point float64) {
	if point == 0 {
		point = 0.0001
	}
	price := result.EntryPrice
	atr := f.atr
	if math.IsNaN(atr) || atr == 0 {
		atr = 0.0005
	}

	if result.Signal == domain.SignalBuy {
		// Tightest stop of the ATR projection and the fixed pip distance.
		result.StopLoss = math.Max(price-atr*1.5, price-s.params.StopLossPips*point)
		result.TakeProfit = math.Min(price+atr*2.0, price+s.params.TakeProfitPips*point)
		for _, resistance := range f.resistances {
			if price < resistance && resistance < result.TakeProfit {
				result.TakeProfit = resistance - 2*point // Spread buffer
				break
			}
		}
	} else {
		result.StopLoss = math.Min(price+atr*1.5, price+s.params.StopLossPips*point)
		result.TakeProfit = math.Max(price-atr*2.0, price-s.params.TakeProfitPips*point)
		for _, support := range f.supports {
			if result.TakeProfit < support && support < price {
				result.TakeProfit = support + 2*point
				break
			}
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
