package domain

// SignalType is the outcome of a strategy analysis for one symbol.
type SignalType string

const (
	SignalBuy       SignalType = "BUY"
	SignalSell      SignalType = "SELL"
	SignalHold      SignalType = "HOLD"
	SignalCloseBuy  SignalType = "CLOSE_BUY"
	SignalCloseSell SignalType = "CLOSE_SELL"
)

// IsActionable reports whether the signal should open a new position.
func (s SignalType) IsActionable() bool {
	return s == SignalBuy || s == SignalSell
}

// IsClose reports whether the signal should close an existing position.
func (s SignalType) IsClose() bool {
	return s == SignalCloseBuy || s == SignalCloseSell
}

// Side returns the position side a BUY/SELL signal opens, or the side a
// CLOSE_BUY/CLOSE_SELL signal targets.
func (s SignalType) Side() OrderSide {
	switch s {
	case SignalBuy, SignalCloseBuy:
		return Buy
	default:
		return Sell
	}
}

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the side that closes a position opened on this side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderStatus tracks an order through its lifecycle.
// PENDING transitions to exactly one of EXECUTED, FAILED or CANCELLED.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderExecuted  OrderStatus = "EXECUTED"
	OrderFailed    OrderStatus = "FAILED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// TrendDirection classifies a single moving-average relationship.
type TrendDirection string

const (
	TrendBullish TrendDirection = "BULLISH"
	TrendBearish TrendDirection = "BEARISH"
)

// TrendAlignment summarises how the primary, secondary and short trends agree.
type TrendAlignment string

const (
	AlignmentStrongBullish TrendAlignment = "STRONG_BULLISH"
	AlignmentStrongBearish TrendAlignment = "STRONG_BEARISH"
	AlignmentWeakBullish   TrendAlignment = "WEAK_BULLISH"
	AlignmentWeakBearish   TrendAlignment = "WEAK_BEARISH"
	AlignmentMixed         TrendAlignment = "MIXED"
)

// Bullish reports whether the alignment leans to the buy side.
func (a TrendAlignment) Bullish() bool {
	return a == AlignmentStrongBullish || a == AlignmentWeakBullish
}

// Bearish reports whether the alignment leans to the sell side.
func (a TrendAlignment) Bearish() bool {
	return a == AlignmentStrongBearish || a == AlignmentWeakBearish
}

// MomentumState classifies the MACD histogram change between two bars.
type MomentumState string

const (
	MomentumAcceleratingUp   MomentumState = "ACCELERATING_UP"
	MomentumAcceleratingDown MomentumState = "ACCELERATING_DOWN"
	MomentumTurningBullish   MomentumState = "TURNING_BULLISH"
	MomentumTurningBearish   MomentumState = "TURNING_BEARISH"
	MomentumNeutral          MomentumState = "NEUTRAL"
)

// Divergence classifies price/RSI divergence.
type Divergence string

const (
	DivergenceBullish Divergence = "BULLISH"
	DivergenceBearish Divergence = "BEARISH"
	DivergenceNone    Divergence = "NONE"
)
