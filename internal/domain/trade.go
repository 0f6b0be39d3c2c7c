package domain

import "time"

// TradeRecord is the immutable snapshot written once a position closes,
// handed to the performance sink.
type TradeRecord struct {
	Ticket     int64
	Symbol     string
	Side       OrderSide
	Volume     float64
	EntryPrice float64
	ExitPrice  float64
	Profit     float64 // Realized, direction-signed, in account currency
	OpenTime   time.Time
	CloseTime  time.Time
	Reason     string // Why the position was closed
}

// RiskLimits is the immutable configuration consumed by the risk gatekeeper.
type RiskLimits struct {
	MaxPositions    int     // Maximum simultaneously open positions
	MaxRiskPerTrade float64 // Fraction of balance risked per trade (e.g. 0.02)
	MinConfidence   float64 // Gatekeeper-level confidence floor
}
