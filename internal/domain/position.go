package domain

import "time"

// Position represents an open trade tracked by the order manager.
// At most one open position exists per (symbol, strategy instance).
type Position struct {
	Ticket     int64     // Unique identifier assigned by the order gateway
	Symbol     string    // Trading symbol (e.g. "EURUSD")
	Side       OrderSide // Direction the position was opened in
	Volume     float64   // Lot size
	EntryPrice float64   // Price at which the position was entered
	StopLoss   float64   // Stop-loss level (0 if none)
	TakeProfit float64   // Take-profit level (0 if none)
	OpenTime   time.Time // Timestamp when the position was opened
	Comment    string    // Originating signal reason / order tag

	// Refreshed from quotes; display reads tolerate brief staleness.
	CurrentPrice float64
	Profit       float64

	Status PositionStatus
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}
