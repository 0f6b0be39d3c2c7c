package ports

import (
	"context"
	"time"

	"trademaestro/internal/domain"
)

// AccountInfo is a snapshot of the trading account state.
type AccountInfo struct {
	Balance  float64
	Equity   float64
	Margin   float64
	Currency string
}

// SymbolInfo carries the per-symbol trading parameters used for sizing and
// pre-order checks.
type SymbolInfo struct {
	Point        float64 // Smallest quoted price increment (e.g. 0.0001)
	ContractSize float64 // Units per lot (e.g. 100000)
	VolumeMin    float64 // Minimum lot size
	VolumeMax    float64 // Maximum lot size
	Spread       float64 // Current spread in price units
	TradeAllowed bool
}

// Tick is the current top-of-book quote for a symbol.
type Tick struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// AccountGateway exposes account and symbol state from the external
// broker/terminal. All calls are synchronous and may block on the wire.
type AccountGateway interface {
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)
	GetSymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)
	GetCurrentTick(ctx context.Context, symbol string) (*Tick, error)
}

// OrderRequest is the gateway-agnostic order submission payload.
type OrderRequest struct {
	Symbol     string
	Side       domain.OrderSide
	Volume     float64
	Price      float64 // Requested fill price (current quote for market orders)
	StopLoss   float64 // 0 = none
	TakeProfit float64 // 0 = none
	Tag        string  // Client-side identifier / comment
}

// OrderResult is the gateway response for a submission, close or cancel.
type OrderResult struct {
	Success bool
	Ticket  int64   // Assigned by the gateway on success
	Price   float64 // Actual fill price, if known
	Error   string  // Gateway-supplied rejection detail
}

// OrderGateway submits and manages orders on the external broker/terminal.
type OrderGateway interface {
	// SubmitOrder places a market order and returns the assigned ticket.
	SubmitOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
	// ClosePosition closes an open position by ticket. volume 0 closes the
	// full position; a smaller volume closes partially.
	ClosePosition(ctx context.Context, ticket int64, volume float64) (*OrderResult, error)
	// CancelOrder cancels a pending order before it fills.
	CancelOrder(ctx context.Context, ticket int64) (*OrderResult, error)
	// ListPositions returns the gateway's view of currently open positions.
	ListPositions(ctx context.Context) ([]*domain.Position, error)
	// ListOrders returns tickets of orders still pending on the gateway.
	ListOrders(ctx context.Context) ([]int64, error)
	// ModifyPosition updates stop-loss/take-profit on an open position
	// without closing it. A zero level leaves the current value in place.
	ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) (*OrderResult, error)
}

// PerformanceSink receives completed trades. Calls are fire-and-forget from
// the core's perspective: errors are logged by the caller but never block
// the trading path.
type PerformanceSink interface {
	RecordTrade(ctx context.Context, trade *domain.TradeRecord) error
}
