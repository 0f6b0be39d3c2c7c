package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Market Data Errors
	ErrMarketDataUnavailable = errors.New("market data is unavailable")
	ErrInsufficientData      = errors.New("not enough price history for analysis")

	// Gateway Errors
	ErrConnectionFailed     = errors.New("failed to connect to the gateway")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("gateway authentication failed")
	ErrTradeNotAllowed      = errors.New("trading is not allowed for symbol")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderNotFound        = errors.New("order not found on the gateway")
	ErrPositionNotFound     = errors.New("position not found")
	ErrOrderPlacementFailed = errors.New("failed to place order")
	ErrOrderCancelFailed    = errors.New("failed to cancel order")

	// Risk Errors
	ErrRiskRejected = errors.New("trade rejected by risk gatekeeper")

	// Storage Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
