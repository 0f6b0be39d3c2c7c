package ports

import (
	"context"

	"trademaestro/internal/domain"
)

// MarketDataProvider supplies historical price bars for analysis.
// Implementations must return bars in ascending time order.
type MarketDataProvider interface {
	// GetHistoricalBars retrieves up to count bars for the given symbol and
	// timeframe (e.g. "M1", "H4"). Returns ErrMarketDataUnavailable when the
	// provider cannot serve the symbol at all, and may return fewer bars
	// than requested when history is short.
	GetHistoricalBars(ctx context.Context, symbol, timeframe string, count int) (domain.Series, error)
}
