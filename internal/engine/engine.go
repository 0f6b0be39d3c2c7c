package engine

import (
	"context"
	"errors"
	"fmt"

	"trademaestro/internal/domain"
	"trademaestro/internal/orders"
	"trademaestro/internal/ports"
	"trademaestro/internal/risk"
	"trademaestro/internal/strategy"
)

// Engine runs one strategy across the configured symbols: it fetches market
// data, asks the strategy for a signal, routes actionable signals through
// the risk gatekeeper and hands approved orders to the order manager.
type Engine struct {
	strategy   strategy.Strategy
	data       ports.MarketDataProvider
	gatekeeper *risk.Gatekeeper
	manager    *orders.Manager
	logger     ports.Logger
	symbols    []string
}

// New creates a trading engine for one strategy instance.
func New(strat strategy.Strategy, data ports.MarketDataProvider, gatekeeper *risk.Gatekeeper, manager *orders.Manager, logger ports.Logger, symbols []string) (*Engine, error) {
	if strat == nil {
		return nil, fmt.Errorf("strategy is required for engine")
	}
	if data == nil {
		return nil, fmt.Errorf("market data provider is required for engine")
	}
	if gatekeeper == nil {
		return nil, fmt.Errorf("risk gatekeeper is required for engine")
	}
	if manager == nil {
		return nil, fmt.Errorf("order manager is required for engine")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for engine")
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", ports.ErrConfigurationError)
	}
	return &Engine{
		strategy:   strat,
		data:       data,
		gatekeeper: gatekeeper,
		manager:    manager,
		logger:     logger,
		symbols:    symbols,
	}, nil
}

// Manager exposes the order manager for shutdown close-out and reporting.
func (e *Engine) Manager() *orders.Manager {
	return e.manager
}

// RunCycle processes every symbol once, sequentially, then refreshes the
// floating state of open positions. A failure on one symbol never aborts
// the cycle for the rest.
func (e *Engine) RunCycle(ctx context.Context) {
	for _, symbol := range e.symbols {
		if ctx.Err() != nil {
			return
		}
		e.processSymbol(ctx, symbol)
	}
	e.manager.RefreshPrices(ctx)
}

func (e *Engine) processSymbol(ctx context.Context, symbol string) {
	series, err := e.data.GetHistoricalBars(ctx, symbol, e.strategy.Timeframe(), e.strategy.RequiredDataPoints())
	if err != nil {
		e.logger.Warn(ctx, "Market data fetch failed", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return
	}
	if len(series) < e.strategy.RequiredDataPoints() {
		e.logger.Debug(ctx, "Not enough bars for analysis", map[string]interface{}{
			"symbol":   symbol,
			"bars":     len(series),
			"required": e.strategy.RequiredDataPoints(),
		})
		return
	}

	result := e.analyze(ctx, symbol, series)
	if result == nil {
		return
	}

	switch {
	case result.Signal.IsActionable():
		e.openFromSignal(ctx, symbol, result)
	case result.Signal.IsClose():
		closed, closeErr := e.manager.CloseMatching(ctx, symbol, result.Signal.Side(), result.Reason)
		if closeErr != nil {
			e.logger.Error(ctx, closeErr, "Failed to close positions on signal", map[string]interface{}{"symbol": symbol})
		}
		if closed > 0 {
			e.logger.Info(ctx, "Positions closed on signal", map[string]interface{}{"symbol": symbol, "count": closed})
		}
	default:
		e.logger.Debug(ctx, "Holding", map[string]interface{}{"symbol": symbol, "reason": result.Reason})
	}
}

// analyze invokes the strategy with a panic guard: a panicking strategy
// yields a HOLD for this symbol instead of killing the trading loop.
func (e *Engine) analyze(ctx context.Context, symbol string, series domain.Series) (result *domain.StrategyResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, fmt.Errorf("strategy panic: %v", r), "Strategy analysis panicked", map[string]interface{}{"symbol": symbol})
			result = domain.Hold(fmt.Sprintf("Analysis failed: %v", r))
		}
	}()

	result, err := e.strategy.AnalyzeMarket(ctx, symbol, series)
	if err != nil {
		e.logger.Error(ctx, err, "Market analysis failed", map[string]interface{}{"symbol": symbol})
		return domain.Hold(fmt.Sprintf("Analysis failed: %v", err))
	}
	return result
}

func (e *Engine) openFromSignal(ctx context.Context, symbol string, result *domain.StrategyResult) {
	lot, err := e.gatekeeper.Approve(ctx, symbol, result, e.manager.OpenCount(), e.manager.HasOpenPosition(symbol))
	if err != nil {
		if errors.Is(err, ports.ErrRiskRejected) {
			e.logger.Debug(ctx, "Signal rejected by risk gatekeeper", map[string]interface{}{
				"symbol": symbol,
				"signal": result.Signal,
				"reason": err.Error(),
			})
		} else {
			e.logger.Error(ctx, err, "Risk approval failed", map[string]interface{}{"symbol": symbol})
		}
		return
	}

	pos, err := e.manager.Open(ctx, symbol, result.Signal.Side(), lot, result.StopLoss, result.TakeProfit, result.Reason)
	if err != nil {
		e.logger.Error(ctx, err, "Failed to open position", map[string]interface{}{"symbol": symbol})
		return
	}
	e.logger.Info(ctx, "Trade executed", map[string]interface{}{
		"ticket":     pos.Ticket,
		"symbol":     symbol,
		"side":       pos.Side,
		"volume":     pos.Volume,
		"confidence": result.Confidence,
	})
}
