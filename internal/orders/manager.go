package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"trademaestro/internal/domain"
	"trademaestro/internal/ports"
)

// closeAllRate paces bulk close/cancel sweeps so the gateway is not hammered
// during shutdown or strategy switches.
var closeAllRate = rate.Limit(5)

// Manager owns the full order and position lifecycle: submission, tracking,
// modification and close-out, plus trade recording on exit. All position
// state transitions happen under a single mutex so concurrent callers can
// never double-open a symbol.
type Manager struct {
	gateway ports.OrderGateway
	account ports.AccountGateway
	sink    ports.PerformanceSink
	logger  ports.Logger
	now     func() time.Time

	mu        sync.Mutex
	positions map[int64]*domain.Position
	pacer     *rate.Limiter
}

// NewManager creates an order manager. sink may be nil when trade recording
// is disabled.
func NewManager(gateway ports.OrderGateway, account ports.AccountGateway, sink ports.PerformanceSink, logger ports.Logger) (*Manager, error) {
	if gateway == nil {
		return nil, fmt.Errorf("order gateway is required for order manager")
	}
	if account == nil {
		return nil, fmt.Errorf("account gateway is required for order manager")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for order manager")
	}
	return &Manager{
		gateway:   gateway,
		account:   account,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
		positions: make(map[int64]*domain.Position),
		pacer:     rate.NewLimiter(closeAllRate, 1),
	}, nil
}

// Open submits a market order and tracks the resulting position. The
// duplicate check, pre-order validation and submission form one critical
// section: a second Open for the same symbol blocks until the first has
// either registered its position or failed.
func (m *Manager) Open(ctx context.Context, symbol string, side domain.OrderSide, volume, stopLoss, takeProfit float64, comment string) (*domain.Position, error) {
	if volume <= 0 {
		return nil, fmt.Errorf("%w: volume must be positive", ports.ErrInvalidRequest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p := m.openPositionLocked(symbol); p != nil {
		return nil, fmt.Errorf("%w: position %d already open for %s", ports.ErrOrderPlacementFailed, p.Ticket, symbol)
	}

	info, err := m.account.GetSymbolInfo(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("orders: symbol info for %s: %w", symbol, err)
	}
	if !info.TradeAllowed {
		return nil, fmt.Errorf("%w: trading disabled for %s", ports.ErrTradeNotAllowed, symbol)
	}
	if info.VolumeMin > 0 && volume < info.VolumeMin {
		return nil, fmt.Errorf("%w: volume %.2f below minimum %.2f", ports.ErrInvalidRequest, volume, info.VolumeMin)
	}

	tick, err := m.account.GetCurrentTick(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("orders: current tick for %s: %w", symbol, err)
	}
	entry := tick.Ask
	if side == domain.Sell {
		entry = tick.Bid
	}

	req := &ports.OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Volume:     volume,
		Price:      entry,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Tag:        uuid.NewString(),
	}
	res, err := m.gateway.SubmitOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("orders: submit %s %s: %w", side, symbol, err)
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ports.ErrOrderPlacementFailed, res.Error)
	}
	if res.Price != 0 {
		entry = res.Price
	}

	pos := &domain.Position{
		Ticket:       res.Ticket,
		Symbol:       symbol,
		Side:         side,
		Volume:       volume,
		EntryPrice:   entry,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
		OpenTime:     m.now(),
		Comment:      comment,
		CurrentPrice: entry,
		Status:       domain.StatusOpen,
	}
	m.positions[pos.Ticket] = pos

	m.logger.Info(ctx, "Position opened", map[string]interface{}{
		"ticket": pos.Ticket,
		"symbol": symbol,
		"side":   side,
		"volume": volume,
		"price":  entry,
	})
	return pos, nil
}

// Close closes an open position, fully or partially. volume 0 closes the
// full position. A full close removes the position from tracking and hands
// one trade record to the performance sink; sink failures are logged and do
// not fail the close.
func (m *Manager) Close(ctx context.Context, ticket int64, volume float64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked(ctx, ticket, volume, reason)
}

func (m *Manager) closeLocked(ctx context.Context, ticket int64, volume float64, reason string) error {
	pos, ok := m.positions[ticket]
	if !ok {
		return fmt.Errorf("%w: ticket %d", ports.ErrPositionNotFound, ticket)
	}
	if volume < 0 || volume > pos.Volume {
		return fmt.Errorf("%w: close volume %.2f exceeds position volume %.2f", ports.ErrInvalidRequest, volume, pos.Volume)
	}
	if volume == 0 {
		volume = pos.Volume
	}

	res, err := m.gateway.ClosePosition(ctx, ticket, volume)
	if err != nil {
		return fmt.Errorf("orders: close ticket %d: %w", ticket, err)
	}
	if !res.Success {
		return fmt.Errorf("%w: close ticket %d: %s", ports.ErrOrderPlacementFailed, ticket, res.Error)
	}

	exit := res.Price
	if exit == 0 {
		// The close fills against the opposite side of the book.
		tick, tickErr := m.account.GetCurrentTick(ctx, pos.Symbol)
		if tickErr != nil {
			return fmt.Errorf("orders: current tick for %s: %w", pos.Symbol, tickErr)
		}
		if pos.Side == domain.Buy {
			exit = tick.Bid
		} else {
			exit = tick.Ask
		}
	}

	profit := m.profitAt(ctx, pos, exit, volume)

	if volume < pos.Volume {
		pos.Volume -= volume
		m.logger.Info(ctx, "Position partially closed", map[string]interface{}{
			"ticket":    ticket,
			"closed":    volume,
			"remaining": pos.Volume,
			"profit":    profit,
		})
		return nil
	}

	delete(m.positions, ticket)
	pos.Status = domain.StatusClosed

	m.logger.Info(ctx, "Position closed", map[string]interface{}{
		"ticket": ticket,
		"symbol": pos.Symbol,
		"profit": profit,
		"reason": reason,
	})

	if m.sink != nil {
		trade := &domain.TradeRecord{
			Ticket:     ticket,
			Symbol:     pos.Symbol,
			Side:       pos.Side,
			Volume:     volume,
			EntryPrice: pos.EntryPrice,
			ExitPrice:  exit,
			Profit:     profit,
			OpenTime:   pos.OpenTime,
			CloseTime:  m.now(),
			Reason:     reason,
		}
		if err := m.sink.RecordTrade(ctx, trade); err != nil {
			m.logger.Error(ctx, err, "Failed to record trade", map[string]interface{}{"ticket": ticket})
		}
	}
	return nil
}

// profitAt computes the direction-signed profit at the given price, in
// account currency.
func (m *Manager) profitAt(ctx context.Context, pos *domain.Position, exit, volume float64) float64 {
	contractSize := 100000.0
	if info, err := m.account.GetSymbolInfo(ctx, pos.Symbol); err == nil && info.ContractSize > 0 {
		contractSize = info.ContractSize
	}
	if pos.Side == domain.Buy {
		return (exit - pos.EntryPrice) * volume * contractSize
	}
	return (pos.EntryPrice - exit) * volume * contractSize
}

// CloseMatching closes all open positions for the symbol on the given side.
// It returns the number of positions closed and the first error encountered;
// remaining positions are still attempted.
func (m *Manager) CloseMatching(ctx context.Context, symbol string, side domain.OrderSide, reason string) (int, error) {
	m.mu.Lock()
	var tickets []int64
	for ticket, pos := range m.positions {
		if pos.Symbol == symbol && pos.Side == side {
			tickets = append(tickets, ticket)
		}
	}
	m.mu.Unlock()

	closed := 0
	var firstErr error
	for _, ticket := range tickets {
		if err := m.Close(ctx, ticket, 0, reason); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		closed++
	}
	return closed, firstErr
}

// Modify updates stop-loss and/or take-profit on a tracked position. Zero
// levels keep the current values.
func (m *Manager) Modify(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[ticket]
	if !ok {
		return fmt.Errorf("%w: ticket %d", ports.ErrPositionNotFound, ticket)
	}
	res, err := m.gateway.ModifyPosition(ctx, ticket, stopLoss, takeProfit)
	if err != nil {
		return fmt.Errorf("orders: modify ticket %d: %w", ticket, err)
	}
	if !res.Success {
		return fmt.Errorf("%w: modify ticket %d: %s", ports.ErrOrderPlacementFailed, ticket, res.Error)
	}
	if stopLoss != 0 {
		pos.StopLoss = stopLoss
	}
	if takeProfit != 0 {
		pos.TakeProfit = takeProfit
	}
	m.logger.Info(ctx, "Position modified", map[string]interface{}{
		"ticket":      ticket,
		"stop_loss":   pos.StopLoss,
		"take_profit": pos.TakeProfit,
	})
	return nil
}

// Cancel cancels a pending order on the gateway.
func (m *Manager) Cancel(ctx context.Context, ticket int64) error {
	res, err := m.gateway.CancelOrder(ctx, ticket)
	if err != nil {
		return fmt.Errorf("orders: cancel ticket %d: %w", ticket, err)
	}
	if !res.Success {
		return fmt.Errorf("%w: ticket %d: %s", ports.ErrOrderCancelFailed, ticket, res.Error)
	}
	m.logger.Info(ctx, "Order cancelled", map[string]interface{}{"ticket": ticket})
	return nil
}

// CloseAll closes every tracked position, pacing requests through the rate
// limiter. It keeps going past individual failures and returns the tallies.
func (m *Manager) CloseAll(ctx context.Context, reason string) (closed, failed int, err error) {
	m.mu.Lock()
	tickets := make([]int64, 0, len(m.positions))
	for ticket := range m.positions {
		tickets = append(tickets, ticket)
	}
	m.mu.Unlock()

	var firstErr error
	for _, ticket := range tickets {
		if waitErr := m.pacer.Wait(ctx); waitErr != nil {
			return closed, failed + (len(tickets) - closed - failed), waitErr
		}
		if closeErr := m.Close(ctx, ticket, 0, reason); closeErr != nil {
			failed++
			if firstErr == nil {
				firstErr = closeErr
			}
			m.logger.Error(ctx, closeErr, "Failed to close position", map[string]interface{}{"ticket": ticket})
			continue
		}
		closed++
	}
	return closed, failed, firstErr
}

// CancelAll cancels every order still pending on the gateway.
func (m *Manager) CancelAll(ctx context.Context) (cancelled, failed int, err error) {
	tickets, err := m.gateway.ListOrders(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("orders: list pending orders: %w", err)
	}

	var firstErr error
	for _, ticket := range tickets {
		if waitErr := m.pacer.Wait(ctx); waitErr != nil {
			return cancelled, failed, waitErr
		}
		if cancelErr := m.Cancel(ctx, ticket); cancelErr != nil {
			failed++
			if firstErr == nil {
				firstErr = cancelErr
			}
			continue
		}
		cancelled++
	}
	return cancelled, failed, firstErr
}

// RefreshPrices updates current price and floating profit on every tracked
// position from fresh quotes. Quote failures for one symbol leave that
// position stale and do not abort the sweep.
func (m *Manager) RefreshPrices(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticks := make(map[string]*ports.Tick)
	for _, pos := range m.positions {
		tick, ok := ticks[pos.Symbol]
		if !ok {
			var err error
			tick, err = m.account.GetCurrentTick(ctx, pos.Symbol)
			if err != nil {
				m.logger.Warn(ctx, "Quote refresh failed", map[string]interface{}{"symbol": pos.Symbol, "error": err.Error()})
				continue
			}
			ticks[pos.Symbol] = tick
		}
		if pos.Side == domain.Buy {
			pos.CurrentPrice = tick.Bid
		} else {
			pos.CurrentPrice = tick.Ask
		}
		pos.Profit = m.profitAt(ctx, pos, pos.CurrentPrice, pos.Volume)
	}
}

// OpenCount returns the number of tracked open positions.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

// HasOpenPosition reports whether a position is open for the symbol.
func (m *Manager) HasOpenPosition(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPositionLocked(symbol) != nil
}

func (m *Manager) openPositionLocked(symbol string) *domain.Position {
	for _, pos := range m.positions {
		if pos.Symbol == symbol {
			return pos
		}
	}
	return nil
}

// Positions returns a snapshot of the tracked positions.
func (m *Manager) Positions() []*domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		copied := *pos
		out = append(out, &copied)
	}
	return out
}
