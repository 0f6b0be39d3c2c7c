package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trademaestro/internal/domain"
	"trademaestro/internal/ports"
)

// Strategy defines the analysis contract implemented by each trading
// strategy variant.
type Strategy interface {
	// Name returns the registry name of the strategy.
	Name() string

	// Timeframe returns the bar timeframe the strategy analyses (e.g. "M1").
	Timeframe() string

	// RequiredDataPoints returns the minimum number of bars needed for the
	// strategy calculations.
	RequiredDataPoints() int

	// AnalyzeMarket analyses the price series for one symbol and produces a
	// signal. Unsuitable market conditions yield a HOLD result, not an
	// error; errors are reserved for collaborator failures.
	AnalyzeMarket(ctx context.Context, symbol string, series domain.Series) (*domain.StrategyResult, error)
}

// Deps carries the collaborators injected into every strategy instance.
type Deps struct {
	Account ports.AccountGateway
	Logger  ports.Logger

	// Overrides maps strategy name to parameter name to value, loaded from
	// the optional strategy parameters file. Unknown keys are ignored.
	Overrides map[string]map[string]float64

	// Now is the clock used by session and news filters. Defaults to
	// time.Now when nil; tests inject a fixed clock.
	Now func() time.Time
}

func (d Deps) validate() error {
	if d.Account == nil {
		return fmt.Errorf("account gateway is required for strategy")
	}
	if d.Logger == nil {
		return fmt.Errorf("logger is required for strategy")
	}
	return nil
}

func (d Deps) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// Factory constructs a strategy variant from its dependencies.
type Factory func(deps Deps) (Strategy, error)

// factories is the closed (but extensible) set of strategy variants,
// dispatched by registry name.
var factories = map[string]Factory{
	"scalping": NewScalping,
	"swing":    NewSwing,
}

// Available returns the registered strategy names, sorted.
func Available() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New instantiates the named strategy variant.
func New(name string, deps Deps) (Strategy, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", ports.ErrInvalidRequest, name)
	}
	return factory(deps)
}

// vote accumulates directional votes and confidence factors during signal
// generation. Both strategies share the same voting/decision pattern.
type vote struct {
	buy, sell int
	factors   []float64
	reasons   []string
}

func (v *vote) addBuy(weight int, factor float64, reason string) {
	v.buy += weight
	v.factors = append(v.factors, factor)
	v.reasons = append(v.reasons, reason)
}

func (v *vote) addSell(weight int, factor float64, reason string) {
	v.sell += weight
	v.factors = append(v.factors, factor)
	v.reasons = append(v.reasons, reason)
}

// addFactor contributes confidence without a directional vote.
func (v *vote) addFactor(factor float64, reason string) {
	v.factors = append(v.factors, factor)
	v.reasons = append(v.reasons, reason)
}

// confidence returns min(0.95, mean of the collected factors).
func (v *vote) confidence() float64 {
	if len(v.factors) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, f := range v.factors {
		sum += f
	}
	c := sum / float64(len(v.factors))
	if c > 0.95 {
		c = 0.95
	}
	return c
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}

// applyOverride replaces *target when the overrides map carries the key.
func applyOverride(overrides map[string]float64, key string, target *float64) {
	if v, ok := overrides[key]; ok {
		*target = v
	}
}

// applyOverrideInt is applyOverride for integer parameters.
func applyOverrideInt(overrides map[string]float64, key string, target *int) {
	if v, ok := overrides[key]; ok {
		*target = int(v)
	}
}
