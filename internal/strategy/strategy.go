// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry for building strategy implementations by name.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"tradelab/internal/domain"
)

var (
	// ErrUnknownStrategy is returned by Registry.New for unregistered names.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrInvalidParam is returned by factories for out-of-range parameters.
	ErrInvalidParam = errors.New("invalid strategy parameter")
)

// Strategy is the interface that all trading strategies must implement.
// Implementations hold only their construction parameters, so a single value
// may be used from several goroutines.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Params returns the parameters the strategy was built with.
	Params() Params

	// Warmup returns the number of bars needed before the first defined
	// signal.
	Warmup() int

	// ComputeIndicators copies bars into a new frame and attaches the
	// indicator columns the strategy reads.
	ComputeIndicators(bars []domain.Bar) (*domain.Frame, error)

	// GenerateSignal maps one frame row to a trading decision.
	GenerateSignal(row domain.Row) domain.Signal
}

// Params holds named numeric strategy parameters.
type Params map[string]float64

// Float returns the named parameter or def when absent.
func (p Params) Float(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Int returns the named parameter as an int, or def when absent. Non-integral
// values are rejected.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidParam, name, v)
	}
	return int(v), nil
}

// Check rejects parameter names outside allowed.
func (p Params) Check(allowed ...string) error {
	var unknown []string
	for name := range p {
		if !slices.Contains(allowed, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: unknown %s, want one of %s",
		ErrInvalidParam, strings.Join(unknown, ", "), strings.Join(allowed, ", "))
}

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Factory builds a Strategy from parameters.
type Factory func(Params) (Strategy, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory to the registry under name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get retrieves a factory by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// New builds the named strategy from params.
func (r *Registry) New(name string, params Params) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return f(params)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
