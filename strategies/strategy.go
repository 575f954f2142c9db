package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/papertrader/market"
)

type Direction int

const (
	Flat Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// Signal is the per-iteration output of a strategy for one symbol.
// Strength is in [-1, 1]; Stop/Target are optional price levels (0 = unset).
// A signal is stateless beyond the snapshot it was derived from.
type Signal struct {
	Symbol    string
	Direction Direction
	Strength  float64
	Strategy  string
	Stop      float64
	Target    float64
}

// Strategy turns a market snapshot into a signal. Implementations may keep
// their own prior state but must never touch portfolio or ledger.
type Strategy interface {
	Name() string
	Signal(snap market.Snapshot) (Signal, error)
}

// Params collects the tunables the built-in strategies understand.
// Externally registered strategies are free to ignore it.
type Params struct {
	Fast      int
	Slow      int
	RSIPeriod int
	ATRPeriod int
	ATRMult   float64
	Lookback  int
}

type Factory func(Params) Strategy

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register adds a strategy factory to the registry. Built-ins register in
// init(); callers may register their own implementations before the engine
// is constructed.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// ByName builds a strategy from the registry.
func ByName(name string, p Params) (Strategy, error) {
	mu.RLock()
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (known: %s)", name, strings.Join(Known(), ", "))
	}
	return f(p), nil
}

// Known lists registered strategy names, sorted.
func Known() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
