package risk

import (
	"math"

	"github.com/rustyeddy/papertrader/strategies"
)

// Sizer converts a signal into an order quantity from account equity and
// a per-trade risk budget. Deterministic given identical inputs.
type Sizer struct {
	// RiskFraction is the share of equity committed per full-strength
	// trade, e.g. 0.1.
	RiskFraction float64

	// MinStrength gates weak signals to a no-op intent.
	MinStrength float64

	// MinQuantity is the smallest tradable unit; anything below sizes
	// to zero.
	MinQuantity float64
}

// Size returns the whole-unit quantity for a signal:
//
//	floor(equity * RiskFraction * |strength| / price)
//
// Flat signals, signals below MinStrength, and results below MinQuantity
// all size to zero. The result is never negative; direction travels on the
// intent, not the quantity.
func (s Sizer) Size(sig strategies.Signal, equity, price float64) float64 {
	if sig.Direction == strategies.Flat || price <= 0 || equity <= 0 {
		return 0
	}
	strength := math.Abs(sig.Strength)
	if strength < s.MinStrength {
		return 0
	}
	qty := math.Floor(equity * s.RiskFraction * strength / price)
	if qty < s.MinQuantity || qty <= 0 {
		return 0
	}
	return qty
}

// SizeByStop sizes from a stop distance instead of signal strength: the
// quantity that loses equity*RiskFraction if the stop is hit. Used by
// strategies that publish stops with their signals.
func (s Sizer) SizeByStop(equity, price, stop float64) float64 {
	if price <= 0 || equity <= 0 {
		return 0
	}
	dist := math.Abs(price - stop)
	if dist <= 0 {
		return 0
	}
	qty := math.Floor(equity * s.RiskFraction / dist)
	if qty < s.MinQuantity || qty <= 0 {
		return 0
	}
	return qty
}
