package strategies

import (
	"github.com/rustyeddy/papertrader/market"
)

func init() {
	Register("momentum", func(p Params) Strategy { return NewMomentum(p) })
}

// Momentum compares the last close to its simple moving average and signals
// in the direction of the deviation, with strength proportional to it.
type Momentum struct {
	Lookback int
}

func NewMomentum(p Params) *Momentum {
	s := &Momentum{Lookback: p.Lookback}
	if s.Lookback <= 0 {
		s.Lookback = 20
	}
	return s
}

func (s *Momentum) Name() string { return "momentum" }

func (s *Momentum) Signal(snap market.Snapshot) (Signal, error) {
	sig := Signal{Symbol: snap.Symbol, Direction: Flat, Strategy: s.Name()}

	closes := snap.Closes()
	if len(closes) < s.Lookback {
		return sig, nil
	}

	window := closes[len(closes)-s.Lookback:]
	var sum float64
	for _, c := range window {
		sum += c
	}
	sma := sum / float64(s.Lookback)
	last := closes[len(closes)-1]
	if sma == 0 {
		return sig, nil
	}

	// 1% above the average saturates to full strength
	dev := (last - sma) / sma * 100
	if dev > 1 {
		dev = 1
	}
	if dev < -1 {
		dev = -1
	}

	switch {
	case dev > 0:
		sig.Direction = Long
		sig.Strength = dev
	case dev < 0:
		sig.Direction = Short
		sig.Strength = -dev
	}
	return sig, nil
}
