package strategies

import (
	"github.com/rustyeddy/papertrader/market"
)

func init() {
	Register("ema-cross", func(p Params) Strategy { return NewEmaCross(p) })
}

// EmaCross signals long when the fast EMA is above the slow EMA with RSI
// confirming, short on the mirror condition, flat otherwise. Stops and
// targets come from ATR when available.
type EmaCross struct {
	Fast      int
	Slow      int
	RSIPeriod int
	ATRPeriod int
	ATRMult   float64
}

func NewEmaCross(p Params) *EmaCross {
	s := &EmaCross{
		Fast:      p.Fast,
		Slow:      p.Slow,
		RSIPeriod: p.RSIPeriod,
		ATRPeriod: p.ATRPeriod,
		ATRMult:   p.ATRMult,
	}
	if s.Fast <= 0 {
		s.Fast = 20
	}
	if s.Slow <= 0 {
		s.Slow = 50
	}
	if s.Slow <= s.Fast {
		s.Slow = s.Fast * 2
	}
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = 14
	}
	if s.ATRPeriod <= 0 {
		s.ATRPeriod = 14
	}
	if s.ATRMult <= 0 {
		s.ATRMult = 1.5
	}
	return s
}

func (s *EmaCross) Name() string { return "ema-cross" }

func (s *EmaCross) Signal(snap market.Snapshot) (Signal, error) {
	sig := Signal{Symbol: snap.Symbol, Direction: Flat, Strength: 0.25, Strategy: s.Name()}

	closes := snap.Closes()
	if len(closes) < s.Slow {
		// warmup: stay flat until the slow EMA is meaningful
		sig.Strength = 0
		return sig, nil
	}

	fast := ema(closes, s.Fast)
	slow := ema(closes, s.Slow)
	r := rsi(closes, s.RSIPeriod)
	last := closes[len(closes)-1]

	switch {
	case fast[len(fast)-1] > slow[len(slow)-1] && r > 55:
		sig.Direction = Long
		sig.Strength = 0.65
	case fast[len(fast)-1] < slow[len(slow)-1] && r < 45:
		sig.Direction = Short
		sig.Strength = 0.65
	default:
		sig.Strength = 0
		return sig, nil
	}

	if a := atr(snap.Candles, s.ATRPeriod); a > 0 {
		if sig.Direction == Long {
			sig.Stop = last - s.ATRMult*a
			sig.Target = last + 2*(last-sig.Stop)
		} else {
			sig.Stop = last + s.ATRMult*a
			sig.Target = last - 2*(sig.Stop-last)
		}
	}
	return sig, nil
}
