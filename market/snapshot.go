package market

import (
	"errors"
	"fmt"
)

var ErrEmptySnapshot = errors.New("snapshot has no candles")

// Snapshot is the market view handed to a strategy for one iteration:
// an ordered run of candles for a single symbol/timeframe, most recent last.
// A snapshot is never mutated once produced.
type Snapshot struct {
	Symbol    string
	Timeframe string
	Candles   []Candle
}

// NewSnapshot copies candles so later appends by the producer cannot
// change a snapshot already handed out.
func NewSnapshot(symbol, timeframe string, candles []Candle) Snapshot {
	cp := make([]Candle, len(candles))
	copy(cp, candles)
	return Snapshot{Symbol: symbol, Timeframe: timeframe, Candles: cp}
}

// Last returns the most recent candle.
func (s Snapshot) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closes returns the close series, oldest first.
func (s Snapshot) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Validate checks the snapshot is usable: named symbol, at least one
// candle, timestamps strictly ascending.
func (s Snapshot) Validate() error {
	if s.Symbol == "" {
		return errors.New("snapshot symbol is required")
	}
	if len(s.Candles) == 0 {
		return ErrEmptySnapshot
	}
	for i := 1; i < len(s.Candles); i++ {
		if !s.Candles[i].Time.After(s.Candles[i-1].Time) {
			return fmt.Errorf("snapshot %s: candle %d time %v not after candle %d time %v",
				s.Symbol, i, s.Candles[i].Time, i-1, s.Candles[i-1].Time)
		}
	}
	return nil
}
