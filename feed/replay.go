package feed

import (
	"context"
	"sync"

	"github.com/rustyeddy/papertrader/market"
)

// ReplayFeed serves preloaded candles one bar at a time: every Fetch for a
// symbol returns a snapshot one candle longer than the previous one, which
// makes the paper loop deterministic and is the workhorse of the tests.
// Returns ErrUnavailable once a symbol's candles are exhausted or unknown.
type ReplayFeed struct {
	mu      sync.Mutex
	candles map[string][]market.Candle
	cursor  map[string]int

	// MinWindow is how many candles the first Fetch returns, so
	// strategies with warmup needs see history immediately.
	MinWindow int
}

func NewReplayFeed(candles map[string][]market.Candle) *ReplayFeed {
	return &ReplayFeed{
		candles:   candles,
		cursor:    make(map[string]int),
		MinWindow: 1,
	}
}

func (f *ReplayFeed) Fetch(ctx context.Context, symbol, timeframe string) (market.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return market.Snapshot{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	bars, ok := f.candles[symbol]
	if !ok {
		return market.Snapshot{}, ErrUnavailable
	}

	n, seen := f.cursor[symbol]
	if !seen {
		n = f.MinWindow
		if n < 1 {
			n = 1
		}
	} else {
		n++
	}
	if n > len(bars) {
		return market.Snapshot{}, ErrUnavailable
	}
	f.cursor[symbol] = n

	return market.NewSnapshot(symbol, timeframe, bars[:n]), nil
}
