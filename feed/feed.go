// Package feed supplies market snapshots to the engine. The live-exchange
// client lives outside this repo; anything satisfying Feed can stand in
// for it.
package feed

import (
	"context"
	"errors"

	"github.com/rustyeddy/papertrader/market"
)

// ErrUnavailable signals that data for a symbol cannot be produced this
// iteration. The engine treats it as "skip the asset", never as fatal.
var ErrUnavailable = errors.New("feed unavailable")

type Feed interface {
	Fetch(ctx context.Context, symbol, timeframe string) (market.Snapshot, error)
}
