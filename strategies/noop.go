package strategies

import "github.com/rustyeddy/papertrader/market"

func init() {
	Register("noop", func(Params) Strategy { return Noop{} })
	Register("none", func(Params) Strategy { return Noop{} })
}

// Noop never signals. Handy for dry runs of the feed/journal plumbing.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Signal(snap market.Snapshot) (Signal, error) {
	return Signal{Symbol: snap.Symbol, Direction: Flat, Strategy: "noop"}, nil
}
