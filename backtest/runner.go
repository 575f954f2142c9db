// Package backtest replays historical candles through the same engine
// cycle the paper loop uses, so a strategy behaves identically in both.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/engine"
	"github.com/rustyeddy/papertrader/internal/id"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/sim"
)

// RunnerOptions controls end-of-dataset behavior.
type RunnerOptions struct {
	// CloseEnd flattens every open position at the final marks when the
	// dataset runs out, so Result reflects realized numbers only.
	CloseEnd bool

	// MinWindow is the smallest snapshot handed to strategies; bars
	// before the window fills are still marked but produce no signals.
	MinWindow int
}

// Runner drives an engine across a candle dataset bar by bar. Bars are
// merged across symbols by timestamp; symbols sharing a timestamp are
// processed in the same cycle, in lexical symbol order.
type Runner struct {
	Engine  *engine.Engine
	Broker  *sim.Broker
	Candles map[string][]market.Candle
	Options RunnerOptions
}

// Result is the final accounting of a backtest run.
type Result struct {
	FinalCash   float64
	FinalEquity float64
	Metrics     metrics.Metrics
	Ledger      []journal.Entry
	Positions   map[string]broker.Position
	Bars        int
	Cycles      int
	Start       time.Time
	End         time.Time
}

// Run replays the dataset. Each distinct timestamp becomes one engine
// cycle; the snapshots passed in grow one bar at a time exactly as a
// live replay feed would serve them. Deterministic for a given dataset
// and broker seed.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Engine == nil {
		return Result{}, fmt.Errorf("backtest: engine is required")
	}
	if r.Broker == nil {
		return Result{}, fmt.Errorf("backtest: broker is required")
	}
	if len(r.Candles) == 0 {
		return Result{}, fmt.Errorf("backtest: no candles to replay")
	}

	symbols := make([]string, 0, len(r.Candles))
	for sym, bars := range r.Candles {
		if len(bars) == 0 {
			return Result{}, fmt.Errorf("backtest: %s has no candles", sym)
		}
		if !sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) }) {
			return Result{}, fmt.Errorf("backtest: %s candles are not in time order", sym)
		}
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	minWindow := r.Options.MinWindow
	if minWindow < 1 {
		minWindow = 1
	}

	res := Result{}
	cursor := make(map[string]int, len(symbols))

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// Next timestamp across all symbols with bars remaining.
		var next time.Time
		found := false
		for _, sym := range symbols {
			i := cursor[sym]
			if i >= len(r.Candles[sym]) {
				continue
			}
			t := r.Candles[sym][i].Time
			if !found || t.Before(next) {
				next = t
				found = true
			}
		}
		if !found {
			break
		}

		snaps := make([]market.Snapshot, 0, len(symbols))
		for _, sym := range symbols {
			i := cursor[sym]
			bars := r.Candles[sym]
			if i >= len(bars) || !bars[i].Time.Equal(next) {
				continue
			}
			cursor[sym] = i + 1
			res.Bars++
			if i+1 < minWindow {
				bar := bars[i]
				r.Broker.SetMark(sym, bar.Close, bar.Volume, bar.Time)
				continue
			}
			snaps = append(snaps, market.NewSnapshot(sym, "", bars[:i+1]))
		}

		if res.Start.IsZero() {
			res.Start = next
		}
		res.End = next

		if len(snaps) == 0 {
			continue
		}
		if err := r.Engine.RunCycle(ctx, snaps); err != nil {
			return res, err
		}
		res.Cycles++
	}

	if r.Options.CloseEnd {
		if err := r.closeAll(ctx, res.End); err != nil {
			return res, err
		}
	}

	snap := r.Broker.Snapshot()
	res.FinalCash = snap.Cash
	res.FinalEquity = snap.Equity
	res.Positions = snap.Positions
	res.Ledger = r.Broker.Ledger()
	res.Metrics = metrics.Summarize(res.Ledger, r.Broker.StartingCash())
	return res, nil
}

// closeAll flattens every open position at the latest marks.
func (r *Runner) closeAll(ctx context.Context, at time.Time) error {
	snap := r.Broker.Snapshot()

	symbols := make([]string, 0, len(snap.Positions))
	for sym := range snap.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		pos := snap.Positions[sym]
		if pos.Quantity == 0 {
			continue
		}
		side := broker.Sell
		qty := pos.Quantity
		if qty < 0 {
			side = broker.Buy
			qty = -qty
		}
		order := broker.Order{
			ID:        id.New(),
			Symbol:    sym,
			Side:      side,
			Quantity:  qty,
			Time:      at,
			Status:    broker.Pending,
			SignalRef: "close-end",
		}
		if _, err := r.Broker.Submit(ctx, order); err != nil {
			return fmt.Errorf("backtest: close %s: %w", sym, err)
		}
	}
	return nil
}
