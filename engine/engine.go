// Package engine runs the trading event loop: fetch market data, produce
// signals, size them, gate them through risk, execute against the
// simulated broker, record the outcome, repeat.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/feed"
	"github.com/rustyeddy/papertrader/internal/id"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/rustyeddy/papertrader/strategies"
)

// State is where the loop currently is in its cycle. One full pass per
// iteration; Stopped is terminal.
type State int32

const (
	Idle State = iota
	Fetching
	Signaling
	Sizing
	RiskChecking
	Executing
	Recording
	Stopped
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Signaling:
		return "signaling"
	case Sizing:
		return "sizing"
	case RiskChecking:
		return "risk-checking"
	case Executing:
		return "executing"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Asset names one symbol/timeframe pair the engine trades.
type Asset struct {
	Symbol    string
	Timeframe string
}

// Config wires an engine. Strategies maps symbol to its strategy
// instance; every configured asset needs one.
type Config struct {
	Mode       Mode
	Assets     []Asset
	Strategies map[string]strategies.Strategy
	Sizer      risk.Sizer
	Limits     risk.Limits
	Feed       feed.Feed // required for Run, unused by RunCycle
	Iterations int
	Sleep      time.Duration
	Clock      Clock
	Logger     *zap.Logger
}

// OutcomeKind classifies what happened to one asset in one iteration.
type OutcomeKind string

const (
	OutcomeFill     OutcomeKind = "fill"
	OutcomeRejected OutcomeKind = "rejected"
	OutcomeNoOp     OutcomeKind = "no-op"
	OutcomeSkipped  OutcomeKind = "skipped"
)

// Outcome is one row of the in-memory decision log. Unlike the ledger it
// also captures no-ops and feed skips, which never become orders.
type Outcome struct {
	Iteration int
	Symbol    string
	Kind      OutcomeKind
	Detail    string
}

// Recap is a point-in-time view of the run: the ledger copy, summary
// metrics, portfolio snapshot, and the decision log. Safe to request
// while the loop keeps running.
type Recap struct {
	Ledger       []journal.Entry
	Metrics      metrics.Metrics
	Portfolio    broker.PortfolioSnapshot
	Outcomes     []Outcome
	StartingCash float64
	Iterations   int
}

type Engine struct {
	cfg    Config
	broker *sim.Broker
	exec   broker.Broker // submit-side view of the same broker
	log    *zap.Logger

	state atomic.Int32

	mu        sync.Mutex
	outcomes  []Outcome
	exits     map[string]exitLevels
	iteration int
}

// exitLevels are the stop/target prices published by the signal that
// opened the position, checked against each new mark.
type exitLevels struct {
	Stop   float64
	Target float64
}

// New validates the wiring and builds an engine. The engine only ever
// holds the simulated broker: there is no code path to a live venue, so
// a mis-set live flag can at worst change a log line, never route an
// order. That is the fail-safe the live guard requires.
func New(cfg Config, b *sim.Broker) (*Engine, error) {
	if b == nil {
		return nil, errors.New("engine: broker is required")
	}
	if len(cfg.Assets) == 0 {
		return nil, errors.New("engine: at least one asset is required")
	}
	for _, a := range cfg.Assets {
		if cfg.Strategies[a.Symbol] == nil {
			return nil, fmt.Errorf("engine: no strategy for %s", a.Symbol)
		}
	}
	if cfg.Iterations < 0 {
		return nil, fmt.Errorf("engine: iterations %d must not be negative", cfg.Iterations)
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &Engine{
		cfg:    cfg,
		broker: b,
		exec:   b, // orders go through the venue contract, always satisfied by the sim
		log:    cfg.Logger,
		exits:  make(map[string]exitLevels),
	}
	if cfg.Mode.Live() {
		// Credentials validated or we would not have a live Mode, but
		// this build links no venue adapter. Paper it is.
		e.log.Warn("live mode requested but no venue adapter is linked; all orders stay on the simulated broker")
	}
	return e, nil
}

func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	if prev != s {
		e.log.Debug("state", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

// Run executes the configured number of iterations against the feed,
// sleeping between them. The sleep is the only suspension point and it is
// cancellable: a cancellation stops the loop before the next fetch, never
// mid-order.
func (e *Engine) Run(ctx context.Context) error {
	if e.cfg.Feed == nil {
		return errors.New("engine: feed is required to run")
	}
	defer e.setState(Stopped)

	for i := 0; i < e.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		snaps := e.fetch(ctx)
		if err := e.RunCycle(ctx, snaps); err != nil {
			return err
		}

		if i == e.cfg.Iterations-1 || e.cfg.Sleep <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.cfg.Clock.After(e.cfg.Sleep):
		}
	}
	return nil
}

// fetch obtains one snapshot per configured asset. A failed fetch skips
// the asset for this iteration and is recorded as such; it never aborts
// the loop.
func (e *Engine) fetch(ctx context.Context) []market.Snapshot {
	e.setState(Fetching)

	snaps := make([]market.Snapshot, 0, len(e.cfg.Assets))
	for _, a := range e.cfg.Assets {
		snap, err := e.cfg.Feed.Fetch(ctx, a.Symbol, a.Timeframe)
		if err != nil {
			e.record(Outcome{Iteration: e.currentIteration(), Symbol: a.Symbol, Kind: OutcomeSkipped, Detail: err.Error()})
			e.log.Info("feed skip", zap.String("symbol", a.Symbol), zap.Error(err))
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

// RunCycle drives one full iteration over the given snapshots: mark all
// symbols, then signal → size → risk-check → execute → record per asset.
// Risk approvals are sequential with respect to the shared portfolio, so
// each evaluation sees every fill approved earlier in the same cycle.
// The backtest runner calls this directly with snapshots built from
// historical bars; the live-paper loop calls it through Run.
func (e *Engine) RunCycle(ctx context.Context, snaps []market.Snapshot) error {
	e.mu.Lock()
	e.iteration++
	iter := e.iteration
	e.mu.Unlock()

	e.setState(Fetching)
	for _, snap := range snaps {
		if err := snap.Validate(); err != nil {
			e.record(Outcome{Iteration: iter, Symbol: snap.Symbol, Kind: OutcomeSkipped, Detail: err.Error()})
			continue
		}
		last, _ := snap.Last()
		e.broker.SetMark(snap.Symbol, last.Close, last.Volume, last.Time)
	}

	// Stops and targets fire on the fresh marks before any new signals,
	// so an exit and a re-entry for the same symbol cannot reorder.
	for _, snap := range snaps {
		if snap.Validate() != nil {
			continue
		}
		e.checkExit(ctx, iter, snap)
	}

	approved := 0
	for _, snap := range snaps {
		if err := snap.Validate(); err != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			e.setState(Stopped)
			return err
		}
		approved = e.processAsset(ctx, iter, snap, approved)
	}

	e.setState(Idle)
	return nil
}

// processAsset runs one asset through the pipeline and returns the
// updated count of approvals in this cycle.
func (e *Engine) processAsset(ctx context.Context, iter int, snap market.Snapshot, approved int) int {
	symbol := snap.Symbol
	strat := e.cfg.Strategies[symbol]
	if strat == nil {
		e.record(Outcome{Iteration: iter, Symbol: symbol, Kind: OutcomeSkipped, Detail: "no strategy"})
		return approved
	}
	last, _ := snap.Last()

	e.setState(Signaling)
	sig, err := strat.Signal(snap)
	if err != nil {
		e.record(Outcome{Iteration: iter, Symbol: symbol, Kind: OutcomeSkipped, Detail: err.Error()})
		e.log.Warn("strategy error", zap.String("symbol", symbol), zap.Error(err))
		return approved
	}

	e.setState(Sizing)
	pf := e.broker.Snapshot()
	qty := e.sizeSignal(sig, pf.Equity, last.Close)
	if qty <= 0 {
		e.record(Outcome{Iteration: iter, Symbol: symbol, Kind: OutcomeNoOp, Detail: sig.Direction.String()})
		return approved
	}

	side := broker.Buy
	if sig.Direction == strategies.Short {
		side = broker.Sell
	}
	order := broker.Order{
		ID:        id.New(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     last.Close,
		Time:      last.Time,
		Status:    broker.Pending,
		SignalRef: sig.Strategy,
	}

	e.setState(RiskChecking)
	pf = e.broker.Snapshot()
	pf.ApprovedThisCycle = approved
	decision := risk.Evaluate(risk.Intent{
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     last.Close,
		SignalRef: sig.Strategy,
	}, pf, e.cfg.Limits)

	if !decision.Approved {
		order.Status = broker.Rejected
		if err := e.broker.Reject(order, decision.Reason, decision.Detail); err != nil {
			e.log.Error("record risk rejection", zap.Error(err))
		}
		e.record(Outcome{Iteration: iter, Symbol: symbol, Kind: OutcomeRejected, Detail: decision.Detail})
		e.log.Info("risk rejected",
			zap.String("symbol", symbol),
			zap.String("reason", string(decision.Reason)),
			zap.String("detail", decision.Detail))
		return approved
	}
	approved++
	order.Quantity = decision.Quantity

	e.setState(Executing)
	fill, err := e.exec.Submit(ctx, order)

	e.setState(Recording)
	var rej *broker.RejectError
	switch {
	case errors.As(err, &rej):
		e.record(Outcome{Iteration: iter, Symbol: symbol, Kind: OutcomeRejected, Detail: rej.Error()})
		e.log.Info("broker rejected",
			zap.String("symbol", symbol),
			zap.String("reason", string(rej.Reason)))
	case err != nil:
		// journaling faults are isolated to this asset/iteration
		e.record(Outcome{Iteration: iter, Symbol: symbol, Kind: OutcomeSkipped, Detail: err.Error()})
		e.log.Error("submit failed", zap.String("symbol", symbol), zap.Error(err))
	default:
		e.trackExit(symbol, sig)
		e.record(Outcome{Iteration: iter, Symbol: symbol, Kind: OutcomeFill,
			Detail: fmt.Sprintf("%s %.8f @ %.8f", order.Side, fill.Quantity, fill.Price)})
		e.log.Info("filled",
			zap.String("symbol", symbol),
			zap.String("side", order.Side.String()),
			zap.Float64("quantity", fill.Quantity),
			zap.Float64("price", fill.Price),
			zap.Float64("fee", fill.Fee))
	}
	return approved
}

// sizeSignal converts a signal into a quantity: stop-distance sizing when
// the signal publishes a stop, strength sizing otherwise. The strength
// gate applies either way.
func (e *Engine) sizeSignal(sig strategies.Signal, equity, price float64) float64 {
	if sig.Direction == strategies.Flat {
		return 0
	}
	if sig.Stop > 0 {
		if math.Abs(sig.Strength) < e.cfg.Sizer.MinStrength {
			return 0
		}
		return e.cfg.Sizer.SizeByStop(equity, price, sig.Stop)
	}
	return e.cfg.Sizer.Size(sig, equity, price)
}

// trackExit remembers the stop/target published with the signal that just
// filled; a fill that flattened the symbol clears any armed exit instead.
func (e *Engine) trackExit(symbol string, sig strategies.Signal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.broker.Snapshot().PositionQty(symbol) == 0 {
		delete(e.exits, symbol)
		return
	}
	if sig.Stop > 0 || sig.Target > 0 {
		e.exits[symbol] = exitLevels{Stop: sig.Stop, Target: sig.Target}
	}
}

// checkExit closes the position when the latest close crosses its armed
// stop or target. The closing order only ever reduces exposure, so it
// goes straight to the broker; the risk gates govern entries.
func (e *Engine) checkExit(ctx context.Context, iter int, snap market.Snapshot) {
	symbol := snap.Symbol

	e.mu.Lock()
	lv, armed := e.exits[symbol]
	e.mu.Unlock()
	if !armed {
		return
	}

	pos := e.broker.Snapshot().Positions[symbol]
	if pos.Quantity == 0 {
		e.mu.Lock()
		delete(e.exits, symbol)
		e.mu.Unlock()
		return
	}

	last, _ := snap.Last()
	price := last.Close

	var trigger string
	if pos.Quantity > 0 {
		switch {
		case lv.Stop > 0 && price <= lv.Stop:
			trigger = "stop-loss"
		case lv.Target > 0 && price >= lv.Target:
			trigger = "take-profit"
		}
	} else {
		switch {
		case lv.Stop > 0 && price >= lv.Stop:
			trigger = "stop-loss"
		case lv.Target > 0 && price <= lv.Target:
			trigger = "take-profit"
		}
	}
	if trigger == "" {
		return
	}

	side := broker.Sell
	qty := pos.Quantity
	if qty < 0 {
		side = broker.Buy
		qty = -qty
	}
	order := broker.Order{
		ID:        id.New(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Time:      last.Time,
		Status:    broker.Pending,
		SignalRef: trigger,
	}

	e.setState(Executing)
	fill, err := e.exec.Submit(ctx, order)
	e.setState(Recording)
	if err != nil {
		e.record(Outcome{Iteration: iter, Symbol: symbol, Kind: OutcomeSkipped, Detail: err.Error()})
		e.log.Error("exit failed", zap.String("symbol", symbol), zap.String("trigger", trigger), zap.Error(err))
		return
	}

	e.mu.Lock()
	delete(e.exits, symbol)
	e.mu.Unlock()

	e.record(Outcome{Iteration: iter, Symbol: symbol, Kind: OutcomeFill,
		Detail: fmt.Sprintf("%s %s %.8f @ %.8f", trigger, side, fill.Quantity, fill.Price)})
	e.log.Info("exit",
		zap.String("symbol", symbol),
		zap.String("trigger", trigger),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("price", fill.Price),
		zap.Float64("pnl", fill.RealizedPL))
}

func (e *Engine) record(o Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outcomes = append(e.outcomes, o)
}

func (e *Engine) currentIteration() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iteration + 1
}

// Recap snapshots the run so far without pausing the loop: ledger copy,
// metrics recomputed from it, portfolio state, and the decision log.
func (e *Engine) Recap() Recap {
	ledger := e.broker.Ledger()
	starting := e.broker.StartingCash()

	e.mu.Lock()
	outcomes := make([]Outcome, len(e.outcomes))
	copy(outcomes, e.outcomes)
	iter := e.iteration
	e.mu.Unlock()

	return Recap{
		Ledger:       ledger,
		Metrics:      metrics.Summarize(ledger, starting),
		Portfolio:    e.broker.Snapshot(),
		Outcomes:     outcomes,
		StartingCash: starting,
		Iterations:   iter,
	}
}
