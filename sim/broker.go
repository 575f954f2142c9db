package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
)

type mark struct {
	Price  float64
	Volume float64
	Time   time.Time
}

// Broker executes orders against the latest marked prices with slippage,
// fee and latency models, and owns the Portfolio. Every submit is one
// atomic step: acquire the lock, apply the fill or rejection, release.
type Broker struct {
	mu    sync.Mutex
	pf    *Portfolio
	marks map[string]mark

	fees       FeeModel
	slippage   SlippageModel
	latency    LatencyModel
	allowShort bool
	starting   float64

	journal journal.Journal
}

type BrokerOptions struct {
	StartingCash float64
	Fees         FeeModel
	Slippage     SlippageModel
	Latency      LatencyModel
	AllowShort   bool
	Journal      journal.Journal // nil falls back to an in-memory journal
}

func NewBroker(opts BrokerOptions) *Broker {
	j := opts.Journal
	if j == nil {
		j = journal.NewMemory()
	}
	return &Broker{
		pf:         NewPortfolio(opts.StartingCash),
		marks:      make(map[string]mark),
		fees:       opts.Fees,
		slippage:   opts.Slippage,
		latency:    opts.Latency,
		allowShort: opts.AllowShort,
		starting:   opts.StartingCash,
		journal:    j,
	}
}

// StartingCash returns the cash the portfolio opened with; recap metrics
// are computed relative to it.
func (b *Broker) StartingCash() float64 { return b.starting }

// SetMark records the latest reference price and bar volume for a symbol.
// The engine calls this once per symbol per iteration before any orders.
// The equity high-water mark advances here too: a mark-only rally raises
// the peak the drawdown limit measures against, fills or not.
func (b *Broker) SetMark(symbol string, price, volume float64, t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marks[symbol] = mark{Price: price, Volume: volume, Time: t}

	if equity := b.currentEquityLocked(); equity > b.pf.HighWater {
		b.pf.HighWater = equity
	}
}

// Submit executes the order in full or rejects it. Rejections mutate no
// cash or position state but are appended to the ledger, since they are
// part of normal operation and must be observable.
func (b *Broker) Submit(ctx context.Context, order broker.Order) (broker.Fill, error) {
	_ = ctx // submits never block; reserved for a future async venue

	b.mu.Lock()
	defer b.mu.Unlock()

	if order.Quantity <= 0 {
		return broker.Fill{}, b.rejectLocked(order, broker.ReasonZeroQuantity,
			fmt.Sprintf("quantity %.8f", order.Quantity))
	}

	ref := order.Price
	m := b.marks[order.Symbol]
	if ref <= 0 {
		ref = m.Price
	}
	if ref <= 0 {
		return broker.Fill{}, b.rejectLocked(order, broker.ReasonFeedUnavailable,
			fmt.Sprintf("no reference price for %s", order.Symbol))
	}

	execPrice := b.slippage.Apply(ref, order.Side, order.Quantity, m.Volume)
	fee := b.fees.Fee(execPrice * order.Quantity)

	if order.Side == broker.Buy {
		cost := execPrice*order.Quantity + fee
		if cost > b.pf.Cash {
			return broker.Fill{}, b.rejectLocked(order, broker.ReasonInsufficientFunds,
				fmt.Sprintf("cost %.2f exceeds cash %.2f", cost, b.pf.Cash))
		}
	} else {
		cur := b.pf.Positions[order.Symbol].Quantity
		if !b.allowShort && cur-order.Quantity < -qtyEps {
			return broker.Fill{}, b.rejectLocked(order, broker.ReasonShortDisabled,
				fmt.Sprintf("sell %.8f exceeds held %.8f", order.Quantity, cur))
		}
	}

	realized := b.pf.applyFill(order.Symbol, order.Side, order.Quantity, execPrice, fee)

	fill := broker.Fill{
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      execPrice,
		Fee:        fee,
		Slippage:   abs(execPrice - ref),
		RealizedPL: realized,
		Time:       order.Time.Add(b.latency.Delay()),
	}

	entry := b.pf.appendEntry(journal.Entry{
		Kind:       journal.KindFill,
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      execPrice,
		Fee:        fee,
		Slippage:   fill.Slippage,
		RealizedPL: realized,
		Time:       fill.Time,
	})
	if err := b.journal.RecordEntry(entry); err != nil {
		return broker.Fill{}, fmt.Errorf("journal fill: %w", err)
	}

	equity := b.currentEquityLocked()
	if equity > b.pf.HighWater {
		b.pf.HighWater = equity
	}
	if err := b.journal.RecordEquity(journal.EquityMark{
		Time:       fill.Time,
		Cash:       b.pf.Cash,
		Equity:     equity,
		RealizedPL: b.pf.Realized,
	}); err != nil {
		return broker.Fill{}, fmt.Errorf("journal equity: %w", err)
	}

	return fill, nil
}

// Reject records a rejection that happened upstream of the broker (risk
// denial) so the ledger stays the single source of truth for every
// decision outcome.
func (b *Broker) Reject(order broker.Order, reason broker.RejectReason, detail string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.rejectLocked(order, reason, detail)
	if _, ok := err.(*broker.RejectError); ok {
		return nil // the rejection itself is the expected outcome here
	}
	return err
}

// rejectLocked appends the rejection to the ledger and returns the
// RejectError for the caller to surface. A non-RejectError return means
// journaling itself failed.
func (b *Broker) rejectLocked(order broker.Order, reason broker.RejectReason, detail string) error {
	entry := b.pf.appendEntry(journal.Entry{
		Kind:     journal.KindRejection,
		OrderID:  order.ID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: order.Quantity,
		Reason:   reason,
		Detail:   detail,
		Time:     order.Time,
	})
	if err := b.journal.RecordEntry(entry); err != nil {
		return fmt.Errorf("journal rejection: %w", err)
	}
	return &broker.RejectError{Reason: reason, Detail: detail}
}

// Snapshot returns a consistent copy of portfolio state for the risk
// evaluator and the recap path.
func (b *Broker) Snapshot() broker.PortfolioSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	positions := make(map[string]broker.Position, len(b.pf.Positions))
	for sym, p := range b.pf.Positions {
		positions[sym] = p
	}
	marks := make(map[string]float64, len(b.marks))
	for sym, m := range b.marks {
		marks[sym] = m.Price
	}

	return broker.PortfolioSnapshot{
		Cash:       b.pf.Cash,
		Equity:     b.currentEquityLocked(),
		RealizedPL: b.pf.Realized,
		HighWater:  b.pf.HighWater,
		Positions:  positions,
		Marks:      marks,
	}
}

// Ledger returns a copy of the full ledger.
func (b *Broker) Ledger() []journal.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pf.Ledger()
}

func (b *Broker) currentEquityLocked() float64 {
	marks := make(map[string]float64, len(b.marks))
	for sym, m := range b.marks {
		marks[sym] = m.Price
	}
	return b.pf.Equity(marks)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
