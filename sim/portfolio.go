package sim

import (
	"math"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
)

const qtyEps = 1e-9

// Portfolio is the paper account: cash, positions by symbol, the realized
// PnL accumulator, and the append-only ledger. It is owned exclusively by
// the sim Broker, which serializes all mutation; everything else sees it
// through PortfolioSnapshot copies.
type Portfolio struct {
	Cash      float64
	Positions map[string]broker.Position
	Realized  float64
	HighWater float64

	ledger  []journal.Entry
	nextSeq int
}

func NewPortfolio(startingCash float64) *Portfolio {
	return &Portfolio{
		Cash:      startingCash,
		Positions: make(map[string]broker.Position),
		HighWater: startingCash,
	}
}

// Equity values the portfolio at the given marks. Positions with no mark
// fall back to their average entry.
func (p *Portfolio) Equity(marks map[string]float64) float64 {
	eq := p.Cash
	for sym, pos := range p.Positions {
		mark, ok := marks[sym]
		if !ok {
			mark = pos.AvgEntry
		}
		eq += pos.Quantity * mark
	}
	return eq
}

// UnrealizedPL is the mark-to-market gain on one symbol's position.
func (p *Portfolio) UnrealizedPL(symbol string, mark float64) float64 {
	pos, ok := p.Positions[symbol]
	if !ok {
		return 0
	}
	return pos.Quantity * (mark - pos.AvgEntry)
}

// TotalFees sums fees across all fill entries in the ledger.
func (p *Portfolio) TotalFees() float64 {
	var total float64
	for _, e := range p.ledger {
		if e.Kind == journal.KindFill {
			total += e.Fee
		}
	}
	return total
}

// Ledger returns a copy of the ledger, safe to hand out while the broker
// keeps trading.
func (p *Portfolio) Ledger() []journal.Entry {
	out := make([]journal.Entry, len(p.ledger))
	copy(out, p.ledger)
	return out
}

func (p *Portfolio) appendEntry(e journal.Entry) journal.Entry {
	p.nextSeq++
	e.Seq = p.nextSeq
	p.ledger = append(p.ledger, e)
	return e
}

// applyFill moves cash and updates the position for an executed order
// using average-cost accounting, returning the realized PnL booked by this
// fill (fees always reduce it at the fill that pays them).
//
// Additions reweight the average entry. Reductions realize
// (price - avg) * closedQty, sign-adjusted for shorts. A reduction that
// crosses through zero realizes the closed portion at the old average and
// opens the remainder at the fill price.
func (p *Portfolio) applyFill(symbol string, side broker.Side, qty, price, fee float64) float64 {
	if side == broker.Buy {
		p.Cash -= price*qty + fee
	} else {
		p.Cash += price*qty - fee
	}

	pos := p.Positions[symbol]
	pos.Symbol = symbol
	cur := pos.Quantity
	delta := side.SignedQty(qty)
	realized := -fee

	switch {
	case cur == 0 || sameSign(cur, delta):
		total := math.Abs(cur) + qty
		pos.AvgEntry = (pos.AvgEntry*math.Abs(cur) + price*qty) / total
		pos.Quantity = cur + delta

	case qty <= math.Abs(cur)+qtyEps:
		// plain reduction, possibly to flat
		closed := math.Min(qty, math.Abs(cur))
		realized += (price - pos.AvgEntry) * closed * sign(cur)
		pos.Quantity = cur + delta

	default:
		// flip: close everything at the old average, open the rest at
		// the fill price
		closed := math.Abs(cur)
		realized += (price - pos.AvgEntry) * closed * sign(cur)
		pos.Quantity = cur + delta
		pos.AvgEntry = price
	}

	if math.Abs(pos.Quantity) < qtyEps {
		delete(p.Positions, symbol)
	} else {
		p.Positions[symbol] = pos
	}

	p.Realized += realized
	return realized
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
