package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/papertrader/broker"
)

// Intent is a sized, not yet risk-checked order proposal.
type Intent struct {
	Symbol    string
	Side      broker.Side
	Quantity  float64
	Price     float64 // reference price used for notional math
	SignalRef string
}

// Decision is the evaluator's verdict. Quantity is never larger than the
// requested quantity; with Limits.AllowReduce it may be smaller.
type Decision struct {
	Approved bool
	Quantity float64
	Reason   broker.RejectReason
	Detail   string
}

func reject(reason broker.RejectReason, format string, args ...any) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Evaluate checks an intent against the limits given a consistent snapshot
// of portfolio state. It is a pure function: all state comes in through the
// arguments, which is what makes backtest replay deterministic.
//
// Snapshot equity and marks must already include every fill approved
// earlier in the same iteration; the engine re-snapshots between orders.
func Evaluate(intent Intent, snap broker.PortfolioSnapshot, limits Limits) Decision {
	if intent.Quantity <= 0 {
		return reject(broker.ReasonZeroQuantity, "quantity %.8f must be positive", intent.Quantity)
	}
	if intent.Price <= 0 {
		return reject(broker.ReasonLimitExceeded, "no reference price for %s", intent.Symbol)
	}

	if limits.MaxDrawdownPct > 0 && snap.HighWater > 0 {
		dd := (snap.HighWater - snap.Equity) / snap.HighWater
		if dd >= limits.MaxDrawdownPct {
			return reject(broker.ReasonLimitExceeded,
				"drawdown %.2f%% breaches limit %.2f%%", 100*dd, 100*limits.MaxDrawdownPct)
		}
	}

	if limits.MaxOrdersPerCycle > 0 && snap.ApprovedThisCycle >= limits.MaxOrdersPerCycle {
		return reject(broker.ReasonLimitExceeded,
			"order cap %d reached this iteration", limits.MaxOrdersPerCycle)
	}

	qty := intent.Quantity
	cur := snap.PositionQty(intent.Symbol)
	signed := intent.Side.SignedQty(1) // +1 buy, -1 sell

	// Short guard: a sell may flatten a long but not cross below zero
	// unless shorts are enabled.
	if !limits.AllowShort && cur+intent.Side.SignedQty(qty) < 0 {
		if !limits.AllowReduce || cur <= 0 {
			return reject(broker.ReasonShortDisabled,
				"sell %.8f would short %s (held %.8f)", qty, intent.Symbol, cur)
		}
		qty = cur // flatten only
	}

	newQty := cur + intent.Side.SignedQty(qty)

	// Orders that shrink the position free up risk; only growth is
	// checked against the notional limits.
	if math.Abs(newQty) > math.Abs(cur) {
		allowed := math.Inf(1) // max permissible |position| after fill, in units
		if limits.MaxPositionNotional > 0 {
			allowed = math.Min(allowed, limits.MaxPositionNotional/intent.Price)
		}
		if limits.MaxGrossExposure > 0 {
			others := snap.GrossExposure() - snap.Notional(intent.Symbol)
			room := limits.MaxGrossExposure - others
			if room < 0 {
				room = 0
			}
			allowed = math.Min(allowed, room/intent.Price)
		}

		if math.Abs(newQty) > allowed {
			if !limits.AllowReduce {
				return reject(broker.ReasonLimitExceeded,
					"%s position %.8f units would exceed permitted %.8f", intent.Symbol, math.Abs(newQty), allowed)
			}
			// Largest whole quantity keeping |cur + signed*q| <= allowed.
			maxQty := math.Floor(allowed - signed*cur)
			if maxQty > intent.Quantity {
				maxQty = intent.Quantity
			}
			if maxQty <= 0 || maxQty < limits.MinQuantity {
				return reject(broker.ReasonLimitExceeded,
					"%s reduced quantity %.8f below tradable minimum", intent.Symbol, maxQty)
			}
			qty = maxQty
		}
	}

	if qty <= 0 {
		return reject(broker.ReasonZeroQuantity, "nothing left to trade after reduction")
	}
	detail := ""
	if qty != intent.Quantity {
		detail = fmt.Sprintf("reduced from %.8f to %.8f", intent.Quantity, qty)
	}
	return Decision{Approved: true, Quantity: qty, Detail: detail}
}
