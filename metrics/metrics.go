// Package metrics computes recap statistics purely from the ledger and
// starting cash, so a report can be rebuilt from a persisted journal with
// no access to live broker state.
package metrics

import (
	"math"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
)

type Metrics struct {
	TotalPnL     float64
	FeeDrag      float64
	SlippageDrag float64
	MaxDrawdown  float64
	WinRate      float64
	SharpeLike   float64
	Fills        int
	Rejections   int
}

// EquityCurve replays fills against cash plus mark-to-market positions,
// marking each symbol at its latest fill price. The first point is the
// starting cash; one point follows per fill.
func EquityCurve(ledger []journal.Entry, startingCash float64) []float64 {
	cash := startingCash
	qty := make(map[string]float64)
	marks := make(map[string]float64)

	curve := []float64{startingCash}
	for _, e := range ledger {
		if e.Kind != journal.KindFill {
			continue
		}
		if e.Side == broker.Buy {
			cash -= e.Price*e.Quantity + e.Fee
		} else {
			cash += e.Price*e.Quantity - e.Fee
		}
		qty[e.Symbol] += e.SignedQty()
		marks[e.Symbol] = e.Price

		eq := cash
		for sym, q := range qty {
			eq += q * marks[sym]
		}
		curve = append(curve, eq)
	}
	return curve
}

// MaxDrawdown is the largest peak-to-trough decline as a fraction of the
// peak, over the given equity curve.
func MaxDrawdown(curve []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Summarize reduces a ledger to its headline numbers.
func Summarize(ledger []journal.Entry, startingCash float64) Metrics {
	m := Metrics{}

	qty := make(map[string]float64)
	wins, closes := 0, 0

	for _, e := range ledger {
		switch e.Kind {
		case journal.KindRejection:
			m.Rejections++
		case journal.KindFill:
			m.Fills++
			m.FeeDrag += e.Fee
			m.SlippageDrag += e.Slippage * e.Quantity

			before := qty[e.Symbol]
			after := before + e.SignedQty()
			qty[e.Symbol] = after
			// A fill realizes PnL when it shrinks the position or flips it
			// through zero; both count toward the win rate.
			if math.Abs(after) < math.Abs(before) || before*after < 0 {
				closes++
				if e.RealizedPL > 0 {
					wins++
				}
			}
		}
	}
	if closes > 0 {
		m.WinRate = float64(wins) / float64(closes)
	}

	curve := EquityCurve(ledger, startingCash)
	m.TotalPnL = curve[len(curve)-1] - startingCash
	m.MaxDrawdown = MaxDrawdown(curve)
	m.SharpeLike = sharpeLike(curve)

	return m
}

// sharpeLike is the annualized mean/stddev of per-fill equity returns.
// Zero when the curve is too short or flat to say anything.
func sharpeLike(curve []float64) float64 {
	if len(curve) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 {
			return 0
		}
		rets = append(rets, curve[i]/curve[i-1]-1)
	}

	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	var variance float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets))
	sd := math.Sqrt(variance)
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(252)
}
