package sim

import (
	"math/rand"
	"time"

	"github.com/rustyeddy/papertrader/broker"
)

// FeeModel charges a flat rate on executed notional. Maker pricing is kept
// for completeness; the simulator fills everything as taker.
type FeeModel struct {
	TakerRate float64
	MakerRate float64
}

// Fee returns the charge for an execution at price * qty notional.
func (m FeeModel) Fee(notional float64) float64 {
	if notional < 0 {
		notional = -notional
	}
	return notional * m.TakerRate
}

// SlippageModel prices the adverse deviation between requested and
// executed price. Deterministic unless constructed with a jitter term,
// which samples from a seeded source so backtests stay reproducible.
type SlippageModel struct {
	Bps       float64 // base adverse slippage, basis points
	ImpactBps float64 // additional bps per 1x of bar volume consumed
	JitterBps float64 // max random extra bps, 0 disables
	rng       *rand.Rand
}

func NewSlippageModel(bps, impactBps, jitterBps float64, seed int64) SlippageModel {
	m := SlippageModel{Bps: bps, ImpactBps: impactBps, JitterBps: jitterBps}
	if jitterBps > 0 {
		m.rng = rand.New(rand.NewSource(seed))
	}
	return m
}

// AdverseBps returns total slippage in basis points for an order of qty
// against a bar that traded barVolume. Always >= 0; the caller applies the
// side (cost up for buys, proceeds down for sells).
func (m SlippageModel) AdverseBps(qty, barVolume float64) float64 {
	bps := m.Bps
	if m.ImpactBps > 0 && barVolume > 0 {
		bps += m.ImpactBps * (qty / barVolume)
	}
	if m.rng != nil {
		bps += m.rng.Float64() * m.JitterBps
	}
	return bps
}

// Apply returns the execution price for a side given the reference price.
func (m SlippageModel) Apply(ref float64, side broker.Side, qty, barVolume float64) float64 {
	bps := m.AdverseBps(qty, barVolume)
	if bps == 0 {
		return ref
	}
	slip := ref * bps / 10000
	if side == broker.Buy {
		return ref + slip
	}
	return ref - slip
}

// LatencyModel delays execution timestamps. The delay orders the ledger;
// it never re-prices beyond what the slippage model already did.
type LatencyModel struct {
	Fixed  time.Duration
	Jitter time.Duration // max random extra delay, 0 disables
	rng    *rand.Rand
}

func NewLatencyModel(fixed, jitter time.Duration, seed int64) LatencyModel {
	m := LatencyModel{Fixed: fixed, Jitter: jitter}
	if jitter > 0 {
		m.rng = rand.New(rand.NewSource(seed))
	}
	return m
}

func (m LatencyModel) Delay() time.Duration {
	d := m.Fixed
	if m.rng != nil {
		d += time.Duration(m.rng.Int63n(int64(m.Jitter) + 1))
	}
	return d
}
