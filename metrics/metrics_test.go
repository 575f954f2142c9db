package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
)

func fill(sym string, side broker.Side, qty, price, fee, slip, realized float64) journal.Entry {
	return journal.Entry{
		Kind: journal.KindFill, Symbol: sym, Side: side,
		Quantity: qty, Price: price, Fee: fee, Slippage: slip,
		RealizedPL: realized, Time: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func rejection(sym string, reason broker.RejectReason) journal.Entry {
	return journal.Entry{Kind: journal.KindRejection, Symbol: sym, Reason: reason}
}

func TestMaxDrawdownSpecExample(t *testing.T) {
	dd := MaxDrawdown([]float64{10000, 10500, 9800, 10200})
	assert.InDelta(t, 700.0/10500.0, dd, 1e-9, "(10500-9800)/10500")
}

func TestMaxDrawdownMonotonicCurve(t *testing.T) {
	assert.Equal(t, 0.0, MaxDrawdown([]float64{100, 110, 120}))
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}

func TestEquityCurveReplay(t *testing.T) {
	ledger := []journal.Entry{
		fill("BTC", broker.Buy, 10, 100, 1, 0, -1),
		fill("BTC", broker.Sell, 10, 110, 1.1, 0, 98.9),
	}
	curve := EquityCurve(ledger, 10000)
	require.Len(t, curve, 3)
	assert.InDelta(t, 10000, curve[0], 1e-9)
	// cash 8999 + 10 units marked at 100
	assert.InDelta(t, 9999, curve[1], 1e-9)
	// cash 8999 + 1100 - 1.1, flat
	assert.InDelta(t, 10097.9, curve[2], 1e-9)
}

func TestSummarize(t *testing.T) {
	ledger := []journal.Entry{
		fill("BTC", broker.Buy, 10, 100, 1, 0.05, -1),
		rejection("BTC", broker.ReasonInsufficientFunds),
		fill("BTC", broker.Sell, 10, 110, 1.1, 0.05, 98.9),
		fill("ETH", broker.Buy, 2, 2000, 4, 0, -4),
		fill("ETH", broker.Sell, 2, 1900, 3.8, 0, -203.8),
	}

	m := Summarize(ledger, 10000)
	assert.Equal(t, 4, m.Fills)
	assert.Equal(t, 1, m.Rejections)
	assert.InDelta(t, 1+1.1+4+3.8, m.FeeDrag, 1e-9)
	assert.InDelta(t, 0.05*10+0.05*10, m.SlippageDrag, 1e-9)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9, "one winning close of two")

	// final equity: 10000 - 1001 + 1098.9 - 4004 + 3796.2 = 9890.1
	assert.InDelta(t, -109.9, m.TotalPnL, 1e-9)
	assert.Greater(t, m.MaxDrawdown, 0.0)
}

func TestSummarizeWinRateCountsFlips(t *testing.T) {
	// Selling 15 against a long 10 realizes the closed leg and reopens
	// short 5; that fill is a close for win-rate purposes even though the
	// absolute position grew smaller only through zero.
	ledger := []journal.Entry{
		fill("BTC", broker.Buy, 10, 100, 0, 0, 0),
		fill("BTC", broker.Sell, 15, 110, 0, 0, 100),
		fill("BTC", broker.Buy, 5, 115, 0, 0, -25),
	}

	m := Summarize(ledger, 10000)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9, "winning flip, losing short cover")
}

func TestSummarizeConservation(t *testing.T) {
	// Total PnL from the replay must equal the sum of realized PnL once
	// every position is closed (no open marks left).
	ledger := []journal.Entry{
		fill("BTC", broker.Buy, 5, 100, 0.5, 0, -0.5),
		fill("BTC", broker.Sell, 5, 120, 0.6, 0, 99.4),
	}
	m := Summarize(ledger, 10000)
	var realized float64
	for _, e := range ledger {
		realized += e.RealizedPL
	}
	assert.InDelta(t, realized, m.TotalPnL, 1e-9)
}

func TestSummarizeEmptyLedger(t *testing.T) {
	m := Summarize(nil, 10000)
	assert.Equal(t, 0.0, m.TotalPnL)
	assert.Equal(t, 0.0, m.WinRate)
	assert.Equal(t, 0.0, m.SharpeLike)
	assert.Equal(t, 0, m.Fills)
}
