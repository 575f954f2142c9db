package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/engine"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/rustyeddy/papertrader/strategies"
)

func candlesAt(t0 time.Time, step time.Duration, closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			Open: c, High: c, Low: c, Close: c,
			Volume: 50000,
			Time:   t0.Add(time.Duration(i) * step),
		}
	}
	return out
}

func newRunner(t *testing.T, candles map[string][]market.Candle, scripts map[string][]strategies.Step, opts RunnerOptions, seed int64) *Runner {
	t.Helper()

	b := sim.NewBroker(sim.BrokerOptions{
		StartingCash: 10000,
		Fees:         sim.FeeModel{TakerRate: 0.001},
		Slippage:     sim.NewSlippageModel(2, 0, 3, seed),
	})

	strats := make(map[string]strategies.Strategy, len(candles))
	assets := make([]engine.Asset, 0, len(candles))
	script := strategies.NewScripted(scripts)
	for sym := range candles {
		strats[sym] = script
		assets = append(assets, engine.Asset{Symbol: sym, Timeframe: "1h"})
	}

	e, err := engine.New(engine.Config{
		Mode:       engine.Backtest(),
		Assets:     assets,
		Strategies: strats,
		Sizer:      risk.Sizer{RiskFraction: 0.1},
		Limits: risk.Limits{
			MaxPositionNotional: 1e9,
			MaxGrossExposure:    1e9,
		},
	}, b)
	require.NoError(t, err)

	return &Runner{Engine: e, Broker: b, Candles: candles, Options: opts}
}

func TestRunnerReplaysInTimestampOrder(t *testing.T) {
	t0 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	// BBB's bars are offset by 30m, so cycles interleave: AAA, BBB, AAA+?...
	candles := map[string][]market.Candle{
		"BBB-USD": candlesAt(t0.Add(30*time.Minute), time.Hour, 50, 51),
		"AAA-USD": candlesAt(t0, time.Hour, 100, 101),
	}
	scripts := map[string][]strategies.Step{
		"AAA-USD": {{Direction: strategies.Long, Strength: 1.0}},
		"BBB-USD": {{Direction: strategies.Long, Strength: 1.0}},
	}

	r := newRunner(t, candles, scripts, RunnerOptions{}, 1)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Bars)
	assert.Equal(t, 4, res.Cycles)
	assert.Equal(t, t0, res.Start)
	assert.Equal(t, t0.Add(90*time.Minute), res.End)

	ledger := r.Broker.Ledger()
	require.Len(t, ledger, 2)
	assert.Equal(t, "AAA-USD", ledger[0].Symbol)
	assert.Equal(t, "BBB-USD", ledger[1].Symbol)
	assert.True(t, !ledger[1].Time.Before(ledger[0].Time))
}

func TestRunnerTiedTimestampsShareOneCycle(t *testing.T) {
	t0 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := map[string][]market.Candle{
		"ZZZ-USD": candlesAt(t0, time.Hour, 10),
		"AAA-USD": candlesAt(t0, time.Hour, 10),
	}
	scripts := map[string][]strategies.Step{
		"AAA-USD": {{Direction: strategies.Long, Strength: 1.0}},
		"ZZZ-USD": {{Direction: strategies.Long, Strength: 1.0}},
	}

	r := newRunner(t, candles, scripts, RunnerOptions{}, 1)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Bars)
	assert.Equal(t, 1, res.Cycles)

	// Lexical order within the tied cycle.
	ledger := r.Broker.Ledger()
	require.Len(t, ledger, 2)
	assert.Equal(t, "AAA-USD", ledger[0].Symbol)
	assert.Equal(t, "ZZZ-USD", ledger[1].Symbol)
}

func TestRunnerDeterministicForSeed(t *testing.T) {
	t0 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 102, 99, 104, 101, 107, 103, 108}
	scripts := map[string][]strategies.Step{
		"BTC-USD": {
			{Direction: strategies.Long, Strength: 1.0},
			{Direction: strategies.Flat},
			{Direction: strategies.Long, Strength: 0.5},
			{Direction: strategies.Short, Strength: 1.0},
			{Direction: strategies.Flat},
			{Direction: strategies.Long, Strength: 0.8},
		},
	}

	run := func() (Result, []journal.Entry) {
		candles := map[string][]market.Candle{"BTC-USD": candlesAt(t0, time.Hour, closes...)}
		r := newRunner(t, candles, scripts, RunnerOptions{}, 42)
		res, err := r.Run(context.Background())
		require.NoError(t, err)
		return res, r.Broker.Ledger()
	}

	res1, ledger1 := run()
	res2, ledger2 := run()

	assert.Equal(t, res1.FinalCash, res2.FinalCash)
	assert.Equal(t, res1.FinalEquity, res2.FinalEquity)
	assert.Equal(t, res1.Metrics, res2.Metrics)

	require.Equal(t, len(ledger1), len(ledger2))
	for i := range ledger1 {
		assert.Equal(t, ledger1[i].Kind, ledger2[i].Kind, "entry %d", i)
		assert.Equal(t, ledger1[i].Quantity, ledger2[i].Quantity, "entry %d", i)
		assert.Equal(t, ledger1[i].Price, ledger2[i].Price, "entry %d", i)
		assert.Equal(t, ledger1[i].Fee, ledger2[i].Fee, "entry %d", i)
	}
}

func TestRunnerCloseEndFlattens(t *testing.T) {
	t0 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := map[string][]market.Candle{
		"BTC-USD": candlesAt(t0, time.Hour, 100, 110),
	}
	scripts := map[string][]strategies.Step{
		"BTC-USD": {{Direction: strategies.Long, Strength: 1.0}},
	}

	r := newRunner(t, candles, scripts, RunnerOptions{CloseEnd: true}, 7)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.Positions)
	assert.InDelta(t, res.FinalCash, res.FinalEquity, 1e-9)

	ledger := r.Broker.Ledger()
	require.NotEmpty(t, ledger)
	last := ledger[len(ledger)-1]
	assert.Equal(t, journal.KindFill, last.Kind)
	assert.Equal(t, "sell", last.Side.String())
}

func TestRunnerMinWindowDelaysSignals(t *testing.T) {
	t0 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := map[string][]market.Candle{
		"BTC-USD": candlesAt(t0, time.Hour, 100, 101, 102, 103),
	}
	// First script step should only fire once the window has 3 bars.
	scripts := map[string][]strategies.Step{
		"BTC-USD": {{Direction: strategies.Long, Strength: 1.0}},
	}

	r := newRunner(t, candles, scripts, RunnerOptions{MinWindow: 3}, 1)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Bars)
	assert.Equal(t, 2, res.Cycles)

	ledger := r.Broker.Ledger()
	require.Len(t, ledger, 1)
	// Third bar's close plus at most 5bps of slippage.
	assert.InDelta(t, 102.0, ledger[0].Price, 0.06, "fill uses the close of the third bar")
}

func TestRunnerWarmupBarsAreMarked(t *testing.T) {
	t0 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := map[string][]market.Candle{
		"BTC-USD": candlesAt(t0, time.Hour, 100, 101, 102),
	}
	scripts := map[string][]strategies.Step{
		"BTC-USD": {{Direction: strategies.Long, Strength: 1.0}},
	}

	// Window never fills, so no cycle runs, but each bar still updates
	// the broker's mark as it streams past.
	r := newRunner(t, candles, scripts, RunnerOptions{MinWindow: 5}, 1)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Bars)
	assert.Equal(t, 0, res.Cycles)
	assert.Empty(t, r.Broker.Ledger())
	assert.Equal(t, 102.0, r.Broker.Snapshot().Marks["BTC-USD"])
}

func TestRunnerRejectsBadInput(t *testing.T) {
	t0 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty dataset", func(t *testing.T) {
		r := newRunner(t, map[string][]market.Candle{
			"BTC-USD": candlesAt(t0, time.Hour, 100),
		}, nil, RunnerOptions{}, 1)
		r.Candles = map[string][]market.Candle{}
		_, err := r.Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("unordered candles", func(t *testing.T) {
		bars := candlesAt(t0, time.Hour, 100, 101)
		bars[0], bars[1] = bars[1], bars[0]
		r := newRunner(t, map[string][]market.Candle{
			"BTC-USD": candlesAt(t0, time.Hour, 100),
		}, nil, RunnerOptions{}, 1)
		r.Candles = map[string][]market.Candle{"BTC-USD": bars}
		_, err := r.Run(context.Background())
		assert.Error(t, err)
	})
}
