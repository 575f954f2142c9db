package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/market"
)

func snapFromCloses(symbol string, closes []float64) market.Snapshot {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	cs := make([]market.Candle, len(closes))
	for i, c := range closes {
		cs[i] = market.Candle{
			Open: c, High: c * 1.01, Low: c * 0.99, Close: c,
			Time:   start.Add(time.Duration(i) * time.Minute),
			Volume: 1000,
		}
	}
	return market.NewSnapshot(symbol, "1m", cs)
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestByName(t *testing.T) {
	t.Run("known", func(t *testing.T) {
		for _, name := range []string{"noop", "ema-cross", "momentum"} {
			s, err := ByName(name, Params{})
			require.NoError(t, err, name)
			assert.NotNil(t, s)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := ByName("does-not-exist", Params{})
		assert.Error(t, err)
	})

	t.Run("registered extension", func(t *testing.T) {
		Register("custom-test", func(Params) Strategy { return Noop{} })
		s, err := ByName("custom-test", Params{})
		require.NoError(t, err)
		assert.Equal(t, "noop", s.Name())
	})
}

func TestNoopAlwaysFlat(t *testing.T) {
	sig, err := Noop{}.Signal(snapFromCloses("BTC/USDT", ramp(10, 100, 1)))
	require.NoError(t, err)
	assert.Equal(t, Flat, sig.Direction)
	assert.Equal(t, "BTC/USDT", sig.Symbol)
}

func TestEmaCrossUptrend(t *testing.T) {
	strat := NewEmaCross(Params{Fast: 5, Slow: 10})

	// steady uptrend: fast EMA above slow, RSI saturated high
	sig, err := strat.Signal(snapFromCloses("BTC/USDT", ramp(60, 100, 1)))
	require.NoError(t, err)
	assert.Equal(t, Long, sig.Direction)
	assert.Equal(t, 0.65, sig.Strength)
	assert.Greater(t, sig.Stop, 0.0)
	assert.Less(t, sig.Stop, 159.0, "stop below the last close")
	assert.Greater(t, sig.Target, 159.0)
}

func TestEmaCrossDowntrend(t *testing.T) {
	strat := NewEmaCross(Params{Fast: 5, Slow: 10})

	sig, err := strat.Signal(snapFromCloses("BTC/USDT", ramp(60, 200, -1)))
	require.NoError(t, err)
	assert.Equal(t, Short, sig.Direction)
	assert.Greater(t, sig.Stop, 141.0, "stop above the last close")
}

func TestEmaCrossWarmup(t *testing.T) {
	strat := NewEmaCross(Params{Fast: 5, Slow: 10})

	sig, err := strat.Signal(snapFromCloses("BTC/USDT", ramp(5, 100, 1)))
	require.NoError(t, err)
	assert.Equal(t, Flat, sig.Direction)
	assert.Equal(t, 0.0, sig.Strength)
}

func TestMomentumDirectionAndClamp(t *testing.T) {
	strat := NewMomentum(Params{Lookback: 5})

	t.Run("long on strong deviation", func(t *testing.T) {
		sig, err := strat.Signal(snapFromCloses("A", []float64{100, 100, 100, 100, 150}))
		require.NoError(t, err)
		assert.Equal(t, Long, sig.Direction)
		assert.Equal(t, 1.0, sig.Strength, "strength clamps to 1")
	})

	t.Run("short on decline", func(t *testing.T) {
		sig, err := strat.Signal(snapFromCloses("A", []float64{100, 100, 100, 100, 50}))
		require.NoError(t, err)
		assert.Equal(t, Short, sig.Direction)
		assert.Equal(t, 1.0, sig.Strength)
	})

	t.Run("flat without data", func(t *testing.T) {
		sig, err := strat.Signal(snapFromCloses("A", []float64{100, 101}))
		require.NoError(t, err)
		assert.Equal(t, Flat, sig.Direction)
	})
}

func TestScriptedSequence(t *testing.T) {
	strat := NewScripted(map[string][]Step{
		"BTC/USDT": {
			{Direction: Long, Strength: 1.0},
			{Direction: Flat},
			{Direction: Long, Strength: 0.5},
		},
	})

	snap := snapFromCloses("BTC/USDT", ramp(3, 100, 1))
	want := []struct {
		dir      Direction
		strength float64
	}{
		{Long, 1.0}, {Flat, 0}, {Long, 0.5}, {Flat, 0}, {Flat, 0},
	}
	for i, w := range want {
		sig, err := strat.Signal(snap)
		require.NoError(t, err)
		assert.Equal(t, w.dir, sig.Direction, "step %d", i)
		assert.Equal(t, w.strength, sig.Strength, "step %d", i)
	}

	// other symbols have no script and stay flat
	sig, err := strat.Signal(snapFromCloses("ETH/USDT", ramp(3, 100, 1)))
	require.NoError(t, err)
	assert.Equal(t, Flat, sig.Direction)
}
