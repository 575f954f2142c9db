package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/rustyeddy/papertrader/market"
)

func testCandles(n int) []market.Candle {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, n)
	for i := range out {
		c := 100.0 + float64(i)
		out[i] = market.Candle{
			Open: c, High: c + 1, Low: c - 1, Close: c,
			Time: start.Add(time.Duration(i) * time.Minute), Volume: 1000,
		}
	}
	return out
}

func TestReplayFeedGrowsWindow(t *testing.T) {
	f := NewReplayFeed(map[string][]market.Candle{"BTC/USDT": testCandles(3)})
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		snap, err := f.Fetch(ctx, "BTC/USDT", "1m")
		require.NoError(t, err)
		assert.Len(t, snap.Candles, want)
	}

	_, err := f.Fetch(ctx, "BTC/USDT", "1m")
	assert.ErrorIs(t, err, ErrUnavailable, "exhausted symbol")

	_, err = f.Fetch(ctx, "NOPE/USDT", "1m")
	assert.ErrorIs(t, err, ErrUnavailable, "unknown symbol")
}

func TestReplayFeedMinWindow(t *testing.T) {
	f := NewReplayFeed(map[string][]market.Candle{"BTC/USDT": testCandles(5)})
	f.MinWindow = 3

	snap, err := f.Fetch(context.Background(), "BTC/USDT", "1m")
	require.NoError(t, err)
	assert.Len(t, snap.Candles, 3, "first fetch returns the warmup window")
}

const sampleCSV = `time,open,high,low,close,volume
2024-03-01T00:00:00Z,100,101,99,100.5,1500
2024-03-01T00:01:00Z,100.5,102,100,101.5,1800
`

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

	candles, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, 1800.0, candles[1].Volume)
	assert.True(t, candles[1].Time.After(candles[0].Time))
}

func TestLoadCSVUnixTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte("1709251200,100,101,99,100.5,1500\n"), 0644))

	candles, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, time.Unix(1709251200, 0).UTC(), candles[0].Time)
}

func TestLoadCSVCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv.xz")

	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := xz.NewWriter(f)
	require.NoError(t, err)
	_, err = w.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	candles, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Len(t, candles, 2)
}

func TestLoadCSVBadData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte("not-a-time,1,2,3,4,5\n"), 0644))

	_, err := LoadCSV(path)
	assert.Error(t, err)
}
