package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func candlesAt(closes []float64, start time.Time) []Candle {
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Time:   start.Add(time.Duration(i) * time.Minute),
			Volume: 1000,
		}
	}
	return out
}

func TestSnapshotLastAndCloses(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewSnapshot("BTC/USDT", "1m", candlesAt([]float64{100, 110, 105}, start))

	last, ok := s.Last()
	assert.True(t, ok)
	assert.Equal(t, 105.0, last.Close)
	assert.Equal(t, []float64{100, 110, 105}, s.Closes())
}

func TestSnapshotCopiesInput(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	src := candlesAt([]float64{100, 110}, start)
	s := NewSnapshot("BTC/USDT", "1m", src)

	src[0].Close = 999
	assert.Equal(t, 100.0, s.Candles[0].Close, "snapshot must not alias the producer's slice")
}

func TestSnapshotValidate(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		s := NewSnapshot("ETH/USDT", "5m", candlesAt([]float64{1, 2, 3}, start))
		assert.NoError(t, s.Validate())
	})

	t.Run("empty", func(t *testing.T) {
		s := Snapshot{Symbol: "ETH/USDT"}
		assert.ErrorIs(t, s.Validate(), ErrEmptySnapshot)
	})

	t.Run("missing symbol", func(t *testing.T) {
		s := NewSnapshot("", "5m", candlesAt([]float64{1}, start))
		assert.Error(t, s.Validate())
	})

	t.Run("out of order", func(t *testing.T) {
		cs := candlesAt([]float64{1, 2}, start)
		cs[1].Time = cs[0].Time
		s := Snapshot{Symbol: "ETH/USDT", Candles: cs}
		assert.Error(t, s.Validate())
	})
}
