package strategies

import "github.com/rustyeddy/papertrader/market"

// ema returns the exponential moving average series of values.
func ema(values []float64, period int) []float64 {
	if period <= 0 || len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	k := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// rsi returns the last Wilder RSI value over closes, 50 when there is not
// enough data to say anything.
func rsi(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// atr returns the last average true range over the candles, 0 when there
// is not enough data.
func atr(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		h, l, pc := candles[i].High, candles[i].Low, candles[i-1].Close
		tr := h - l
		if d := abs(h - pc); d > tr {
			tr = d
		}
		if d := abs(l - pc); d > tr {
			tr = d
		}
		trs = append(trs, tr)
	}
	// Wilder smoothing
	sum := 0.0
	for _, tr := range trs[:period] {
		sum += tr
	}
	a := sum / float64(period)
	for _, tr := range trs[period:] {
		a = (a*float64(period-1) + tr) / float64(period)
	}
	return a
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
