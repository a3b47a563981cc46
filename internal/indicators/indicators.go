// Package indicators computes technical-analysis scores over plain float64
// price/volume series. All prices in this project are binary64, so the
// decimal conversion helpers the teacher carried here are gone; see
// DESIGN.md for the shopspring/decimal drop.
package indicators

// RSI calculates Relative Strength Index
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50 // Neutral if not enough data
	}

	gains := make([]float64, 0)
	losses := make([]float64, 0)

	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	if len(gains) < period {
		return 50
	}

	// Calculate initial average gain/loss
	avgGain := average(gains[:period])
	avgLoss := average(losses[:period])

	// Smooth with remaining data
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))

	return rsi
}

// Momentum calculates price momentum over a period
func Momentum(prices []float64, period int) float64 {
	if len(prices) <= period {
		return 0
	}

	current := prices[len(prices)-1]
	previous := prices[len(prices)-1-period]

	if previous == 0 {
		return 0
	}

	return ((current - previous) / previous) * 100
}

// MomentumScore returns a normalized momentum score (-30 to +30)
func MomentumScore(prices []float64, period int) float64 {
	mom := Momentum(prices, period)

	// Normalize: ±1% momentum = ±30 score
	score := mom * 30

	// Clamp to range
	if score > 30 {
		score = 30
	} else if score < -30 {
		score = -30
	}

	return score
}

// RSIScore converts RSI to trading signal (-20 to +20)
func RSIScore(rsi float64) float64 {
	// RSI < 30: Oversold, bullish signal
	// RSI > 70: Overbought, bearish signal
	// RSI 40-60: Neutral

	if rsi < 30 {
		// Strong bullish: 0-30 RSI maps to +10 to +20
		return 10 + ((30-rsi)/30)*10
	} else if rsi < 40 {
		// Mild bullish: 30-40 RSI maps to 0 to +10
		return ((40 - rsi) / 10) * 10
	} else if rsi > 70 {
		// Strong bearish: 70-100 RSI maps to -10 to -20
		return -10 - ((rsi-70)/30)*10
	} else if rsi > 60 {
		// Mild bearish: 60-70 RSI maps to 0 to -10
		return -((rsi - 60) / 10) * 10
	}

	// Neutral zone
	return 0
}

// OrderBookImbalanceScore calculates order book imbalance signal (-20 to +20)
func OrderBookImbalanceScore(bidVolume, askVolume float64) float64 {
	if askVolume == 0 {
		return 20
	}
	if bidVolume == 0 {
		return -20
	}

	ratio := bidVolume / askVolume

	// Normalize: ratio 1.5 = +20, ratio 0.5 = -20
	if ratio > 1 {
		score := (ratio - 1) * 40
		if score > 20 {
			score = 20
		}
		return score
	} else {
		score := (1 - ratio) * 40
		if score > 20 {
			score = 20
		}
		return -score
	}
}

func average(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}
