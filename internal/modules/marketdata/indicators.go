package marketdata

import (
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/alphatrader/alphatrader/internal/domain"
)

// IndicatorSet is the compact technical summary handed to the strategy
// oracle alongside the raw quote.
type IndicatorSet struct {
	SMA5       float64 `json:"sma5,omitempty"`
	SMA20      float64 `json:"sma20,omitempty"`
	RSI14      float64 `json:"rsi14,omitempty"`
	TrendSlope float64 `json:"trendSlope,omitempty"`
	Volatility float64 `json:"volatility,omitempty"`
	Bars       int     `json:"bars"`
}

// ComputeIndicators derives the indicator set from daily bars, oldest first.
// Indicators whose lookback exceeds the available history stay zero.
func ComputeIndicators(bars []domain.KlineBar) IndicatorSet {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	set := IndicatorSet{Bars: len(bars)}

	if len(closes) >= 5 {
		sma := talib.Sma(closes, 5)
		set.SMA5 = sma[len(sma)-1]
	}
	if len(closes) >= 20 {
		sma := talib.Sma(closes, 20)
		set.SMA20 = sma[len(sma)-1]
	}
	if len(closes) >= 15 {
		rsi := talib.Rsi(closes, 14)
		set.RSI14 = rsi[len(rsi)-1]
	}
	if len(closes) >= 2 {
		xs := make([]float64, len(closes))
		for i := range xs {
			xs[i] = float64(i)
		}
		_, slope := stat.LinearRegression(xs, closes, nil, false)
		set.TrendSlope = slope
		set.Volatility = stat.StdDev(closes, nil)
	}
	return set
}
