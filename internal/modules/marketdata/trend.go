package marketdata

import "sync"

// trendDepth bounds the per-symbol trend series to the most recent
// observations, FIFO eviction.
const trendDepth = 30

// TrendBook keeps a short price series per symbol so providers that don't
// supply a native trend can synthesize one. Safe for concurrent use.
type TrendBook struct {
	mu     sync.Mutex
	series map[string][]float64
}

// NewTrendBook creates an empty trend book.
func NewTrendBook() *TrendBook {
	return &TrendBook{series: make(map[string][]float64)}
}

// Observe appends a price observation for symbol and returns a copy of the
// current series. A non-positive price (suspended or invalid upstream data)
// extends the previous value instead of recording a zero.
func (b *TrendBook) Observe(symbol string, price float64) []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.series[symbol]
	if price > 0 {
		s = append(s, price)
	} else {
		last := 0.0
		if len(s) > 0 {
			last = s[len(s)-1]
		}
		s = append(s, last)
	}
	if len(s) > trendDepth {
		s = s[len(s)-trendDepth:]
	}
	b.series[symbol] = s

	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// Get returns a copy of the current series for symbol, or nil.
func (b *TrendBook) Get(symbol string) []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.series[symbol]
	if !ok {
		return nil
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// Reset drops all recorded series.
func (b *TrendBook) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.series = make(map[string][]float64)
}
