package mockfeed

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphatrader/alphatrader/internal/modules/marketdata"
)

func TestFetchCatalogPage_Pages(t *testing.T) {
	c := NewClient(42, marketdata.NewTrendBook(), zerolog.Nop())

	page1, total, err := c.FetchCatalogPage(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 15, total)
	assert.Len(t, page1, 10)

	page2, _, err := c.FetchCatalogPage(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Len(t, page2, 5)

	beyond, _, err := c.FetchCatalogPage(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestFetchQuotes_NeverFails(t *testing.T) {
	c := NewClient(42, marketdata.NewTrendBook(), zerolog.Nop())

	quotes, err := c.FetchQuotes(context.Background(), []string{"600519", "999999"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, "600519", quotes[0].Symbol)
	assert.Greater(t, quotes[0].Price, 0.0)

	// Unknown symbols are spawned, not rejected
	assert.Equal(t, "999999", quotes[1].Symbol)
	assert.Equal(t, "Stock-999999", quotes[1].Name)
	assert.Greater(t, quotes[1].Price, 0.0)
}

func TestFetchQuotes_Deterministic(t *testing.T) {
	a := NewClient(7, marketdata.NewTrendBook(), zerolog.Nop())
	b := NewClient(7, marketdata.NewTrendBook(), zerolog.Nop())

	qa, err := a.FetchQuotes(context.Background(), []string{"600519"})
	require.NoError(t, err)
	qb, err := b.FetchQuotes(context.Background(), []string{"600519"})
	require.NoError(t, err)

	assert.Equal(t, qa[0].Price, qb[0].Price)
}

func TestFetchQuotes_WalkMovesPrices(t *testing.T) {
	c := NewClient(42, marketdata.NewTrendBook(), zerolog.Nop())

	first, err := c.FetchQuotes(context.Background(), []string{"000001"})
	require.NoError(t, err)
	second, err := c.FetchQuotes(context.Background(), []string{"000001"})
	require.NoError(t, err)

	assert.NotEqual(t, first[0].Price, second[0].Price)
	assert.Len(t, second[0].RecentTrend, 2)
}
