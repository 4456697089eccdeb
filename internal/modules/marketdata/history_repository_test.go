package marketdata

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphatrader/alphatrader/internal/domain"
	testutil "github.com/alphatrader/alphatrader/internal/testing"
)

func TestHistoryRepository_UpsertAndRecent(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "market")
	defer cleanup()
	repo := NewHistoryRepository(db.Conn(), zerolog.Nop())

	bars := make([]domain.KlineBar, 0, 10)
	for i := 1; i <= 10; i++ {
		bars = append(bars, domain.KlineBar{
			Date:  fmt.Sprintf("2026-08-%02d", i),
			Open:  100 + float64(i),
			Close: 101 + float64(i),
			High:  102 + float64(i),
			Low:   99 + float64(i),
		})
	}
	require.NoError(t, repo.Upsert("600519", bars))

	recent, err := repo.Recent("600519", 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, "2026-08-06", recent[0].Date, "window holds the most recent bars")
	assert.Equal(t, "2026-08-10", recent[4].Date, "ascending date order")

	// Last write wins per (symbol, date)
	require.NoError(t, repo.Upsert("600519", []domain.KlineBar{{Date: "2026-08-10", Close: 999}}))
	recent, err = repo.Recent("600519", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 999.0, recent[0].Close)
}

func TestHistoryRepository_SymbolsIsolated(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "market")
	defer cleanup()
	repo := NewHistoryRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, repo.Upsert("600519", []domain.KlineBar{{Date: "2026-08-28", Close: 1650}}))
	require.NoError(t, repo.Upsert("000001", []domain.KlineBar{{Date: "2026-08-28", Close: 10.3}}))

	bars, err := repo.Recent("000001", 10)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 10.3, bars[0].Close)
}

func TestHistoryRepository_EmptyUpsertNoop(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "market")
	defer cleanup()
	repo := NewHistoryRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, repo.Upsert("600519", nil))
	bars, err := repo.Recent("600519", 10)
	require.NoError(t, err)
	assert.Empty(t, bars)
}
