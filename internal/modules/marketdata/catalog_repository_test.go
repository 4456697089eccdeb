package marketdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphatrader/alphatrader/internal/domain"
	testutil "github.com/alphatrader/alphatrader/internal/testing"
)

func newCatalogRepo(t *testing.T) (*CatalogRepository, func()) {
	t.Helper()
	db, cleanup := testutil.NewTestDB(t, "market")
	return NewCatalogRepository(db.Conn(), zerolog.Nop()), cleanup
}

func TestReplaceAll_RoundTripsEntriesAndMeta(t *testing.T) {
	repo, cleanup := newCatalogRepo(t)
	defer cleanup()

	ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	in := []domain.CatalogEntry{
		{Symbol: "600519", MarketID: 1, Name: "贵州茅台", Price: 1650.5, ChangePct: 1.2, Volume: 32000, PE: 28.4, Trend: []float64{1648, 1649.2, 1650.5}},
		{Symbol: "000001", MarketID: 0, Name: "平安银行", Price: 10.3},
	}
	require.NoError(t, repo.ReplaceAll(in, ts, "eastmoney"))

	all, err := repo.All()
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Sorted by symbol
	assert.Equal(t, "000001", all[0].Symbol)
	got := all[1]
	assert.Equal(t, "贵州茅台", got.Name)
	assert.Equal(t, 1650.5, got.Price)
	assert.Equal(t, []float64{1648, 1649.2, 1650.5}, got.Trend)
	assert.Equal(t, ts.Unix(), got.LastUpdated.Unix())

	metaTS, source, err := repo.Meta()
	require.NoError(t, err)
	assert.Equal(t, ts.Unix(), metaTS.Unix())
	assert.Equal(t, "eastmoney", source)
}

func TestReplaceAll_DropsDelistedSymbols(t *testing.T) {
	repo, cleanup := newCatalogRepo(t)
	defer cleanup()

	require.NoError(t, repo.ReplaceAll([]domain.CatalogEntry{
		{Symbol: "600519", Name: "贵州茅台", Price: 1650},
		{Symbol: "000001", Name: "平安银行", Price: 10.3},
	}, time.Now(), "eastmoney"))

	// Next rebuild no longer lists 000001
	require.NoError(t, repo.ReplaceAll([]domain.CatalogEntry{
		{Symbol: "600519", Name: "贵州茅台", Price: 1655},
	}, time.Now(), "eastmoney"))

	all, err := repo.All()
	require.NoError(t, err)
	require.Len(t, all, 1, "a delisted symbol must not survive a rebuild")
	assert.Equal(t, "600519", all[0].Symbol)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMeta_EmptyDatabase(t *testing.T) {
	repo, cleanup := newCatalogRepo(t)
	defer cleanup()

	ts, source, err := repo.Meta()
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
	assert.Empty(t, source)
}

func TestUpdateQuotes_UpsertsWithoutTouchingMeta(t *testing.T) {
	repo, cleanup := newCatalogRepo(t)
	defer cleanup()

	ts := time.Now().Add(-time.Hour)
	require.NoError(t, repo.ReplaceAll([]domain.CatalogEntry{
		{Symbol: "600519", Name: "贵州茅台", Price: 1600},
	}, ts, "eastmoney"))

	err := repo.UpdateQuotes([]domain.Quote{
		{Symbol: "600519", Name: "贵州茅台", Price: 1655.0, ChangePct: 3.4},
		// A held position outside the catalog gets its own row
		{Symbol: "601127", Name: "赛力斯", Price: 92.5},
	})
	require.NoError(t, err)

	all, err := repo.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1655.0, all[0].Price)
	assert.Equal(t, "601127", all[1].Symbol)

	metaTS, _, err := repo.Meta()
	require.NoError(t, err)
	assert.Equal(t, ts.Unix(), metaTS.Unix(), "quote writes must not refresh catalog meta")
}

func TestUpdateQuotes_EmptyNameDoesNotErasePersistedName(t *testing.T) {
	repo, cleanup := newCatalogRepo(t)
	defer cleanup()

	require.NoError(t, repo.ReplaceAll([]domain.CatalogEntry{
		{Symbol: "600519", Name: "贵州茅台", Price: 1600},
	}, time.Now(), "eastmoney"))

	// Tencent quotes can arrive nameless when the GBK name fails validation
	require.NoError(t, repo.UpdateQuotes([]domain.Quote{{Symbol: "600519", Price: 1610}}))

	all, err := repo.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "贵州茅台", all[0].Name)
	assert.Equal(t, 1610.0, all[0].Price)
}

func TestReadPage_KeywordFilterAndPaging(t *testing.T) {
	repo, cleanup := newCatalogRepo(t)
	defer cleanup()

	require.NoError(t, repo.ReplaceAll([]domain.CatalogEntry{
		{Symbol: "600519", Name: "贵州茅台"},
		{Symbol: "600036", Name: "招商银行"},
		{Symbol: "000001", Name: "平安银行"},
		{Symbol: "601318", Name: "中国平安"},
	}, time.Now(), "eastmoney"))

	page, total, err := repo.ReadPage(1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "000001", page[0].Symbol)

	page, total, err = repo.ReadPage(2, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "600519", page[1].Symbol)

	// Keyword hits both symbol and name
	matched, total, err := repo.ReadPage(1, 10, "600")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, matched, 2)

	matched, total, err = repo.ReadPage(1, 10, "平安")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, matched, 2)
	assert.Equal(t, "000001", matched[0].Symbol)
}

func TestCount(t *testing.T) {
	repo, cleanup := newCatalogRepo(t)
	defer cleanup()

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.ReplaceAll([]domain.CatalogEntry{{Symbol: "600519"}}, time.Now(), "x"))
	n, err = repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
