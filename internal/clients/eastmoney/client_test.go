package eastmoney

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphatrader/alphatrader/internal/modules/marketdata"
)

func newTestClient(hosts ...string) *Client {
	c := NewClient(marketdata.NewTrendBook(), zerolog.Nop())
	c.hosts = hosts
	return c
}

func TestFetchCatalogPage_ParsesListDiff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, clistPath, r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("pn"))
		w.Write([]byte(`{"data":{"total":2,"diff":[
			{"f12":"600519","f13":1,"f14":"贵州茅台","f2":1650.5,"f3":1.2,"f5":12345,"f18":1630.0},
			{"f12":"000001","f13":0,"f14":"平安银行","f2":"-","f3":"-","f5":0}
		]}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	entries, total, err := c.FetchCatalogPage(context.Background(), 1, 100)
	require.NoError(t, err)

	assert.Equal(t, 2, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "600519", entries[0].Symbol)
	assert.Equal(t, 1, entries[0].MarketID)
	assert.Equal(t, 1650.5, entries[0].Price)
	assert.Equal(t, 1630.0, entries[0].PrevClose)

	// "-" upstream fields normalize to 0, never NaN
	assert.Equal(t, 0.0, entries[1].Price)
	assert.Equal(t, 0.0, entries[1].ChangePct)
}

func TestFetchCatalogPage_ParsesMapDiff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"total":1,"diff":{"0":{"f12":"300750","f13":0,"f14":"宁德时代","f2":180.5}}}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	entries, total, err := c.FetchCatalogPage(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "300750", entries[0].Symbol)
}

func TestFetchCatalogPage_MirrorFallback(t *testing.T) {
	var badCalls, goodCalls atomic.Int32

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodCalls.Add(1)
		w.Write([]byte(`{"data":{"total":1,"diff":[{"f12":"600036","f14":"招商银行","f2":31.8}]}}`))
	}))
	defer good.Close()

	c := newTestClient(bad.URL, good.URL)
	entries, _, err := c.FetchCatalogPage(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// The failed mirror is hit exactly once per call, never retried
	assert.Equal(t, int32(1), badCalls.Load())
	assert.Equal(t, int32(1), goodCalls.Load())
}

func TestFetchCatalogPage_AllMirrorsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, _, err := c.FetchCatalogPage(context.Background(), 1, 100)
	assert.Error(t, err)
}

func TestFetchQuotes_ScalesPricesAndComputesChange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, realtimePath, r.URL.Path)
		assert.Equal(t, "1.600519", r.URL.Query().Get("secid"))
		w.Write([]byte(`{"data":{"f57":"600519","f58":"贵州茅台","f43":165000,"f60":160000,"f44":166000,"f45":159000,"f46":161000,"f47":54321}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	quotes, err := c.FetchQuotes(context.Background(), []string{"600519"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	q := quotes[0]
	assert.Equal(t, 1650.0, q.Price)
	assert.Equal(t, 1600.0, q.PrevClose)
	assert.InDelta(t, 3.125, q.ChangePct, 1e-9)
	assert.Equal(t, 54321.0, q.Volume)
	assert.Equal(t, []float64{1650.0}, q.RecentTrend)
}

func TestFetchQuotes_PartialFailureOmitsSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("secid") == "0.000001" {
			w.Write([]byte(`{"data":null}`))
			return
		}
		w.Write([]byte(`{"data":{"f57":"600519","f43":165000,"f60":160000}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	quotes, err := c.FetchQuotes(context.Background(), []string{"600519", "000001"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "600519", quotes[0].Symbol)
}

func TestFetchKlines_ParsesAndTrims(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"klines":[
			"2024-03-04,10.0,10.5,10.8,9.9,1000,10500",
			"2024-03-05,10.5,10.2,10.6,10.1,900,9300",
			"2024-03-06,10.2,10.9,11.0,10.2,1500,16000",
			"bogus-row"
		]}}`))
	}))
	defer srv.Close()

	c := newTestClient()
	c.historyHost = srv.URL

	bars, err := c.FetchKlines(context.Background(), "600519", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-03-05", bars[0].Date)
	assert.Equal(t, "2024-03-06", bars[1].Date)
	assert.Equal(t, 10.9, bars[1].Close)
}

func TestSecID(t *testing.T) {
	assert.Equal(t, "1.600519", secID("600519"))
	assert.Equal(t, "0.000001", secID("000001"))
	assert.Equal(t, "0.300750", secID(" 300750"))
}

func TestSafeFloat(t *testing.T) {
	assert.Equal(t, 1.5, safeFloat(1.5))
	assert.Equal(t, 2.5, safeFloat("2.5"))
	assert.Equal(t, 0.0, safeFloat("-"))
	assert.Equal(t, 0.0, safeFloat(""))
	assert.Equal(t, 0.0, safeFloat(nil))
	assert.Equal(t, 0.0, safeFloat("not-a-number"))
}
