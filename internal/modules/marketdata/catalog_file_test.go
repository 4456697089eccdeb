package marketdata

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphatrader/alphatrader/internal/domain"
)

func TestCatalogFile_RoundTrip(t *testing.T) {
	f := NewCatalogFile(t.TempDir(), zerolog.Nop())

	ts := time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
	in := []domain.CatalogEntry{
		{Symbol: "600519", Name: "贵州茅台", Price: 1650, Trend: []float64{1648, 1650}},
	}
	require.NoError(t, f.Write(in, ts))

	out, gotTS, err := f.Read()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "600519", out[0].Symbol)
	assert.Equal(t, []float64{1648, 1650}, out[0].Trend)
	assert.True(t, gotTS.Equal(ts))
}

func TestCatalogFile_MissingIsNotAnError(t *testing.T) {
	f := NewCatalogFile(t.TempDir(), zerolog.Nop())

	out, ts, err := f.Read()
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.True(t, ts.IsZero())
}

func TestCatalogFile_CorruptFileDiscarded(t *testing.T) {
	dir := t.TempDir()
	f := NewCatalogFile(dir, zerolog.Nop())
	require.NoError(t, os.WriteFile(f.Path(), []byte("{not json"), 0644))

	out, ts, err := f.Read()
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.True(t, ts.IsZero())

	_, statErr := os.Stat(f.Path())
	assert.True(t, os.IsNotExist(statErr), "corrupt mirror must be deleted")
}

func TestCatalogFile_WriteReplacesPrevious(t *testing.T) {
	f := NewCatalogFile(t.TempDir(), zerolog.Nop())

	require.NoError(t, f.Write([]domain.CatalogEntry{{Symbol: "600519"}, {Symbol: "000001"}}, time.Now()))
	require.NoError(t, f.Write([]domain.CatalogEntry{{Symbol: "300750"}}, time.Now()))

	out, _, err := f.Read()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "300750", out[0].Symbol)
}
