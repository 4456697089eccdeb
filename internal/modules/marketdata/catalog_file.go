package marketdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphatrader/alphatrader/internal/domain"
)

// catalogFileName is the flat-file mirror inside the data directory.
const catalogFileName = "catalog.json"

// catalogFilePayload is the on-disk shape of the mirror.
type catalogFilePayload struct {
	LastUpdated string                `json:"last_updated"`
	Data        []domain.CatalogEntry `json:"data"`
}

// CatalogFile is the secondary cache tier: a single JSON snapshot of the
// whole catalog. It survives a corrupt or missing market.db and can be
// inspected or shipped around as a plain file.
type CatalogFile struct {
	path string
	log  zerolog.Logger
}

// NewCatalogFile creates a mirror rooted in dataDir.
func NewCatalogFile(dataDir string, log zerolog.Logger) *CatalogFile {
	return &CatalogFile{
		path: filepath.Join(dataDir, catalogFileName),
		log:  log.With().Str("component", "catalog_file").Logger(),
	}
}

// Path returns the mirror file location.
func (f *CatalogFile) Path() string { return f.path }

// Write replaces the mirror atomically: the payload goes to a temp file in
// the same directory and is renamed into place, so a crash mid-write never
// leaves a truncated mirror behind.
func (f *CatalogFile) Write(entries []domain.CatalogEntry, lastUpdated time.Time) error {
	payload := catalogFilePayload{
		LastUpdated: lastUpdated.UTC().Format(time.RFC3339),
		Data:        entries,
	}
	if payload.Data == nil {
		payload.Data = []domain.CatalogEntry{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode catalog mirror: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, catalogFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp mirror file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write catalog mirror: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close catalog mirror: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace catalog mirror: %w", err)
	}
	return nil
}

// Read loads the mirror. A missing file returns (nil, zero, nil); a corrupt
// file is logged, removed, and treated the same as missing so the next
// rebuild starts clean.
func (f *CatalogFile) Read() ([]domain.CatalogEntry, time.Time, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read catalog mirror: %w", err)
	}

	var payload catalogFilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		f.log.Warn().Err(err).Str("path", f.path).Msg("Corrupt catalog mirror, discarding")
		os.Remove(f.path)
		return nil, time.Time{}, nil
	}

	ts, err := time.Parse(time.RFC3339, payload.LastUpdated)
	if err != nil {
		f.log.Warn().Err(err).Str("path", f.path).Msg("Catalog mirror has bad timestamp, discarding")
		os.Remove(f.path)
		return nil, time.Time{}, nil
	}
	return payload.Data, ts, nil
}
