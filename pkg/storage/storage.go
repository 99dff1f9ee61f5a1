package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

// GeocodeEntry is one cached address lookup.
type GeocodeEntry struct {
	Address   string
	Lat       float64
	Lon       float64
	CreatedAt time.Time
}

// CacheStats summarises the geocode cache.
type CacheStats struct {
	Entries int
	Oldest  time.Time
	Newest  time.Time
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS geocode_cache (
  address    TEXT PRIMARY KEY,
  lat        REAL NOT NULL,
  lon        REAL NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// GetGeocode returns the cached coordinates for an exact address string.
func (d *DB) GetGeocode(ctx context.Context, address string) (GeocodeEntry, bool, error) {
	var (
		e       GeocodeEntry
		created sql.NullString
	)
	err := d.sql.QueryRowContext(ctx,
		"SELECT address, lat, lon, created_at FROM geocode_cache WHERE address = ?", address,
	).Scan(&e.Address, &e.Lat, &e.Lon, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return GeocodeEntry{}, false, nil
	}
	if err != nil {
		return GeocodeEntry{}, false, err
	}
	e.CreatedAt = parseTimestamp(created.String)
	return e, true, nil
}

// PutGeocode stores or refreshes the coordinates of an address.
func (d *DB) PutGeocode(ctx context.Context, address string, lat, lon float64) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO geocode_cache(address, lat, lon, created_at) VALUES(?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(address) DO UPDATE SET lat = excluded.lat, lon = excluded.lon, created_at = CURRENT_TIMESTAMP`,
		address, lat, lon)
	return err
}

// DeleteGeocode removes a cached address. Missing entries are not an error.
func (d *DB) DeleteGeocode(ctx context.Context, address string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM geocode_cache WHERE address = ?", address)
	return err
}

// Stats counts cached addresses and reports the age range.
func (d *DB) Stats(ctx context.Context) (CacheStats, error) {
	var (
		st             CacheStats
		oldest, newest sql.NullString
	)
	err := d.sql.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM geocode_cache",
	).Scan(&st.Entries, &oldest, &newest)
	if err != nil {
		return CacheStats{}, err
	}
	st.Oldest = parseTimestamp(oldest.String)
	st.Newest = parseTimestamp(newest.String)
	return st, nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
