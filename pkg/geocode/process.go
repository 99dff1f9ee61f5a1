// Package geocode fills lat/lon for Japanese addresses, backed by a persistent cache.
package geocode

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/catalog"
	"github.com/sw33tLie/spotscope/pkg/csvio"
	"github.com/sw33tLie/spotscope/pkg/storage"
	"github.com/sw33tLie/spotscope/pkg/workers"
)

// Cache stores coordinates by exact address text.
type Cache interface {
	GetGeocode(ctx context.Context, address string) (storage.GeocodeEntry, bool, error)
	PutGeocode(ctx context.Context, address string, lat, lon float64) error
}

// Options controls Process.
type Options struct {
	// Overwrite replaces coordinates that are already present.
	Overwrite bool
	Log       workers.Logger
}

// Stats counts what happened to each row.
type Stats struct {
	Rows     int
	Kept     int
	Skipped  int
	CacheHit int
	Resolved int
	Failed   int
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

// Process fills lat/lon on every row of in. The cache is consulted before g, and new answers are
// stored in it. A nil g only serves cached addresses.
func Process(ctx context.Context, g Geocoder, cache Cache, in *csvio.Table, opts Options) (*csvio.Table, Stats, error) {
	log := workers.OrNop(opts.Log)
	header := in.Header
	if len(header) == 0 {
		header = catalog.Columns
	}
	out := &csvio.Table{Header: csvio.UnionHeader(header, []string{"lat", "lon"})}

	var st Stats
	for _, row := range in.Rows {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}
		st.Rows++
		r := row.Clone()
		r["lat"], r["lon"] = row.Get("lat"), row.Get("lon")
		out.Rows = append(out.Rows, r)

		if r["lat"] != "" && r["lon"] != "" && !opts.Overwrite {
			st.Kept++
			continue
		}
		raw := row.Get("address")
		addr := ExtractJPAddress(raw)
		if SkipAddress(raw) || addr == "" {
			st.Skipped++
			continue
		}

		entry, ok, err := cache.GetGeocode(ctx, addr)
		if err != nil {
			return nil, st, fmt.Errorf("reading geocode cache: %w", err)
		}
		if ok {
			r["lat"], r["lon"] = formatCoord(entry.Lat), formatCoord(entry.Lon)
			st.CacheHit++
			continue
		}
		if g == nil {
			st.Failed++
			continue
		}

		p, err := g.Geocode(ctx, addr)
		if err != nil {
			log.Debugf("[geocode] %s: %v", addr, err)
			st.Failed++
			continue
		}
		if err := cache.PutGeocode(ctx, addr, p.Lat, p.Lon); err != nil {
			return nil, st, fmt.Errorf("writing geocode cache: %w", err)
		}
		r["lat"], r["lon"] = formatCoord(p.Lat), formatCoord(p.Lon)
		st.Resolved++
	}
	return out, st, nil
}

// Run geocodes inCSV into outCSV using the sqlite cache at dbPath, the default cache path when empty.
// The cache file is locked for the whole run.
func Run(ctx context.Context, g Geocoder, dbPath, inCSV, outCSV string, opts Options) (Stats, error) {
	in, err := csvio.ReadFile(inCSV)
	if err != nil {
		return Stats{}, fmt.Errorf("reading %s: %w", inCSV, err)
	}

	absPath, err := utils.CachePath(dbPath)
	if err != nil {
		return Stats{}, err
	}
	if _, err := utils.EnsureParent(absPath); err != nil {
		return Stats{}, err
	}
	lock, err := utils.NewCacheLock(absPath)
	if err != nil {
		return Stats{}, err
	}
	if err := lock.Acquire(ctx); err != nil {
		return Stats{}, err
	}
	defer lock.Release()

	db, err := storage.Open(absPath)
	if err != nil {
		return Stats{}, fmt.Errorf("opening geocode cache %s: %w", absPath, err)
	}
	defer db.Close()

	out, st, err := Process(ctx, g, db, in, opts)
	if err != nil {
		return st, err
	}
	if err := csvio.WriteFile(outCSV, out); err != nil {
		return st, fmt.Errorf("writing %s: %w", outCSV, err)
	}
	workers.OrNop(opts.Log).Infof("Geocoded %s: %d resolved, %d from cache, %d kept, %d skipped, %d failed",
		outCSV, st.Resolved, st.CacheHit, st.Kept, st.Skipped, st.Failed)
	return st, nil
}
