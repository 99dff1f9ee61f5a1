package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocodeCache(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "geocode.sqlite"))
	require.NoError(t, err)
	defer db.Close()

	_, ok, err := db.GetGeocode(ctx, "東京都渋谷区神南1-1-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.PutGeocode(ctx, "東京都渋谷区神南1-1-1", 35.6640, 139.6982))
	e, ok, err := db.GetGeocode(ctx, "東京都渋谷区神南1-1-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 35.6640, e.Lat, 1e-9)
	assert.InDelta(t, 139.6982, e.Lon, 1e-9)
	assert.False(t, e.CreatedAt.IsZero())

	require.NoError(t, db.PutGeocode(ctx, "東京都渋谷区神南1-1-1", 1, 2))
	e, _, err = db.GetGeocode(ctx, "東京都渋谷区神南1-1-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.Lat)

	require.NoError(t, db.PutGeocode(ctx, "大阪府大阪市北区梅田1-1", 34.70, 135.49))
	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entries)
	assert.False(t, st.Oldest.After(st.Newest))

	require.NoError(t, db.DeleteGeocode(ctx, "大阪府大阪市北区梅田1-1"))
	require.NoError(t, db.DeleteGeocode(ctx, "missing"))
	st, err = db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Entries)
}

func TestCloseNil(t *testing.T) {
	var db *DB
	assert.NoError(t, db.Close())
}
