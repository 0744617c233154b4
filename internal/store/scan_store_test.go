package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/glowly/internal/db"
	"github.com/vbonduro/glowly/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func sampleScan(uid, key string) *domain.Scan {
	return &domain.Scan{
		UID:        uid,
		StorageKey: key,
		MimeType:   "image/jpeg",
		Width:      640,
		Height:     480,
		Summary:    "Complexion looks balanced.",
		Metrics: []domain.Metric{
			{Key: "hydration", Label: "Hydration support", Value: 62, Summary: "thirsty"},
			{Key: "oil", Label: "Oil balance", Value: 48, Summary: "calm"},
			{Key: "sensitivity", Label: "Sensitivity risk", Value: 12, Summary: "calm"},
			{Key: "tone", Label: "Tone evenness", Value: 81, Summary: "even"},
			{Key: "barrier", Label: "Barrier strength", Value: 70, Summary: "resilient"},
		},
	}
}

func TestScanStoreReplaceForUID_Create(t *testing.T) {
	scans := NewScanStore(openTestDB(t))
	ctx := context.Background()

	created, replaced, err := scans.ReplaceForUID(ctx, sampleScan("user-1", "user-1_1.jpg"))
	require.NoError(t, err)
	assert.Empty(t, replaced)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "user-1", created.UID)
	assert.Equal(t, 640, created.Width)
	require.Len(t, created.Metrics, 5)
	// Metrics keep their derivation order.
	assert.Equal(t, "hydration", created.Metrics[0].Key)
	assert.Equal(t, "barrier", created.Metrics[4].Key)
	assert.Equal(t, 81, created.Metrics[3].Value)
}

func TestScanStoreReplaceForUID_ReplacesWholesale(t *testing.T) {
	scans := NewScanStore(openTestDB(t))
	ctx := context.Background()

	first, _, err := scans.ReplaceForUID(ctx, sampleScan("user-1", "first.jpg"))
	require.NoError(t, err)
	_, _, err = scans.ReplaceForUID(ctx, sampleScan("user-2", "other.jpg"))
	require.NoError(t, err)

	second, replaced, err := scans.ReplaceForUID(ctx, sampleScan("user-1", "second.jpg"))
	require.NoError(t, err)
	require.Len(t, replaced, 1)
	assert.Equal(t, "first.jpg", replaced[0].StorageKey)

	gone, err := scans.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	latest, err := scans.GetLatestByUID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Len(t, latest.Metrics, 5)

	other, err := scans.GetLatestByUID(ctx, "user-2")
	require.NoError(t, err)
	assert.NotNil(t, other, "other uids are untouched")
}

func TestScanStoreGetLatestByUID_None(t *testing.T) {
	scans := NewScanStore(openTestDB(t))

	latest, err := scans.GetLatestByUID(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestScanStoreListOlderThan(t *testing.T) {
	scans := NewScanStore(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	scans.now = func() time.Time { return base.AddDate(0, 0, -40) }
	old, _, err := scans.ReplaceForUID(ctx, sampleScan("old-user", "old.jpg"))
	require.NoError(t, err)

	scans.now = func() time.Time { return base }
	_, _, err = scans.ReplaceForUID(ctx, sampleScan("new-user", "new.jpg"))
	require.NoError(t, err)

	expired, err := scans.ListOlderThan(ctx, base.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)
}

func TestScanStoreDelete(t *testing.T) {
	scans := NewScanStore(openTestDB(t))
	ctx := context.Background()

	created, _, err := scans.ReplaceForUID(ctx, sampleScan("user-1", "a.jpg"))
	require.NoError(t, err)

	require.NoError(t, scans.Delete(ctx, created.ID))

	retrieved, err := scans.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestScanStoreDelete_NotFound(t *testing.T) {
	scans := NewScanStore(openTestDB(t))

	assert.Error(t, scans.Delete(context.Background(), 99999))
}
