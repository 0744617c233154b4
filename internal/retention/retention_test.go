package retention

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/glowly/internal/db"
	"github.com/vbonduro/glowly/internal/domain"
	"github.com/vbonduro/glowly/internal/logging"
	"github.com/vbonduro/glowly/internal/photostore/local"
	"github.com/vbonduro/glowly/internal/store"
)

func TestPruneOnce(t *testing.T) {
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	scans := store.NewScanStore(d)

	photos, err := local.NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	oldKey, err := photos.Save(ctx, "old", "image/jpeg", strings.NewReader("old"))
	require.NoError(t, err)
	newKey, err := photos.Save(ctx, "new", "image/jpeg", strings.NewReader("new"))
	require.NoError(t, err)

	_, _, err = scans.ReplaceForUID(ctx, &domain.Scan{UID: "old", StorageKey: oldKey, MimeType: "image/jpeg"})
	require.NoError(t, err)
	_, _, err = scans.ReplaceForUID(ctx, &domain.Scan{UID: "new", StorageKey: newKey, MimeType: "image/jpeg"})
	require.NoError(t, err)

	p, err := NewPruner(scans, photos, 30, "", logging.Discard())
	require.NoError(t, err)
	// Both scans were written just now; looking 31 days ahead expires them.
	p.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }

	n, err := p.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	latest, err := scans.GetLatestByUID(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, _, err = photos.Get(ctx, oldKey)
	assert.Error(t, err)
}

func TestPruneOnceKeepsFreshScans(t *testing.T) {
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	scans := store.NewScanStore(d)
	photos, err := local.NewLocalPhotoStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	key, err := photos.Save(ctx, "u", "image/png", bytes.NewReader([]byte{1}))
	require.NoError(t, err)
	_, _, err = scans.ReplaceForUID(ctx, &domain.Scan{UID: "u", StorageKey: key, MimeType: "image/png"})
	require.NoError(t, err)

	p, err := NewPruner(scans, photos, 30, "@daily", logging.Discard())
	require.NoError(t, err)

	n, err := p.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDisabledPruner(t *testing.T) {
	p, err := NewPruner(nil, nil, 0, "@daily", logging.Discard())
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	n, err := p.PruneOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, p.Start(ctx))
}

func TestStartStopsOnCancel(t *testing.T) {
	p, err := NewPruner(nil, nil, 7, "0 3 * * *", logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestInvalidSchedule(t *testing.T) {
	_, err := NewPruner(nil, nil, 1, "every tuesday", logging.Discard())
	assert.Error(t, err)
}
