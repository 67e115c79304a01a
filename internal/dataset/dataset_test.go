package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bikeshare-dashboard/internal/loader"
	"bikeshare-dashboard/internal/rentals"

	"github.com/stretchr/testify/require"
)

const csvData = `dteday,cnt,registered,casual,temp_actual,atemp_actual
2023-01-01,10,7,3,5,3
2023-01-02,20,14,6,10,8
2023-01-03,30,21,9,15,13
`

type memoryStore struct {
	source string
	table  rentals.Table
	err    error
}

func (s *memoryStore) ReplaceTable(source string, table rentals.Table) error {
	if s.err != nil {
		return s.err
	}
	s.source = source
	s.table = table
	return nil
}

func (s *memoryStore) LoadTable() (rentals.Table, error) {
	return s.table, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []*rentals.Dashboard
}

func (p *recordingPublisher) Publish(d *rentals.Dashboard) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, d)
	return nil
}

func writeCSV(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestDataset_ReloadStoresAndPublishes(t *testing.T) {
	store := &memoryStore{}
	pub := &recordingPublisher{}
	path := writeCSV(t, csvData)

	ds := New(DatasetConfig{Path: path, Store: store, Publisher: pub})
	require.False(t, ds.IsLoaded())

	require.NoError(t, ds.Reload(context.Background()))

	require.True(t, ds.IsLoaded())
	require.Len(t, ds.Table(), 3)
	require.False(t, ds.LoadedAt().IsZero())
	require.Equal(t, path, store.source)
	require.Len(t, store.table, 3)

	require.Len(t, pub.calls, 1)
	require.Equal(t, int64(60), pub.calls[0].Totals.Total)
}

func TestDataset_FailedReloadKeepsPreviousTable(t *testing.T) {
	path := writeCSV(t, csvData)
	ds := New(DatasetConfig{Path: path})
	require.NoError(t, ds.Reload(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("dteday,cnt\n2023-01-01,1\n"), 0o644))

	err := ds.Reload(context.Background())
	require.ErrorIs(t, err, loader.ErrMalformedInput)
	require.Len(t, ds.Table(), 3)
}

func TestDataset_StoreErrorLeavesCacheEmpty(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	ds := New(DatasetConfig{Path: writeCSV(t, csvData), Store: store})

	err := ds.Reload(context.Background())
	require.ErrorContains(t, err, "disk full")
	require.False(t, ds.IsLoaded())
}

func TestDataset_StartFallsBackToStore(t *testing.T) {
	store := &memoryStore{table: rentals.Table{
		{Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), TotalCount: 5, RegisteredCount: 4, CasualCount: 1},
	}}
	ds := New(DatasetConfig{Path: filepath.Join(t.TempDir(), "missing.csv"), Store: store})

	require.NoError(t, ds.Start(context.Background()))
	require.Len(t, ds.Table(), 1)
}

func TestDataset_StartWithoutAnyData(t *testing.T) {
	ds := New(DatasetConfig{Path: filepath.Join(t.TempDir(), "missing.csv"), Store: &memoryStore{}})

	err := ds.Start(context.Background())
	require.ErrorIs(t, err, ErrNotLoaded)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDataset_ScheduledReload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := writeCSV(t, csvData)
	ds := New(DatasetConfig{Path: path, ReloadInterval: time.Second})
	require.NoError(t, ds.Start(ctx))
	defer ds.Stop()

	require.NoError(t, os.WriteFile(path, []byte(csvData+"2023-01-04,40,28,12,20,18\n"), 0o644))

	require.Eventually(t, func() bool {
		return len(ds.Table()) == 4
	}, 5*time.Second, 50*time.Millisecond)
}

func TestDataset_ReloadHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds := New(DatasetConfig{Path: writeCSV(t, csvData)})
	require.ErrorIs(t, ds.Reload(ctx), context.Canceled)
}
