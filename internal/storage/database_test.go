package storage

import (
	"path/filepath"
	"testing"
	"time"

	"bikeshare-dashboard/internal/rentals"

	"github.com/stretchr/testify/require"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "rentals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testTable() rentals.Table {
	return rentals.Table{
		{Date: date(2023, 1, 3), TotalCount: 30, RegisteredCount: 21, CasualCount: 9, Temperature: 15, FeelsLikeTemperature: 13.5},
		{Date: date(2023, 1, 1), TotalCount: 10, RegisteredCount: 7, CasualCount: 3, Temperature: 5, FeelsLikeTemperature: 3.25},
		{Date: date(2023, 1, 2), TotalCount: 20, RegisteredCount: 14, CasualCount: 6, Temperature: 10, FeelsLikeTemperature: 8},
	}
}

func TestDatabase_ReplaceAndLoadKeepsOrder(t *testing.T) {
	db := openTestDatabase(t)

	require.NoError(t, db.ReplaceTable("first.csv", testTable()))

	table, err := db.LoadTable()
	require.NoError(t, err)
	require.Equal(t, testTable(), table)
}

func TestDatabase_ReplaceDropsPreviousRows(t *testing.T) {
	db := openTestDatabase(t)

	require.NoError(t, db.ReplaceTable("first.csv", testTable()))
	require.NoError(t, db.ReplaceTable("second.csv", testTable()[:1]))

	count, err := db.CountRentals()
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	entry, err := db.LastImport()
	require.NoError(t, err)
	require.Equal(t, "second.csv", entry.Source)
	require.Equal(t, 1, entry.Rows)
}

func TestDatabase_DateBounds(t *testing.T) {
	db := openTestDatabase(t)

	_, err := db.DateBounds()
	require.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, db.ReplaceTable("first.csv", testTable()))

	bounds, err := db.DateBounds()
	require.NoError(t, err)
	require.Equal(t, date(2023, 1, 1), bounds.Start)
	require.Equal(t, date(2023, 1, 3), bounds.End)
}

func TestDatabase_LastImportEmpty(t *testing.T) {
	db := openTestDatabase(t)

	_, err := db.LastImport()
	require.ErrorIs(t, err, ErrEmpty)
}

func TestDatabase_ReplaceWithEmptyTable(t *testing.T) {
	db := openTestDatabase(t)

	require.NoError(t, db.ReplaceTable("first.csv", testTable()))
	require.NoError(t, db.ReplaceTable("empty.csv", rentals.Table{}))

	table, err := db.LoadTable()
	require.NoError(t, err)
	require.Empty(t, table)
}
