package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

func testDB(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestKVStorageRoundTrip(t *testing.T) {
	kv := NewKVStorage(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	_, err := kv.Get(ctx, "TUSHARE_TOKEN")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "TUSHARE_TOKEN", "tok-1"))
	require.NoError(t, kv.Set(ctx, "GEMINI_API_KEY", "sk-1"))

	value, err := kv.Get(ctx, "TUSHARE_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", value)

	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	updated, err := kv.LastUpdated(ctx)
	require.NoError(t, err)
	require.NotNil(t, updated)

	require.NoError(t, kv.Delete(ctx, "TUSHARE_TOKEN"))
	_, err = kv.Get(ctx, "TUSHARE_TOKEN")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestKVStorageSetMany(t *testing.T) {
	kv := NewKVStorage(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "GEMINI_MODEL", "gemini-2.0-flash"))

	require.NoError(t, kv.SetMany(ctx, map[string]string{
		"GEMINI_MODEL":       "gemini-2.5-pro",
		"SEARCH_MAX_RESULTS": "8",
		"TUSHARE_TOKEN":      "tok-1",
	}))

	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"GEMINI_MODEL":       "gemini-2.5-pro",
		"SEARCH_MAX_RESULTS": "8",
		"TUSHARE_TOKEN":      "tok-1",
	}, all)

	// An invalid key rejects the whole batch.
	err = kv.SetMany(ctx, map[string]string{"TUSHARE_TOKEN": "tok-2", "  ": "oops"})
	require.Error(t, err)
	value, err := kv.Get(ctx, "TUSHARE_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", value)

	require.NoError(t, kv.SetMany(ctx, nil))
}

func TestReportStorageSaveAndGet(t *testing.T) {
	reports := NewReportStorage(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	report := &models.AnalysisReport{
		QueryID:        "task_1",
		StockCode:      "600519",
		ReportType:     models.ReportFull,
		CreatedAt:      time.Now(),
		SentimentScore: models.Float(72),
		Advice:         "buy",
	}
	require.NoError(t, reports.Save(ctx, report))

	// Reports are immutable; a second save under the same id fails.
	assert.Error(t, reports.Save(ctx, report))

	loaded, err := reports.GetByQueryID(ctx, "task_1")
	require.NoError(t, err)
	assert.Equal(t, "600519", loaded.StockCode)
	require.NotNil(t, loaded.SentimentScore)
	assert.Equal(t, 72.0, *loaded.SentimentScore)

	_, err = reports.GetByQueryID(ctx, "task_unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReportStorageQueryPagination(t *testing.T) {
	reports := NewReportStorage(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, reports.Save(ctx, &models.AnalysisReport{
			QueryID:   fmt.Sprintf("task_%d", i),
			StockCode: "600519",
			CreatedAt: base.AddDate(0, 0, i),
		}))
	}
	require.NoError(t, reports.Save(ctx, &models.AnalysisReport{
		QueryID:   "task_other",
		StockCode: "000001",
		CreatedAt: base,
	}))

	// Newest first, other codes excluded.
	page, total, err := reports.Query(ctx, "600519", time.Time{}, time.Time{}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "task_4", page[0].QueryID)
	assert.Equal(t, "task_3", page[1].QueryID)

	page, _, err = reports.Query(ctx, "600519", time.Time{}, time.Time{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "task_2", page[0].QueryID)

	// Date range bounds are inclusive.
	page, total, err = reports.Query(ctx, "600519", base.AddDate(0, 0, 1), base.AddDate(0, 0, 3), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 3)
}

func TestWatchlistStorage(t *testing.T) {
	watchlist := NewWatchlistStorage(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, watchlist.Add(ctx, &models.WatchlistEntry{Code: "600519", Name: "Kweichow Moutai", Market: "a_share"}))
	require.NoError(t, watchlist.Add(ctx, &models.WatchlistEntry{Code: "00700", Name: "Tencent", Market: "hk"}))

	exists, err := watchlist.Exists(ctx, "600519")
	require.NoError(t, err)
	assert.True(t, exists)

	entries, err := watchlist.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "00700", entries[0].Code) // sorted by code

	// Re-adding keeps the original AddedAt.
	first := entries[1].AddedAt
	require.NoError(t, watchlist.Add(ctx, &models.WatchlistEntry{Code: "600519", Name: "Moutai"}))
	entries, err = watchlist.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, entries[1].AddedAt)

	require.NoError(t, watchlist.Remove(ctx, "00700"))
	exists, err = watchlist.Exists(ctx, "00700")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, watchlist.Remove(ctx, "00700"), models.ErrNotFound)
}

func TestManagerWiresStorages(t *testing.T) {
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	defer manager.Close()

	assert.NotNil(t, manager.KVStorage())
	assert.NotNil(t, manager.ReportStorage())
	assert.NotNil(t, manager.WatchlistStorage())
}
