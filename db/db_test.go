package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/clipengine/logging"
	"github.com/user/clipengine/model"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(context.Background(), filepath.Join(t.TempDir(), "index.db"), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

// fixedClock makes the index stamp writes with a controllable time.
func fixedClock(ix *Index, start time.Time) func(time.Duration) {
	var mu sync.Mutex
	now := start
	ix.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	return func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
}

func sampleRecord(id, hash string) model.ClipRecord {
	return model.ClipRecord{
		ClipID:        id,
		ContentHash:   hash,
		OutputPath:    "/clips/" + id + ".mp4",
		ThumbnailPath: "/clips/" + id + ".jpg",
		SourcePath:    "/video/g1-p1.mp4",
		Start:         97.0,
		End:           105.0,
		Kind:          model.SourceEvent,
		SourceID:      "ev-" + id,
		PlayerID:      "P1",
		GameID:        "G1",
		GameDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Period:        1,
		EventType:     model.EventZoneExit,
		Outcome:       "success",
		Team:          "HOME",
		Opponent:      "AWAY",
		Timecode:      100.0,
		Extra:         map[string]string{"zone": "defensive"},
		FileSize:      1024,
	}
}

func TestInsertOrTouchCreatesThenTouches(t *testing.T) {
	ix := openTestIndex(t)
	advance := fixedClock(ix, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, created, err := ix.InsertOrTouch(ctx, sampleRecord("c1", "h1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.RequestCount)

	advance(time.Minute)
	changed := sampleRecord("c1", "h1")
	changed.OutputPath = "/elsewhere.mp4"
	second, created, err := ix.InsertOrTouch(ctx, changed)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, second.RequestCount)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.LastRequestedAt.After(first.LastRequestedAt))
	assert.Equal(t, "/clips/c1.mp4", second.OutputPath, "touch must not rewrite stored columns")

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalClips)
	assert.EqualValues(t, 2, stats.TotalRequests)
}

func TestGetByIDRoundTrip(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	rec := sampleRecord("c1", "h1")
	_, _, err := ix.InsertOrTouch(ctx, rec)
	require.NoError(t, err)

	got, err := ix.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, rec.ContentHash, got.ContentHash)
	assert.Equal(t, rec.GameID, got.GameID)
	assert.Equal(t, rec.Period, got.Period)
	assert.Equal(t, rec.PlayerID, got.PlayerID)
	assert.Equal(t, rec.EventType, got.EventType)
	assert.Equal(t, rec.Kind, got.Kind)
	assert.InDelta(t, rec.Start, got.Start, 1e-9)
	assert.InDelta(t, rec.End, got.End, 1e-9)
	assert.Equal(t, rec.Extra, got.Extra)
	assert.True(t, rec.GameDate.Equal(got.GameDate))

	_, err = ix.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByHashReturnsFirstProducer(t *testing.T) {
	ix := openTestIndex(t)
	advance := fixedClock(ix, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, _, err := ix.InsertOrTouch(ctx, sampleRecord("first", "shared"))
	require.NoError(t, err)
	advance(time.Second)
	_, _, err = ix.InsertOrTouch(ctx, sampleRecord("second", "shared"))
	require.NoError(t, err)

	got, err := ix.GetByHash(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, "first", got.ClipID)

	_, err = ix.GetByHash(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouchMissingClip(t *testing.T) {
	ix := openTestIndex(t)
	_, err := ix.Touch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryFiltersAndOrder(t *testing.T) {
	ix := openTestIndex(t)
	advance := fixedClock(ix, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	a := sampleRecord("a", "ha")
	b := sampleRecord("b", "hb")
	b.PlayerID = "P2"
	b.EventType = model.EventGoal
	c := sampleRecord("c", "hc")
	c.GameID = "G2"
	c.GameDate = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	c.Team = "AWAY"
	for _, r := range []model.ClipRecord{a, b, c} {
		_, _, err := ix.InsertOrTouch(ctx, r)
		require.NoError(t, err)
		advance(time.Second)
	}

	all, err := ix.Query(ctx, model.Filters{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all))

	byPlayer, err := ix.Query(ctx, model.Filters{Players: []string{"P1"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(byPlayer))

	byType, err := ix.Query(ctx, model.Filters{EventTypes: []model.EventType{model.EventGoal}}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(byType))

	byDate, err := ix.Query(ctx, model.Filters{From: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(byDate))

	byTeamAndGame, err := ix.Query(ctx, model.Filters{Teams: []string{"HOME"}, GameIDs: []string{"G1"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(byTeamAndGame))

	limited, err := ix.Query(ctx, model.Filters{}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(limited))
}

func TestStatsCountsSharedBytesOnce(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	one := sampleRecord("one", "same")
	two := sampleRecord("two", "same")
	two.PlayerID = "P2"
	three := sampleRecord("three", "other")
	three.GameID = "G2"
	three.FileSize = 4096
	for _, r := range []model.ClipRecord{one, two, three} {
		_, _, err := ix.InsertOrTouch(ctx, r)
		require.NoError(t, err)
	}

	s, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, s.TotalClips)
	assert.EqualValues(t, 2, s.DistinctHashes)
	assert.EqualValues(t, 1024+4096, s.TotalBytes)
	assert.EqualValues(t, 2, s.DistinctPlayers)
	assert.EqualValues(t, 2, s.DistinctGames)
}

func TestConcurrentWritersLoseNothing(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n*2)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("clip-%02d", i)
			if _, _, err := ix.InsertOrTouch(ctx, sampleRecord(id, "h-"+id)); err != nil {
				errs <- err
			}
			// Half the writers also touch a shared row.
			if i%2 == 0 {
				if _, _, err := ix.InsertOrTouch(ctx, sampleRecord("shared", "h-shared")); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, n+1, s.TotalClips)

	shared, err := ix.GetByID(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, n/2, shared.RequestCount)
}

func TestClosedIndexIsUnavailable(t *testing.T) {
	ix, err := Open(context.Background(), filepath.Join(t.TempDir(), "index.db"), logging.Nop())
	require.NoError(t, err)
	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close())

	_, _, err = ix.InsertOrTouch(context.Background(), sampleRecord("c1", "h1"))
	assert.True(t, model.IsIndexUnavailable(err))
	assert.True(t, model.IsIndexUnavailable(ix.Ping(context.Background())))
}

func TestReopenKeepsRowsAndSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	ix, err := Open(ctx, path, logging.Nop())
	require.NoError(t, err)
	_, _, err = ix.InsertOrTouch(ctx, sampleRecord("c1", "h1"))
	require.NoError(t, err)
	require.NoError(t, ix.Close())

	ix, err = Open(ctx, path, logging.Nop())
	require.NoError(t, err)
	defer ix.Close()

	got, err := ix.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.ContentHash)

	ran, err := runMigrations(ctx, ix.writer)
	require.NoError(t, err)
	assert.Empty(t, ran)
}

func ids(recs []model.ClipRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ClipID
	}
	return out
}

func TestRepointMovesEverySharedRecord(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	for _, rec := range []model.ClipRecord{
		sampleRecord("a", "shared"),
		sampleRecord("b", "shared"),
		sampleRecord("c", "other"),
	} {
		_, _, err := ix.InsertOrTouch(ctx, rec)
		require.NoError(t, err)
	}

	n, err := ix.Repoint(ctx, "shared", "/clips/fresh.mp4", "", 2048)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, id := range []string{"a", "b"} {
		got, err := ix.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "/clips/fresh.mp4", got.OutputPath, id)
		assert.Empty(t, got.ThumbnailPath, id)
		assert.EqualValues(t, 2048, got.FileSize, id)
		assert.Equal(t, 1, got.RequestCount, id)
	}
	c, err := ix.GetByID(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "/clips/c.mp4", c.OutputPath)

	n, err = ix.Repoint(ctx, "nope", "/clips/x.mp4", "", 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCancelledContextIsNotUnavailable(t *testing.T) {
	ix := openTestIndex(t)
	_, _, err := ix.InsertOrTouch(context.Background(), sampleRecord("c1", "h1"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks := map[string]error{}
	_, checks["get_by_id"] = ix.GetByID(ctx, "c1")
	_, checks["get_by_hash"] = ix.GetByHash(ctx, "h1")
	_, checks["query"] = ix.Query(ctx, model.Filters{}, 10)
	_, checks["stats"] = ix.Stats(ctx)
	_, _, checks["insert_or_touch"] = ix.InsertOrTouch(ctx, sampleRecord("c2", "h2"))
	_, checks["repoint"] = ix.Repoint(ctx, "h1", "/clips/x.mp4", "", 1)
	checks["ping"] = ix.Ping(ctx)

	for op, err := range checks {
		assert.ErrorIs(t, err, context.Canceled, op)
		assert.False(t, model.IsIndexUnavailable(err), op)
	}

	_, err = ix.GetByID(context.Background(), "c2")
	assert.ErrorIs(t, err, ErrNotFound)
}
