package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestLeaderboard(t *testing.T, store BlobStore) *Leaderboard {
	t.Helper()
	n := 0
	return New(context.Background(), store,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("entry-%d", n)
		}),
	)
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.PlayerName
	}
	return out
}

type failingStore struct {
	loadErr error
	saveErr error
}

func (f failingStore) LoadBlob(context.Context, string) (string, error) {
	if f.loadErr != nil {
		return "", f.loadErr
	}
	return "", ErrBlobNotFound
}

func (f failingStore) SaveBlob(context.Context, string, string) error {
	return f.saveErr
}

func TestRecord_TieBrokenByTime(t *testing.T) {
	ctx := context.Background()
	lb := newTestLeaderboard(t, NewMemoryBlobStore())

	_, err := lb.Record(ctx, "A", 10, 50, 8, 4)
	require.NoError(t, err)
	_, err = lb.Record(ctx, "B", 10, 40, 8, 4)
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "A"}, names(lb.Query(4)))
}

func TestRecord_KeepsTopTenPerTier(t *testing.T) {
	ctx := context.Background()
	lb := newTestLeaderboard(t, NewMemoryBlobStore())

	for i := 0; i < 11; i++ {
		_, err := lb.Record(ctx, fmt.Sprintf("p%d", i), 100-i, 30, 8, 6)
		require.NoError(t, err)
	}

	got := lb.Query(6)
	require.Len(t, got, MaxEntriesPerTier)
	assert.Equal(t, "p0", got[0].PlayerName)
	assert.NotContains(t, names(got), "p10")
}

func TestRecord_TiersAreIndependent(t *testing.T) {
	ctx := context.Background()
	lb := newTestLeaderboard(t, NewMemoryBlobStore())

	for i := 0; i < 12; i++ {
		_, err := lb.Record(ctx, fmt.Sprintf("easy%d", i), i, 30, 8, 4)
		require.NoError(t, err)
	}
	_, err := lb.Record(ctx, "hard", 1, 300, 60, 8)
	require.NoError(t, err)
	_, err = lb.Record(ctx, "custom", 1, 5, 2, 2)
	require.NoError(t, err)

	assert.Len(t, lb.Query(4), 10)
	assert.Len(t, lb.Query(8), 1)
	assert.Len(t, lb.Query(2), 1)
	assert.Empty(t, lb.Query(6))

	all := lb.Entries()
	require.Len(t, all, 12)
	assert.Equal(t, 2, all[0].GridSize, "smaller grids rank first")
	assert.Equal(t, 8, all[len(all)-1].GridSize)
	assert.Equal(t, "Custom", all[0].DifficultyTier)
	assert.Equal(t, "Hard", all[len(all)-1].DifficultyTier)
}

func TestRecord_EntryFields(t *testing.T) {
	lb := newTestLeaderboard(t, NewMemoryBlobStore())

	entries, err := lb.Record(context.Background(), "  ", 16, 30, 8, 4)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "entry-1", e.ID)
	assert.Equal(t, AnonymousName, e.PlayerName)
	assert.Equal(t, 16, e.Score)
	assert.Equal(t, 30, e.ElapsedSeconds)
	assert.Equal(t, 8, e.MoveCount)
	assert.Equal(t, "Easy", e.DifficultyTier)
	assert.True(t, e.RecordedDate.Equal(fixedNow))
}

func TestQueryAll_LimitsToTwenty(t *testing.T) {
	ctx := context.Background()
	lb := newTestLeaderboard(t, NewMemoryBlobStore())

	for _, grid := range []int{4, 6, 8} {
		for i := 0; i < 10; i++ {
			_, err := lb.Record(ctx, "p", i, 30, 8, grid)
			require.NoError(t, err)
		}
	}

	all := lb.QueryAll()
	require.Len(t, all, MaxEntriesOverall)
	assert.Equal(t, 4, all[0].GridSize)
	assert.Equal(t, 6, all[19].GridSize)
}

func TestInsert_DoesNotModifyInput(t *testing.T) {
	existing := []Entry{
		{PlayerName: "slow", Score: 5, ElapsedSeconds: 90, GridSize: 4},
		{PlayerName: "fast", Score: 5, ElapsedSeconds: 10, GridSize: 4},
	}
	got := Insert(existing, Entry{PlayerName: "best", Score: 9, GridSize: 4})

	assert.Equal(t, []string{"best", "fast", "slow"}, names(got))
	assert.Equal(t, "slow", existing[0].PlayerName)
}

func TestLess_TotalOrder(t *testing.T) {
	base := Entry{GridSize: 4, Score: 10, ElapsedSeconds: 30, MoveCount: 8}

	fewerMoves := base
	fewerMoves.MoveCount = 7
	assert.True(t, Less(fewerMoves, base))

	faster := base
	faster.ElapsedSeconds = 29
	faster.MoveCount = 20
	assert.True(t, Less(faster, base))

	higher := base
	higher.Score = 11
	higher.ElapsedSeconds = 100
	assert.True(t, Less(higher, base))

	smaller := base
	smaller.GridSize = 2
	smaller.Score = 0
	assert.True(t, Less(smaller, base))

	assert.False(t, Less(base, base))
}

func TestNew_LoadsPersistedEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()

	first := newTestLeaderboard(t, store)
	_, err := first.Record(ctx, "Ash", 12, 45, 10, 4)
	require.NoError(t, err)

	second := newTestLeaderboard(t, store)
	got := second.Query(4)
	require.Len(t, got, 1)
	assert.Equal(t, "Ash", got[0].PlayerName)
}

func TestNew_CompatibleWithLegacyBlob(t *testing.T) {
	store := NewMemoryBlobStore()
	legacy := `[{"name":"Old","time":70,"moves":12,"score":9,"gridSize":4,"difficulty":"Easy (4x4)","date":"10/19/2026"},{"name":"Older","time":10,"moves":8,"score":9,"gridSize":4}]`
	require.NoError(t, store.SaveBlob(context.Background(), StorageKey, legacy))

	got := newTestLeaderboard(t, store).Query(4)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"Older", "Old"}, names(got))
	assert.Equal(t, "Easy", got[0].DifficultyTier)
	assert.Equal(t, "Easy", got[1].DifficultyTier)
	assert.Equal(t, time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC), got[1].RecordedDate)
	assert.True(t, got[0].RecordedDate.IsZero())
}

func TestEntry_UnmarshalDates(t *testing.T) {
	tests := []struct {
		name string
		date string
		want time.Time
	}{
		{"rfc3339", `"2024-05-01T10:00:00Z"`, time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)},
		{"locale", `"5/1/2024"`, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)},
		{"iso day", `"2024-05-01"`, time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)},
		{"unknown format", `"Wednesday"`, time.Time{}},
		{"null", `null`, time.Time{}},
		{"number", `1714557600`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Entry
			require.NoError(t, json.Unmarshal([]byte(`{"name":"Ash","gridSize":4,"date":`+tt.date+`}`), &e))
			assert.Equal(t, "Ash", e.PlayerName)
			assert.True(t, tt.want.Equal(e.RecordedDate), "got %v", e.RecordedDate)
		})
	}
}

func TestEntry_DateRoundTrip(t *testing.T) {
	in := Entry{ID: "x", PlayerName: "Ash", GridSize: 4, RecordedDate: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Entry
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestNew_CorruptBlobLoadsEmpty(t *testing.T) {
	store := NewMemoryBlobStore()
	require.NoError(t, store.SaveBlob(context.Background(), StorageKey, "{not json"))

	lb := newTestLeaderboard(t, store)
	assert.Empty(t, lb.Entries())

	_, err := lb.Record(context.Background(), "Brock", 3, 20, 4, 2)
	require.NoError(t, err)

	blob, err := store.LoadBlob(context.Background(), StorageKey)
	require.NoError(t, err)
	var saved []Entry
	require.NoError(t, json.Unmarshal([]byte(blob), &saved))
	assert.Len(t, saved, 1)
}

func TestNew_UnreadableStoreLoadsEmpty(t *testing.T) {
	lb := newTestLeaderboard(t, failingStore{loadErr: errors.New("disk on fire")})
	assert.Empty(t, lb.Entries())
}

func TestRecord_SaveFailureKeepsMemory(t *testing.T) {
	lb := newTestLeaderboard(t, failingStore{saveErr: errors.New("read-only")})

	entries, err := lb.Record(context.Background(), "Misty", 8, 40, 10, 4)
	require.Error(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, lb.Query(4), 1)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	lb := newTestLeaderboard(t, store)
	_, err := lb.Record(ctx, "Ash", 12, 45, 10, 4)
	require.NoError(t, err)

	require.NoError(t, lb.Clear(ctx))
	assert.Empty(t, lb.QueryAll())

	blob, err := store.LoadBlob(ctx, StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", blob)
}

func TestWithKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	lb := New(ctx, store, WithKey("other"))
	_, err := lb.Record(ctx, "Ash", 1, 1, 1, 2)
	require.NoError(t, err)

	_, err = store.LoadBlob(ctx, StorageKey)
	assert.ErrorIs(t, err, ErrBlobNotFound)
	_, err = store.LoadBlob(ctx, "other")
	assert.NoError(t, err)
}

func TestDifficultyTier(t *testing.T) {
	assert.Equal(t, "Easy", DifficultyTier(4))
	assert.Equal(t, "Medium", DifficultyTier(6))
	assert.Equal(t, "Hard", DifficultyTier(8))
	assert.Equal(t, "Custom", DifficultyTier(10))
}
