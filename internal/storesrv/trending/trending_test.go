package trending

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vicinaehq/backend/internal/storesrv/db/memstore"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func input(downloads int64, age time.Duration) models.RankingInput {
	return models.RankingInput{ID: uuid.New(), DownloadCount: downloads, CreatedAt: now.Add(-age)}
}

func TestVelocity(t *testing.T) {
	window := 7 * day
	tests := []struct {
		name string
		in   models.RankingInput
		want float64
	}{
		{"younger than a day counts as one day", input(30, time.Hour), 30},
		{"three days old", input(30, 3*day), 10},
		{"older than the window", input(70, 30*day), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Velocity(tt.in, now, window), 1e-9)
		})
	}
}

func TestRankThresholds(t *testing.T) {
	fewDownloads := input(9, time.Hour) // velocity 9 but below 10 downloads
	slow := input(13, 7*day)            // 13 downloads, velocity < 2
	qualifies := input(20, 2*day)       // velocity 10
	got := Rank([]models.RankingInput{fewDownloads, slow, qualifies}, now, DefaultParams())
	assert.Equal(t, []uuid.UUID{qualifies.ID}, got)
}

func TestRankTakesTopPercentile(t *testing.T) {
	var inputs []models.RankingInput
	for i := 1; i <= 11; i++ {
		inputs = append(inputs, input(int64(10*i), day))
	}
	got := Rank(inputs, now, DefaultParams())
	require.Len(t, got, 3, "ceil(11 * 0.2)")
	assert.Equal(t, inputs[10].ID, got[0])
	assert.Equal(t, inputs[9].ID, got[1])
	assert.Equal(t, inputs[8].ID, got[2])
}

func TestRankAlwaysKeepsOneCandidate(t *testing.T) {
	p := DefaultParams()
	p.TopPercentile = 0.01
	only := input(50, day)
	assert.Equal(t, []uuid.UUID{only.ID}, Rank([]models.RankingInput{only, input(0, day)}, now, p))
}

func TestRankNoDownloads(t *testing.T) {
	inputs := []models.RankingInput{input(0, day), input(0, 3*day), input(0, 30*day)}
	assert.Empty(t, Rank(inputs, now, DefaultParams()))
	assert.Empty(t, Rank(nil, now, DefaultParams()))
}

func TestRankIsMonotonicInVelocity(t *testing.T) {
	slow := input(20, 7*day)
	fast := input(20, day)
	p := DefaultParams()
	p.TopPercentile = 0.5
	got := Rank([]models.RankingInput{slow, fast}, now, p)
	assert.Equal(t, []uuid.UUID{fast.ID}, got)

	// raising the slow one's downloads above the fast one's velocity flips the order
	slow.DownloadCount = 500
	got = Rank([]models.RankingInput{slow, fast}, now, p)
	assert.Equal(t, []uuid.UUID{slow.ID}, got)
}

func TestRankerRun(t *testing.T) {
	ctx := context.Background()
	catalog := memstore.New()
	catalog.SetClock(func() time.Time { return now.Add(-2 * day) })

	u, err := catalog.UpsertUser(ctx, "alice", "Alice")
	require.NoError(t, err)
	hot, err := catalog.PublishExtension(ctx, u.ID, "hot", models.ExtensionContent{Title: "Hot"})
	require.NoError(t, err)
	cold, err := catalog.PublishExtension(ctx, u.ID, "cold", models.ExtensionContent{Title: "Cold"})
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		require.NoError(t, catalog.IncrementDownloadCount(ctx, hot.ID))
	}
	require.NoError(t, catalog.SetTrending(ctx, cold.ID, true))

	r := NewRanker(catalog, DefaultParams(), nil)
	r.now = func() time.Time { return now }
	res, runErr := r.Run(ctx)
	require.NoError(t, runErr)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, []uuid.UUID{hot.ID}, res.Trending)

	got, err := catalog.GetExtension(ctx, "alice", "hot")
	require.NoError(t, err)
	assert.True(t, got.Trending)
	got, err = catalog.GetExtension(ctx, "alice", "cold")
	require.NoError(t, err)
	assert.False(t, got.Trending, "a previous flag is cleared")

	require.NoError(t, r.Mark(ctx, cold.ID))
	got, err = catalog.GetExtension(ctx, "alice", "cold")
	require.NoError(t, err)
	assert.True(t, got.Trending)
	require.NoError(t, r.Unmark(ctx, cold.ID))
	assert.Error(t, r.Mark(ctx, uuid.New()))
}

func TestSchedulerRunsUntilCancelled(t *testing.T) {
	catalog := memstore.New()
	r := NewRanker(catalog, DefaultParams(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	NewScheduler(r, 5*time.Millisecond).Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	// a disabled schedule returns immediately
	NewScheduler(r, 0).Start(context.Background())
}
