package pipeline

import (
	"context"
	"errors"
	"testing"

	"nflqb/pipeline/internal/defense"
	"nflqb/pipeline/internal/ingest"
	"nflqb/pipeline/internal/models"
	"nflqb/pipeline/internal/opponent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Four teams; B and D are on bye in week 2.
func season2024() *season {
	return newSeason(2024).
		game(1, offense{"A", 300, 100, 24}, offense{"B", 200, 50, 10}).
		game(1, offense{"C", 250, 120, 17}, offense{"D", 150, 80, 20}).
		game(2, offense{"A", 100, 50, 7}, offense{"C", 400, 200, 30}).
		game(3, offense{"B", 220, 90, 21}, offense{"D", 180, 70, 14}).
		qb("qa", "A", "B", 1, 25, 300).
		qb("qd", "D", "C", 1, 20, 150).
		qb("qa", "A", "C", 2, 30, 100).
		qb("qc", "C", "A", 2, 25, 400).
		qb("qb", "B", "D", 3, 28, 220)
}

func season2023() *season {
	return newSeason(2023).
		game(18, offense{"C", 300, 100, 30}, offense{"A", 200, 80, 20})
}

func newTestSyncer(store *memStore, opts Options, seasons ...*season) *Syncer {
	feed := &fakeFeed{seasons: map[int]*ingest.SeasonData{}}
	for _, s := range seasons {
		feed.seasons[s.data.Season] = s.data
	}
	return NewSyncer(feed, store, nil, opts)
}

func TestSyncSeason_SnapshotsAndRanks(t *testing.T) {
	store := newMemStore()
	res, err := newTestSyncer(store, Options{}, season2024()).SyncSeason(context.Background(), 2024)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, res.Weeks)
	assert.Equal(t, 12, res.Snapshots)
	assert.Equal(t, 4, res.Games)

	// Week 2: C and D tie on 250 pass yards; D has allowed fewer points
	d, _ := store.snapshot("D", 2024, 2)
	c, _ := store.snapshot("C", 2024, 2)
	b, _ := store.snapshot("B", 2024, 2)
	a, _ := store.snapshot("A", 2024, 2)
	assert.Equal(t, 1, d.PassDefRank)
	assert.Equal(t, 2, c.PassDefRank)
	assert.Equal(t, 3, b.PassDefRank)
	assert.Equal(t, 4, a.PassDefRank)

	assert.Equal(t, 850, a.TotalYardsAllowed)
	assert.Equal(t, 40, a.PointsAllowed)
	assert.Equal(t, 1, a.Wins)
	assert.Equal(t, 1, a.Losses)
}

func TestSyncSeason_ByeCarriesForward(t *testing.T) {
	store := newMemStore()
	_, err := newTestSyncer(store, Options{}, season2024()).SyncSeason(context.Background(), 2024)
	require.NoError(t, err)

	w1, ok := store.snapshot("B", 2024, 1)
	require.True(t, ok)
	w2, ok := store.snapshot("B", 2024, 2)
	require.True(t, ok, "team on bye is still ranked")

	assert.Equal(t, w1.PassYardsAllowed, w2.PassYardsAllowed)
	assert.Equal(t, w1.TotalYardsAllowed, w2.TotalYardsAllowed)
	assert.Equal(t, w1.PointsAllowed, w2.PointsAllowed)
	assert.Equal(t, w1.Losses, w2.Losses)
}

func TestSyncSeason_ContextFromPriorWeek(t *testing.T) {
	store := newMemStore()
	_, err := newTestSyncer(store, Options{}, season2024()).SyncSeason(context.Background(), 2024)
	require.NoError(t, err)

	// Entering week 2, C had the best pass and total defense and no wins.
	// Using C's week-2 snapshot instead would give ranks 2 and 2 and a .500 record.
	qa, ok := store.performance("qa", 2024, 2)
	require.True(t, ok)
	assert.False(t, qa.ContextUnavailable)
	assert.Equal(t, int32(1), qa.Opponent.PassDefRank.Int32)
	assert.Equal(t, int32(1), qa.Opponent.TotalDefRank.Int32)
	assert.Equal(t, 0.0, qa.Opponent.WinPct.Float64)
	assert.True(t, qa.Opponent.WinPct.Valid)
	assert.Equal(t, int32(1), qa.Opponent.SourceWeek.Int32)
	assert.Equal(t, models.ContextPriorWeek, qa.Opponent.Source)

	qc, ok := store.performance("qc", 2024, 2)
	require.True(t, ok)
	assert.Equal(t, int32(2), qc.Opponent.PassDefRank.Int32)
	assert.Equal(t, int32(2), qc.Opponent.TotalDefRank.Int32)
	assert.Equal(t, 1.0, qc.Opponent.WinPct.Float64)

	// D was on bye in week 2; its week-2 snapshot is the state entering week 3
	qb, ok := store.performance("qb", 2024, 3)
	require.True(t, ok)
	assert.Equal(t, int32(2), qb.Opponent.SourceWeek.Int32)
	assert.Equal(t, int32(1), qb.Opponent.PassDefRank.Int32)
	assert.Equal(t, 1.0, qb.Opponent.WinPct.Float64)
}

func TestSyncSeason_WeekOneWithoutPriorSeason(t *testing.T) {
	store := newMemStore()
	res, err := newTestSyncer(store, Options{}, season2024()).SyncSeason(context.Background(), 2024)
	require.NoError(t, err)

	qa, ok := store.performance("qa", 2024, 1)
	require.True(t, ok)
	assert.True(t, qa.ContextUnavailable)
	assert.False(t, qa.Opponent.PassDefRank.Valid)
	assert.False(t, qa.Opponent.TotalDefRank.Valid)
	assert.False(t, qa.Opponent.WinPct.Valid)
	assert.Equal(t, models.ContextUnavailable, qa.Opponent.Source)

	assert.Equal(t, 2, res.ContextUnavailable)
	assert.Equal(t, 5, res.Performances)
}

func TestSyncSeasons_PriorSeasonFallback(t *testing.T) {
	store := newMemStore()
	syncer := newTestSyncer(store, Options{ParallelSeasons: 2}, season2024(), season2023())

	results, err := syncer.SyncSeasons(context.Background(), []int{2024, 2023})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2023, results[0].Season)

	qd, ok := store.performance("qd", 2024, 1)
	require.True(t, ok)
	assert.False(t, qd.ContextUnavailable)
	assert.Equal(t, models.ContextPriorSeason, qd.Opponent.Source)
	assert.Equal(t, int32(2023), qd.Opponent.SourceSeason.Int32)
	assert.Equal(t, int32(18), qd.Opponent.SourceWeek.Int32)
	assert.Equal(t, int32(1), qd.Opponent.PassDefRank.Int32)
	assert.Equal(t, 1.0, qd.Opponent.WinPct.Float64)

	// B did not play in 2023
	qa, ok := store.performance("qa", 2024, 1)
	require.True(t, ok)
	assert.True(t, qa.ContextUnavailable)
}

func TestSyncSeason_Idempotent(t *testing.T) {
	store := newMemStore()
	syncer := newTestSyncer(store, Options{}, season2024())

	first, err := syncer.SyncSeason(context.Background(), 2024)
	require.NoError(t, err)
	snaps1, perfs1 := store.state()

	second, err := syncer.SyncSeason(context.Background(), 2024)
	require.NoError(t, err)
	snaps2, perfs2 := store.state()

	assert.Equal(t, snaps1, snaps2)
	assert.Equal(t, perfs1, perfs2)

	// Unchanged rows keep the run that wrote them
	a, ok := store.snapshot("A", 2024, 1)
	require.True(t, ok)
	assert.Equal(t, first.RunID, a.SyncRunID)
	qa, ok := store.performance("qa", 2024, 2)
	require.True(t, ok)
	assert.Equal(t, first.RunID, qa.SyncRunID)
	assert.Equal(t, int64(5), first.Changed)
	assert.Equal(t, int64(0), second.Changed)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestSyncSeason_NoLookahead(t *testing.T) {
	full := newMemStore()
	_, err := newTestSyncer(full, Options{}, season2024()).SyncSeason(context.Background(), 2024)
	require.NoError(t, err)

	// Same season truncated after week 2: weeks 1 and 2 must not change
	truncated := newSeason(2024).
		game(1, offense{"A", 300, 100, 24}, offense{"B", 200, 50, 10}).
		game(1, offense{"C", 250, 120, 17}, offense{"D", 150, 80, 20}).
		game(2, offense{"A", 100, 50, 7}, offense{"C", 400, 200, 30}).
		qb("qa", "A", "C", 2, 30, 100)

	partial := newMemStore()
	_, err = newTestSyncer(partial, Options{}, truncated).SyncSeason(context.Background(), 2024)
	require.NoError(t, err)

	for _, team := range []string{"A", "B", "C", "D"} {
		for _, week := range []int{1, 2} {
			f, ok := full.snapshot(team, 2024, week)
			require.True(t, ok)
			p, ok := partial.snapshot(team, 2024, week)
			require.True(t, ok)
			f.SyncRunID, p.SyncRunID = "", ""
			assert.Equal(t, f, p, "team %s week %d", team, week)
		}
	}

	f, _ := full.performance("qa", 2024, 2)
	p, _ := partial.performance("qa", 2024, 2)
	assert.Equal(t, f.Opponent, p.Opponent)
}

func TestSyncSeason_ShorterFeedKeepsStoredWeeks(t *testing.T) {
	store := newMemStore()
	cache := &fakeCache{}
	feed := &fakeFeed{seasons: map[int]*ingest.SeasonData{2024: season2024().data}}
	syncer := NewSyncer(feed, store, cache, Options{})

	_, err := syncer.SyncSeason(context.Background(), 2024)
	require.NoError(t, err)
	before, perfsBefore := store.state()

	// Week 3 is missing from the next fetch
	feed.seasons[2024] = newSeason(2024).
		game(1, offense{"A", 300, 100, 24}, offense{"B", 200, 50, 10}).
		game(1, offense{"C", 250, 120, 17}, offense{"D", 150, 80, 20}).
		game(2, offense{"A", 100, 50, 7}, offense{"C", 400, 200, 30}).
		qb("qa", "A", "B", 1, 25, 300).
		qb("qd", "D", "C", 1, 20, 150).
		qb("qa", "A", "C", 2, 30, 100).
		qb("qc", "C", "A", 2, 25, 400).data
	res, err := syncer.SyncSeason(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Weeks)
	assert.Equal(t, int64(0), res.Changed)

	after, perfsAfter := store.state()
	assert.Equal(t, before, after, "snapshots are never deleted by a sync")
	assert.Equal(t, perfsBefore, perfsAfter)

	for _, team := range []string{"A", "B", "C", "D"} {
		_, ok := store.snapshot(team, 2024, 3)
		assert.True(t, ok, "team %s week 3", team)
	}
	qb, ok := store.performance("qb", 2024, 3)
	require.True(t, ok)
	assert.Equal(t, int32(2), qb.Opponent.SourceWeek.Int32)
}

func TestSyncSeason_StrictModeStillWritesRows(t *testing.T) {
	store := newMemStore()
	res, err := newTestSyncer(store, Options{RequireContext: true}, season2024()).SyncSeason(context.Background(), 2024)
	require.Error(t, err)

	var missing *opponent.MissingSnapshotError
	require.True(t, errors.As(err, &missing))
	require.NotNil(t, res)
	assert.Equal(t, 5, res.Performances)

	_, ok := store.performance("qa", 2024, 1)
	assert.True(t, ok, "row is persisted with null context")
}

func TestSyncSeason_JoinReadFailureFlagsRows(t *testing.T) {
	store := newMemStore()
	store.failReads = true

	res, err := newTestSyncer(store, Options{}, season2024()).SyncSeason(context.Background(), 2024)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 5, res.ContextUnavailable)

	qa, ok := store.performance("qa", 2024, 2)
	require.True(t, ok)
	assert.True(t, qa.ContextUnavailable)
}

func TestSyncSeason_DataGapAbortsBeforeWriting(t *testing.T) {
	s := season2024()
	s.data.Records = append(s.data.Records, s.data.Records[0])

	store := newMemStore()
	_, err := newTestSyncer(store, Options{}, s).SyncSeason(context.Background(), 2024)
	require.Error(t, err)

	var gap *defense.DataGapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, defense.ReasonDuplicate, gap.Reason)
	assert.Empty(t, store.weekWrites)
}

func TestSyncSeason_FailedWeekStopsSeason(t *testing.T) {
	store := newMemStore()
	store.failWeek = 2

	_, err := newTestSyncer(store, Options{}, season2024()).SyncSeason(context.Background(), 2024)
	require.Error(t, err)

	_, ok := store.snapshot("A", 2024, 1)
	assert.True(t, ok)
	for _, team := range []string{"A", "B", "C", "D"} {
		_, ok := store.snapshot(team, 2024, 2)
		assert.False(t, ok)
		_, ok = store.snapshot(team, 2024, 3)
		assert.False(t, ok)
	}
	assert.Empty(t, store.perfs)
}

func TestSyncSeason_NotableAndUnknownOpponent(t *testing.T) {
	s := season2024().qb("qx", "A", "ZZZ", 3, 10, 50)

	store := newMemStore()
	res, err := newTestSyncer(store, Options{NotableMinAttempts: 50}, s).SyncSeason(context.Background(), 2024)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	assert.True(t, store.qbs["qa"].IsNotable, "25 + 30 attempts")
	assert.False(t, store.qbs["qc"].IsNotable)
	assert.Equal(t, "A", store.qbs["qa"].TeamID.String)
}

func TestSyncSeasons_FailingSeasonDoesNotStopOthers(t *testing.T) {
	store := newMemStore()
	syncer := newTestSyncer(store, Options{ParallelSeasons: 3}, season2024())

	results, err := syncer.SyncSeasons(context.Background(), []int{2024, 2022})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2022")
	require.Len(t, results, 1)
	assert.Equal(t, 2024, results[0].Season)
}

func TestSyncSeason_InvalidatesEachWrittenWeek(t *testing.T) {
	store := newMemStore()
	cache := &fakeCache{}
	feed := &fakeFeed{seasons: map[int]*ingest.SeasonData{2024: season2024().data}}

	_, err := NewSyncer(feed, store, cache, Options{}).SyncSeason(context.Background(), 2024)
	require.NoError(t, err)

	assert.Equal(t, []snapKey{{season: 2024, week: 1}, {season: 2024, week: 2}, {season: 2024, week: 3}}, cache.weeks)
}

func TestSeasonAttempts(t *testing.T) {
	lines := season2024().data.QBLines
	attempts := SeasonAttempts(lines)
	assert.Equal(t, 55, attempts["qa"])
	assert.Equal(t, 25, attempts["qc"])

	latest := latestLines(lines)
	assert.Equal(t, 2, latest["qa"].Week)
}
