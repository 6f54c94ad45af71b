package optimization

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/yieldopt/internal/database"
	testingpkg "github.com/aristath/yieldopt/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRepository_RecordAndGet(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, database.NameCache)
	defer cleanup()
	repo := NewRunRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	svc := newTestService()
	svc.SetRecorder(repo)
	result := svc.Optimize(ctx, boundaryRequest(), boundaryRows(), WithFilters(map[string]string{"rating": "A"}))
	require.True(t, result.OK())

	run, err := repo.Get(ctx, result.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, "YTM", run.Objective)
	assert.Equal(t, 0.5, run.UpperBound)
	assert.Equal(t, 5.0, run.TargetDuration)
	assert.Equal(t, 0.4, run.SectorCap)
	assert.Equal(t, map[string]string{"rating": "A"}, run.Filters)
	assert.Equal(t, 3, run.InstrumentCount)
	assert.Equal(t, StateFiltered, run.State)
	assert.Equal(t, StatusOptimal, run.Status)
	assert.InDelta(t, result.ObjectiveValue, run.ObjectiveValue, 1e-12)

	require.Len(t, run.Allocations, len(result.Allocations))
	for i, a := range result.Allocations {
		assert.Equal(t, a.Index, run.Allocations[i].Index)
		assert.Equal(t, a.Row.Key, run.Allocations[i].Key)
		assert.Equal(t, a.Weight, run.Allocations[i].Weight)
	}
}

func TestRunRepository_GetMissing(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, database.NameCache)
	defer cleanup()

	run, err := NewRunRepository(db.Conn(), zerolog.Nop()).Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, run)
}

func TestRunRepository_ListAndPrune(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, database.NameCache)
	defer cleanup()
	repo := NewRunRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	now := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.Record(ctx, &Run{
			ID:        id,
			CreatedAt: now.Add(time.Duration(i-2) * time.Hour),
			Objective: "OAS",
			State:     StateRejected,
			Status:    StatusInfeasible,
		}))
	}

	runs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Empty(t, runs[0].Allocations)
	assert.NotNil(t, runs[0].Filters)

	removed, err := repo.Prune(ctx, now.Add(-90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	runs, err = repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunRepository_DuplicateIDFails(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, database.NameCache)
	defer cleanup()
	repo := NewRunRepository(db.Conn(), zerolog.Nop())

	run := &Run{ID: "dup", CreatedAt: time.Now(), Objective: "YTM", State: StateFiltered}
	require.NoError(t, repo.Record(context.Background(), run))
	assert.Error(t, repo.Record(context.Background(), run))
}
