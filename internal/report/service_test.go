package report

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/cache"
	"backoffice/internal/core"
	"backoffice/internal/storage/memory"
)

type countingStore struct {
	*memory.Store
	taskLoads atomic.Int32
	fail      error
}

func (s *countingStore) ListTasks(ctx context.Context) ([]core.Task, error) {
	s.taskLoads.Add(1)
	if s.fail != nil {
		return nil, s.fail
	}
	return s.Store.ListTasks(ctx)
}

func newTestService(t *testing.T) (*Service, *countingStore) {
	t.Helper()
	store := &countingStore{Store: memory.New(
		[]core.Client{{ID: "c1", Name: "Alpha"}},
		[]core.Task{task("1", 100, "2024-05-08", 40)},
	)}
	svc := NewService(store, store,
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
		WithCache(cache.NewLRU[Dashboard](16, time.Minute)),
	)
	return svc, store
}

func TestServiceDashboardCachedUntilWrite(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	d1, err := svc.Dashboard(ctx, Query{Preset: PresetThisMonth})
	require.NoError(t, err)
	d2, err := svc.Dashboard(ctx, Query{Preset: PresetThisMonth})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.EqualValues(t, 1, store.taskLoads.Load())

	require.NoError(t, store.UpsertTask(ctx, task("2", 50, "2024-05-09")))
	d3, err := svc.Dashboard(ctx, Query{Preset: PresetThisMonth})
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.taskLoads.Load())
	assert.Equal(t, 2, d3.KPIs.TotalTasks)
}

func TestServiceDashboardRejectsBadPreset(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Dashboard(context.Background(), Query{Preset: "someday"})
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestServiceStorageFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.fail = errors.New("disk on fire")

	_, err := svc.Dashboard(context.Background(), Query{})
	require.Error(t, err)
	_, err = svc.ClientRollups(context.Background())
	require.Error(t, err)
}

func TestServiceTasksFilterAndSort(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertTask(ctx, task("2", 500, "2024-05-01")))

	got, err := svc.Tasks(ctx, TaskFilter{}, SortAmountRemainingDesc)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.ID("2"), got[0].ID)

	got, err = svc.Tasks(ctx, TaskFilter{PayState: "partial"}, SortNewest)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.ID("1"), got[0].ID)
}

func TestServiceCalendarAndDigest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	events, err := svc.Calendar(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "task 1 (Alpha)", events[0].Title)

	d, err := svc.Digest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Count)
	assert.Equal(t, eur(60), d.TotalRemaining)
}
