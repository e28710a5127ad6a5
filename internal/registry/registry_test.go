package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
	"backoffice/internal/ledger"
	"backoffice/internal/storage/memory"
)

var fixedNow = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) (*Registry, *ledger.Ledger) {
	t.Helper()
	store := memory.New(nil, nil)
	l := ledger.New(store, ledger.WithClock(func() time.Time { return fixedNow }))
	return New(store, l, WithClock(func() time.Time { return fixedNow })), l
}

func validInput() ClientInput {
	return ClientInput{Name: "A", Email: "a@a.com", Phone: "6912345678", AFM: "123456789", Company: "X"}
}

func TestCreateAndGet(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	c, err := r.Create(ctx, validInput(), true)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, fixedNow, c.CreatedAt)

	got, err := r.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestCreateValidation(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	in := validInput()
	in.Phone = "2101234567"

	_, err := r.Create(ctx, in, true)
	require.ErrorIs(t, err, core.ErrValidation)

	c, err := r.Create(ctx, in, false)
	require.NoError(t, err, "checks are advisory without strict")
	assert.Equal(t, "2101234567", c.Phone)
}

func TestUpdateShallowMerge(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	c, err := r.Create(ctx, validInput(), false)
	require.NoError(t, err)

	var patch ClientPatch
	require.NoError(t, json.Unmarshal([]byte(`{"region":"Αττική","notes":"vip"}`), &patch))
	updated, err := r.Update(ctx, c.ID, patch)
	require.NoError(t, err)

	assert.Equal(t, c.ID, updated.ID)
	assert.Equal(t, c.Name, updated.Name)
	assert.Equal(t, "Αττική", updated.Region)
	assert.Equal(t, "vip", updated.Notes)
	assert.Equal(t, c.CreatedAt, updated.CreatedAt)

	_, err = r.Update(ctx, "missing", patch)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteReportsOrphans(t *testing.T) {
	r, l := newTestRegistry(t)
	ctx := context.Background()

	c, err := r.Create(ctx, validInput(), false)
	require.NoError(t, err)
	_, err = l.Create(ctx, ledger.TaskInput{ClientID: c.ID, Title: "video"})
	require.NoError(t, err)
	_, err = l.Create(ctx, ledger.TaskInput{ClientID: "other", Title: "photo"})
	require.NoError(t, err)

	res, err := r.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.OrphanedTasks)

	tasks, err := l.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 2, "tasks are not cascade-deleted")

	clients, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, clients)

	_, err = r.Delete(ctx, c.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestListWithTasks(t *testing.T) {
	r, l := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Create(ctx, validInput(), false)
	require.NoError(t, err)
	b, err := r.Create(ctx, validInput(), false)
	require.NoError(t, err)
	_, err = l.Create(ctx, ledger.TaskInput{ClientID: a.ID, Title: "one"})
	require.NoError(t, err)
	_, err = l.Create(ctx, ledger.TaskInput{ClientID: a.ID, Title: "two"})
	require.NoError(t, err)

	joined, err := r.ListWithTasks(ctx)
	require.NoError(t, err)
	require.Len(t, joined, 2)
	assert.Equal(t, a.ID, joined[0].ID)
	assert.Len(t, joined[0].Tasks, 2)
	assert.Equal(t, b.ID, joined[1].ID)
	assert.NotNil(t, joined[1].Tasks)
	assert.Empty(t, joined[1].Tasks)
}

func TestListWithTasksMatchesLegacyNumericIDs(t *testing.T) {
	var tasks []core.Task
	require.NoError(t, json.Unmarshal([]byte(`[{"id":1,"clientId":1712000000000,"title":"x"}]`), &tasks))
	store := memory.New([]core.Client{{ID: "1712000000000", Name: "Legacy"}}, tasks)
	r := New(store, ledger.New(store))

	joined, err := r.ListWithTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Len(t, joined[0].Tasks, 1)
}
