// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
	"backoffice/internal/storage"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleClient(id string) core.Client {
	return core.Client{
		ID: core.ID(id), Name: "Client " + id, Phone: "6912345678", AFM: "123456789",
		Company: "Co " + id, Email: id + "@example.com", Region: "Attica", CreatedAt: base,
	}
}

func sampleTask(id, clientID string, costCents int64, payments ...int64) core.Task {
	t := core.Task{
		ID: core.ID(id), ClientID: core.ID(clientID), Title: "Task " + id,
		Cost: core.Cents(costCents), Date: "2024-04-01",
		Status: core.StatusInProgress, Priority: core.PriorityHigh,
		Payments:  []core.Payment{},
		CreatedAt: base, UpdatedAt: base,
	}
	for i, p := range payments {
		t.Payments = append(t.Payments, core.Payment{Amount: core.Cents(p), At: base.Add(time.Duration(i+1) * time.Hour)})
	}
	t.Paid = t.PaymentsTotal()
	return t
}

// assertTask compares tasks field by field; times are compared as instants
// because backends may return them in another zone.
func assertTask(t *testing.T, want, got core.Task) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.ClientID, got.ClientID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Cost, got.Cost)
	assert.Equal(t, want.Paid, got.Paid)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Priority, got.Priority)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt %v != %v", want.CreatedAt, got.CreatedAt)
	require.Len(t, got.Payments, len(want.Payments))
	for i := range want.Payments {
		assert.Equal(t, want.Payments[i].Amount, got.Payments[i].Amount)
		assert.True(t, want.Payments[i].At.Equal(got.Payments[i].At))
	}
}

// Run exercises a fresh, empty store returned by open.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Run("clients", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		list, err := s.ListClients(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		v0 := s.ClientsVersion()
		require.NoError(t, s.UpsertClient(ctx, sampleClient("a")))
		require.NoError(t, s.UpsertClient(ctx, sampleClient("b")))
		assert.Greater(t, s.ClientsVersion(), v0)

		updated := sampleClient("a")
		updated.Name = "Renamed"
		require.NoError(t, s.UpsertClient(ctx, updated))

		got, err := s.GetClient(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.True(t, base.Equal(got.CreatedAt))

		list, err = s.ListClients(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, core.ID("a"), list[0].ID, "upsert keeps insertion order")

		_, err = s.GetClient(ctx, "zzz")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		v1 := s.ClientsVersion()
		require.NoError(t, s.DeleteClient(ctx, "a"))
		assert.Greater(t, s.ClientsVersion(), v1)
		assert.ErrorIs(t, s.DeleteClient(ctx, "a"), storage.ErrNotFound)
	})

	t.Run("tasks and payments", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		want := sampleTask("1", "a", 10000, 2500, 1500)
		require.NoError(t, s.UpsertTask(ctx, want))
		require.NoError(t, s.UpsertTask(ctx, sampleTask("2", "a", 500)))

		got, err := s.GetTask(ctx, "1")
		require.NoError(t, err)
		assertTask(t, want, got)

		// A replaced payment log must not leave old rows behind.
		want = sampleTask("1", "a", 10000, 9000)
		require.NoError(t, s.UpsertTask(ctx, want))
		got, err = s.GetTask(ctx, "1")
		require.NoError(t, err)
		assertTask(t, want, got)

		list, err := s.ListTasks(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assertTask(t, want, list[0])
		assert.NotNil(t, list[1].Payments)

		v := s.TasksVersion()
		require.NoError(t, s.DeleteTask(ctx, "1"))
		assert.Greater(t, s.TasksVersion(), v)
		_, err = s.GetTask(ctx, "1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, s.DeleteTask(ctx, "1"), storage.ErrNotFound)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.UpsertTask(ctx, sampleTask("1", "a", 1000, 100)))

		got, err := s.GetTask(ctx, "1")
		require.NoError(t, err)
		got.Payments[0].Amount = core.Cents(999)

		again, err := s.GetTask(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, core.Cents(100), again.Payments[0].Amount)
	})

	t.Run("ping", func(t *testing.T) {
		s := open(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}
