// Package memory is a process-local store, used by tests and by the memory
// backend.
package memory

import (
	"context"

	"backoffice/internal/core"
	"backoffice/internal/storage"
)

type Store struct {
	clients *storage.Collection[core.Client]
	tasks   *storage.Collection[core.Task]
}

var _ storage.Store = (*Store)(nil)

// New returns a store seeded with the given records.
func New(clients []core.Client, tasks []core.Task) *Store {
	seeded := make([]core.Task, 0, len(tasks))
	for _, t := range tasks {
		t = t.Clone()
		t.NormalizeLegacy()
		seeded = append(seeded, t)
	}
	return &Store{
		clients: storage.NewCollection(append([]core.Client(nil), clients...),
			func(c core.Client) core.ID { return c.ID }, nil, nil),
		tasks: storage.NewCollection(seeded,
			func(t core.Task) core.ID { return t.ID }, core.Task.Clone, nil),
	}
}

func (s *Store) ListClients(ctx context.Context) ([]core.Client, error) {
	return s.clients.List(), nil
}

func (s *Store) GetClient(ctx context.Context, id core.ID) (core.Client, error) {
	return s.clients.Get(id)
}

func (s *Store) UpsertClient(ctx context.Context, c core.Client) error {
	return s.clients.Upsert(c)
}

func (s *Store) DeleteClient(ctx context.Context, id core.ID) error {
	return s.clients.Delete(id)
}

func (s *Store) ClientsVersion() uint64 { return s.clients.Version() }

func (s *Store) ListTasks(ctx context.Context) ([]core.Task, error) {
	return s.tasks.List(), nil
}

func (s *Store) GetTask(ctx context.Context, id core.ID) (core.Task, error) {
	return s.tasks.Get(id)
}

func (s *Store) UpsertTask(ctx context.Context, t core.Task) error {
	return s.tasks.Upsert(t)
}

func (s *Store) DeleteTask(ctx context.Context, id core.ID) error {
	return s.tasks.Delete(id)
}

func (s *Store) TasksVersion() uint64 { return s.tasks.Version() }

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
