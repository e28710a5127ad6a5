// Package storage defines the record stores behind the client registry and
// the task ledger. Every store offers atomic single-record operations and a
// version counter that advances on each successful write.
package storage

import (
	"context"

	"backoffice/internal/core"
)

// ErrNotFound is returned by Get and Delete for absent records.
var ErrNotFound = core.ErrNotFound

type ClientStore interface {
	ListClients(ctx context.Context) ([]core.Client, error)
	GetClient(ctx context.Context, id core.ID) (core.Client, error)
	UpsertClient(ctx context.Context, c core.Client) error
	DeleteClient(ctx context.Context, id core.ID) error
	ClientsVersion() uint64
}

type TaskStore interface {
	ListTasks(ctx context.Context) ([]core.Task, error)
	GetTask(ctx context.Context, id core.ID) (core.Task, error)
	UpsertTask(ctx context.Context, t core.Task) error
	DeleteTask(ctx context.Context, id core.ID) error
	TasksVersion() uint64
}

// Store is a complete backend.
type Store interface {
	ClientStore
	TaskStore
	Ping(ctx context.Context) error
	Close() error
}
