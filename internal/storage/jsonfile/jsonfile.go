// Package jsonfile stores clients and tasks as two pretty-printed JSON
// arrays on disk, rewritten through a temp file and rename on each change.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"backoffice/internal/core"
	"backoffice/internal/storage"
)

const (
	ClientsFile = "clients.json"
	TasksFile   = "tasks.json"
)

type Store struct {
	dir     string
	clients *storage.Collection[core.Client]
	tasks   *storage.Collection[core.Task]

	// Guarded by the owning collection's lock.
	clientsSeen fileStamp
	tasksSeen   fileStamp
}

var _ storage.Store = (*Store)(nil)

// fileStamp identifies one version of a data file. Every write replaces
// the file through a rename, so a change of identity, size or mtime means
// another process has written it.
type fileStamp struct {
	info os.FileInfo
}

func stampOf(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fileStamp{}, nil
	}
	if err != nil {
		return fileStamp{}, fmt.Errorf("%w: stat %s: %v", core.ErrStorage, path, err)
	}
	return fileStamp{info: info}, nil
}

func (a fileStamp) same(b fileStamp) bool {
	if a.info == nil || b.info == nil {
		return a.info == nil && b.info == nil
	}
	return os.SameFile(a.info, b.info) &&
		a.info.Size() == b.info.Size() &&
		a.info.ModTime().Equal(b.info.ModTime())
}

// New opens (or creates) a store under dir. Missing files start empty; a
// file that does not parse is a storage failure. Reads pick up changes
// written to the files by another process.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", core.ErrStorage, err)
	}

	s := &Store{dir: dir}
	clientsPath := filepath.Join(dir, ClientsFile)
	tasksPath := filepath.Join(dir, TasksFile)

	clients, clientsSeen, err := loadClients(clientsPath)
	if err != nil {
		return nil, err
	}
	tasks, tasksSeen, err := loadTasks(tasksPath)
	if err != nil {
		return nil, err
	}
	s.clientsSeen, s.tasksSeen = clientsSeen, tasksSeen

	s.clients = storage.NewCollection(clients,
		func(c core.Client) core.ID { return c.ID },
		nil,
		func(items []core.Client) error {
			if err := writeArray(clientsPath, items); err != nil {
				return err
			}
			s.clientsSeen, _ = stampOf(clientsPath)
			return nil
		},
	)
	s.tasks = storage.NewCollection(tasks,
		func(t core.Task) core.ID { return t.ID },
		core.Task.Clone,
		func(items []core.Task) error {
			if err := writeArray(tasksPath, items); err != nil {
				return err
			}
			s.tasksSeen, _ = stampOf(tasksPath)
			return nil
		},
	)
	return s, nil
}

func loadClients(path string) ([]core.Client, fileStamp, error) {
	stamp, err := stampOf(path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	var clients []core.Client
	if err := readArray(path, &clients); err != nil {
		return nil, fileStamp{}, err
	}
	return clients, stamp, nil
}

func loadTasks(path string) ([]core.Task, fileStamp, error) {
	stamp, err := stampOf(path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	var tasks []core.Task
	if err := readArray(path, &tasks); err != nil {
		return nil, fileStamp{}, err
	}
	normalized := 0
	for i := range tasks {
		if tasks[i].NormalizeLegacy() {
			normalized++
		}
	}
	if normalized > 0 {
		slog.Info("Normalized legacy task records", "count", normalized, "path", path)
	}
	return tasks, stamp, nil
}

// refreshClients reloads clients.json when it changed since it was last
// read or written here. A failed reload keeps the records already held.
func (s *Store) refreshClients() {
	path := filepath.Join(s.dir, ClientsFile)
	err := s.clients.Reload(func() ([]core.Client, bool, error) {
		stamp, err := stampOf(path)
		if err != nil || stamp.same(s.clientsSeen) {
			return nil, false, err
		}
		items, stamp, err := loadClients(path)
		if err != nil {
			return nil, false, err
		}
		s.clientsSeen = stamp
		return items, true, nil
	})
	if err != nil {
		slog.Warn("Reloading clients failed, serving cached records", "path", path, "error", err)
	}
}

func (s *Store) refreshTasks() {
	path := filepath.Join(s.dir, TasksFile)
	err := s.tasks.Reload(func() ([]core.Task, bool, error) {
		stamp, err := stampOf(path)
		if err != nil || stamp.same(s.tasksSeen) {
			return nil, false, err
		}
		items, stamp, err := loadTasks(path)
		if err != nil {
			return nil, false, err
		}
		s.tasksSeen = stamp
		return items, true, nil
	})
	if err != nil {
		slog.Warn("Reloading tasks failed, serving cached records", "path", path, "error", err)
	}
}

func readArray[T any](path string, out *[]T) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		*out = []T{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", core.ErrStorage, path, err)
	}
	if len(data) == 0 {
		*out = []T{}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: parse %s: %v", core.ErrStorage, path, err)
	}
	return nil
}

func writeArray[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) ListClients(ctx context.Context) ([]core.Client, error) {
	s.refreshClients()
	return s.clients.List(), nil
}

func (s *Store) GetClient(ctx context.Context, id core.ID) (core.Client, error) {
	s.refreshClients()
	return s.clients.Get(id)
}

func (s *Store) UpsertClient(ctx context.Context, c core.Client) error {
	s.refreshClients()
	return s.clients.Upsert(c)
}

func (s *Store) DeleteClient(ctx context.Context, id core.ID) error {
	s.refreshClients()
	return s.clients.Delete(id)
}

func (s *Store) ClientsVersion() uint64 { return s.clients.Version() }

func (s *Store) ListTasks(ctx context.Context) ([]core.Task, error) {
	s.refreshTasks()
	return s.tasks.List(), nil
}

func (s *Store) GetTask(ctx context.Context, id core.ID) (core.Task, error) {
	s.refreshTasks()
	return s.tasks.Get(id)
}

func (s *Store) UpsertTask(ctx context.Context, t core.Task) error {
	s.refreshTasks()
	return s.tasks.Upsert(t)
}

func (s *Store) DeleteTask(ctx context.Context, id core.ID) error {
	s.refreshTasks()
	return s.tasks.Delete(id)
}

func (s *Store) TasksVersion() uint64 { return s.tasks.Version() }

// Ping checks that the data directory is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("%w: stat data dir: %v", core.ErrStorage, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", core.ErrStorage, s.dir)
	}
	return nil
}

func (s *Store) Close() error { return nil }
