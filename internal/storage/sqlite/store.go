// Package sqlite is the SQLite backend. Tasks and their payment log live in
// separate tables; a task upsert rewrites its payment rows in the same
// transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"backoffice/internal/core"
	"backoffice/internal/storage"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type Store struct {
	db             *sql.DB
	clientsVersion atomic.Uint64
	tasksVersion   atomic.Uint64
}

var _ storage.Store = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite store ready", "path", dbPath)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping sqlite: %v", core.ErrStorage, err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrStorage, op, err)
}

const clientColumns = `id, name, phone, afm, company, email, notes, region, created_at`

func (s *Store) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY rowid`)
	if err != nil {
		return nil, storageErr("list clients", err)
	}
	defer rows.Close()

	clients := []core.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, storageErr("scan client", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list clients", err)
	}
	return clients, nil
}

func (s *Store) GetClient(ctx context.Context, id core.ID) (core.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, string(id))
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Client{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Client{}, storageErr("get client", err)
	}
	return c, nil
}

func (s *Store) UpsertClient(ctx context.Context, c core.Client) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			afm = excluded.afm,
			company = excluded.company,
			email = excluded.email,
			notes = excluded.notes,
			region = excluded.region,
			created_at = excluded.created_at`,
		string(c.ID), c.Name, c.Phone, c.AFM, c.Company, c.Email, c.Notes, c.Region,
		c.CreatedAt.Format(timeLayout))
	if err != nil {
		return storageErr("upsert client", err)
	}
	s.clientsVersion.Add(1)
	return nil
}

func (s *Store) DeleteClient(ctx context.Context, id core.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, string(id))
	if err != nil {
		return storageErr("delete client", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	s.clientsVersion.Add(1)
	return nil
}

func (s *Store) ClientsVersion() uint64 { return s.clientsVersion.Load() }

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(sc scanner) (core.Client, error) {
	var (
		c       core.Client
		id      string
		created string
	)
	if err := sc.Scan(&id, &c.Name, &c.Phone, &c.AFM, &c.Company, &c.Email, &c.Notes, &c.Region, &created); err != nil {
		return core.Client{}, err
	}
	c.ID = core.ID(id)
	c.CreatedAt = parseTime(created)
	return c, nil
}

const taskColumns = `id, client_id, title, description, cost_cents, due_date, status, priority, created_at, updated_at`

func (s *Store) ListTasks(ctx context.Context) ([]core.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY rowid`)
	if err != nil {
		return nil, storageErr("list tasks", err)
	}
	tasks := []core.Task{}
	byID := map[core.ID]int{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, storageErr("scan task", err)
		}
		byID[t.ID] = len(tasks)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storageErr("list tasks", err)
	}
	rows.Close()

	prows, err := s.db.QueryContext(ctx, `SELECT task_id, amount_cents, paid_at FROM payments ORDER BY task_id, position`)
	if err != nil {
		return nil, storageErr("list payments", err)
	}
	defer prows.Close()
	for prows.Next() {
		var (
			taskID string
			cents  int64
			at     string
		)
		if err := prows.Scan(&taskID, &cents, &at); err != nil {
			return nil, storageErr("scan payment", err)
		}
		if pos, ok := byID[core.ID(taskID)]; ok {
			tasks[pos].Payments = append(tasks[pos].Payments, core.Payment{Amount: core.Cents(cents), At: parseTime(at)})
		}
	}
	if err := prows.Err(); err != nil {
		return nil, storageErr("list payments", err)
	}
	for i := range tasks {
		tasks[i].Paid = tasks[i].PaymentsTotal()
	}
	return tasks, nil
}

func (s *Store) GetTask(ctx context.Context, id core.ID) (core.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, string(id))
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Task{}, storageErr("get task", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT amount_cents, paid_at FROM payments WHERE task_id = ? ORDER BY position`, string(id))
	if err != nil {
		return core.Task{}, storageErr("get payments", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cents int64
			at    string
		)
		if err := rows.Scan(&cents, &at); err != nil {
			return core.Task{}, storageErr("scan payment", err)
		}
		t.Payments = append(t.Payments, core.Payment{Amount: core.Cents(cents), At: parseTime(at)})
	}
	if err := rows.Err(); err != nil {
		return core.Task{}, storageErr("get payments", err)
	}
	t.Paid = t.PaymentsTotal()
	return t, nil
}

func (s *Store) UpsertTask(ctx context.Context, t core.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin upsert task", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			title = excluded.title,
			description = excluded.description,
			cost_cents = excluded.cost_cents,
			due_date = excluded.due_date,
			status = excluded.status,
			priority = excluded.priority,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		string(t.ID), string(t.ClientID), t.Title, t.Description, t.Cost.Cents, t.Date,
		string(t.Status), string(t.Priority), t.CreatedAt.Format(timeLayout), t.UpdatedAt.Format(timeLayout))
	if err != nil {
		return storageErr("upsert task", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE task_id = ?`, string(t.ID)); err != nil {
		return storageErr("clear payments", err)
	}
	for i, p := range t.Payments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payments (task_id, position, amount_cents, paid_at) VALUES (?, ?, ?, ?)`,
			string(t.ID), i, p.Amount.Cents, p.At.Format(timeLayout)); err != nil {
			return storageErr("insert payment", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit upsert task", err)
	}
	s.tasksVersion.Add(1)
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id core.ID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin delete task", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, string(id))
	if err != nil {
		return storageErr("delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE task_id = ?`, string(id)); err != nil {
		return storageErr("delete payments", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit delete task", err)
	}
	s.tasksVersion.Add(1)
	return nil
}

func (s *Store) TasksVersion() uint64 { return s.tasksVersion.Load() }

func scanTask(sc scanner) (core.Task, error) {
	var (
		t                core.Task
		id, clientID     string
		status, priority string
		cost             int64
		created, updated string
	)
	if err := sc.Scan(&id, &clientID, &t.Title, &t.Description, &cost, &t.Date, &status, &priority, &created, &updated); err != nil {
		return core.Task{}, err
	}
	t.ID = core.ID(id)
	t.ClientID = core.ID(clientID)
	t.Cost = core.Cents(cost)
	t.Status = core.Status(status)
	t.Priority = core.Priority(priority)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	t.Payments = []core.Payment{}
	return t, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
