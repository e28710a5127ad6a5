// Package registry manages client records. Deleting a client leaves its
// tasks in place and reports how many were orphaned.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/core"
	"backoffice/internal/log"
	"backoffice/internal/storage"
)

// TaskLister is the read side of the ledger the registry joins against.
type TaskLister interface {
	List(ctx context.Context) ([]core.Task, error)
}

type ClientInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	AFM     string `json:"afm"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Notes   string `json:"notes"`
	Region  string `json:"region"`
}

type ClientPatch struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	AFM     *string `json:"afm"`
	Company *string `json:"company"`
	Email   *string `json:"email"`
	Notes   *string `json:"notes"`
	Region  *string `json:"region"`
}

// ClientWithTasks is a client joined with the tasks that reference it.
type ClientWithTasks struct {
	core.Client
	Tasks []core.Task `json:"tasks"`
}

type DeleteResult struct {
	ID            core.ID `json:"id"`
	OrphanedTasks int     `json:"orphanedTasks"`
}

type Registry struct {
	store  storage.ClientStore
	tasks  TaskLister
	logger *log.Logger
	now    func() time.Time
	newID  func() core.ID
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithIDGenerator(gen func() core.ID) Option {
	return func(r *Registry) { r.newID = gen }
}

func New(store storage.ClientStore, tasks TaskLister, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		tasks:  tasks,
		logger: log.Default().WithComponent(log.ComponentRegistry),
		now:    time.Now,
		newID:  core.NewID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) List(ctx context.Context) ([]core.Client, error) {
	clients, err := r.store.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

func (r *Registry) Get(ctx context.Context, id core.ID) (core.Client, error) {
	c, err := r.store.GetClient(ctx, id)
	if err != nil {
		return core.Client{}, fmt.Errorf("get client %s: %w", id, err)
	}
	return c, nil
}

// Create stores a new client. Field checks are advisory unless strict is
// set, in which case a failing check rejects the client.
func (r *Registry) Create(ctx context.Context, in ClientInput, strict bool) (core.Client, error) {
	c := core.Client{
		ID:        r.newID(),
		Name:      strings.TrimSpace(in.Name),
		Phone:     strings.TrimSpace(in.Phone),
		AFM:       strings.TrimSpace(in.AFM),
		Company:   strings.TrimSpace(in.Company),
		Email:     strings.TrimSpace(in.Email),
		Notes:     in.Notes,
		Region:    strings.TrimSpace(in.Region),
		CreatedAt: r.now(),
	}
	if err := c.Validate(); err != nil {
		if strict {
			return core.Client{}, err
		}
		r.logger.WarnContext(ctx, "Client stored with incomplete details",
			log.FieldClientID, c.ID, log.FieldError, err)
	}
	if err := r.store.UpsertClient(ctx, c); err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", err)
	}
	r.logger.InfoContext(ctx, "Client created", log.FieldClientID, c.ID)
	return c, nil
}

func (r *Registry) Update(ctx context.Context, id core.ID, patch ClientPatch) (core.Client, error) {
	c, err := r.store.GetClient(ctx, id)
	if err != nil {
		return core.Client{}, fmt.Errorf("update client %s: %w", id, err)
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&c.Name, patch.Name)
	set(&c.Phone, patch.Phone)
	set(&c.AFM, patch.AFM)
	set(&c.Company, patch.Company)
	set(&c.Email, patch.Email)
	set(&c.Region, patch.Region)
	if patch.Notes != nil {
		c.Notes = *patch.Notes
	}

	if err := r.store.UpsertClient(ctx, c); err != nil {
		return core.Client{}, fmt.Errorf("update client %s: %w", id, err)
	}
	r.logger.InfoContext(ctx, "Client updated", log.FieldClientID, c.ID)
	return c, nil
}

// Delete removes the client. Tasks that reference it are kept and counted.
func (r *Registry) Delete(ctx context.Context, id core.ID) (DeleteResult, error) {
	if err := r.store.DeleteClient(ctx, id); err != nil {
		return DeleteResult{}, fmt.Errorf("delete client %s: %w", id, err)
	}
	res := DeleteResult{ID: id}
	if r.tasks != nil {
		tasks, err := r.tasks.List(ctx)
		if err != nil {
			// The client is already gone; only the count is missing.
			r.logger.ErrorContext(ctx, "Failed to count orphaned tasks",
				log.FieldClientID, id, log.FieldError, err)
			return res, nil
		}
		for _, t := range tasks {
			if t.ClientID == id {
				res.OrphanedTasks++
			}
		}
	}
	if res.OrphanedTasks > 0 {
		r.logger.WarnContext(ctx, "Client deleted with tasks still referencing it",
			log.FieldClientID, id, log.FieldOrphanedTasks, res.OrphanedTasks)
	} else {
		r.logger.InfoContext(ctx, "Client deleted", log.FieldClientID, id)
	}
	return res, nil
}

// ListWithTasks joins every client with its tasks, matching ids as strings.
func (r *Registry) ListWithTasks(ctx context.Context) ([]ClientWithTasks, error) {
	clients, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var tasks []core.Task
	if r.tasks != nil {
		if tasks, err = r.tasks.List(ctx); err != nil {
			return nil, fmt.Errorf("list tasks for clients: %w", err)
		}
	}
	byClient := make(map[core.ID][]core.Task, len(clients))
	for _, t := range tasks {
		byClient[t.ClientID] = append(byClient[t.ClientID], t)
	}
	out := make([]ClientWithTasks, 0, len(clients))
	for _, c := range clients {
		ts := byClient[c.ID]
		if ts == nil {
			ts = []core.Task{}
		}
		out = append(out, ClientWithTasks{Client: c, Tasks: ts})
	}
	return out, nil
}
