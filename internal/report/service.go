package report

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"backoffice/internal/cache"
	"backoffice/internal/core"
	"backoffice/internal/log"
	"backoffice/internal/storage"
)

// Service loads snapshots from storage and builds the report views. Dashboards
// are cached per store version, so any write makes older entries unreachable.
type Service struct {
	clients storage.ClientStore
	tasks   storage.TaskStore
	cache   *cache.LRU[Dashboard]
	group   singleflight.Group
	logger  *log.Logger
	now     func() time.Time
	loc     *time.Location
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone used for due dates and preset boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithCache enables dashboard caching.
func WithCache(c *cache.LRU[Dashboard]) Option {
	return func(s *Service) { s.cache = c }
}

func NewService(clients storage.ClientStore, tasks storage.TaskStore, opts ...Option) *Service {
	s := &Service{
		clients: clients,
		tasks:   tasks,
		logger:  log.Default().WithComponent(log.ComponentReport),
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time in the report location.
func (s *Service) Now() time.Time { return s.now().In(s.loc) }

func (s *Service) Location() *time.Location { return s.loc }

// snapshot reads both collections concurrently.
func (s *Service) snapshot(ctx context.Context) ([]core.Client, []core.Task, error) {
	var (
		clients []core.Client
		tasks   []core.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clients, err = s.clients.ListClients(gctx)
		if err != nil {
			return fmt.Errorf("load clients: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tasks, err = s.tasks.ListTasks(gctx)
		if err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return clients, tasks, nil
}

func (s *Service) cacheKey(q Query, now time.Time) string {
	return fmt.Sprintf("%d|%d|%s|%s|%s|%s|%s|%s|%s|%s",
		s.clients.ClientsVersion(), s.tasks.TasksVersion(),
		now.Format("2006-01-02"), q.Preset,
		q.From.Format(time.RFC3339), q.To.Format(time.RFC3339),
		q.ClientID, q.Status, q.PayState, q.Search)
}

// Dashboard builds, or returns a cached copy of, the dashboard for q.
func (s *Service) Dashboard(ctx context.Context, q Query) (Dashboard, error) {
	now := s.Now()
	if _, err := Window(q.Preset, now, q.From, q.To); err != nil {
		return Dashboard{}, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	key := s.cacheKey(q, now)
	if s.cache != nil {
		if d, ok := s.cache.Get(key); ok {
			return d, nil
		}
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		clients, tasks, err := s.snapshot(ctx)
		if err != nil {
			return Dashboard{}, err
		}
		d, err := Build(clients, tasks, q, now)
		if err != nil {
			return Dashboard{}, err
		}
		if s.cache != nil {
			s.cache.Set(key, d)
		}
		return d, nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Dashboard build failed",
			log.FieldPreset, q.Preset, log.FieldError, err)
		return Dashboard{}, err
	}
	if shared {
		s.logger.DebugContext(ctx, "Dashboard build shared", log.FieldPreset, q.Preset)
	}
	return v.(Dashboard), nil
}

// ClientRollups returns per-client totals over the whole ledger.
func (s *Service) ClientRollups(ctx context.Context) ([]ClientRollup, error) {
	clients, tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ClientRollups(clients, Rows(clients, tasks, s.loc)), nil
}

// Calendar returns the task calendar between from and to; zero bounds are
// open.
func (s *Service) Calendar(ctx context.Context, from, to time.Time) ([]CalendarEvent, error) {
	clients, tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return CalendarEvents(Rows(clients, tasks, s.loc), Range{From: from, To: to}, s.Now()), nil
}

// Tasks returns the tasks matching f in the given order.
func (s *Service) Tasks(ctx context.Context, f TaskFilter, mode SortMode) ([]core.Task, error) {
	clients, tasks, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rows := Filter(Rows(clients, tasks, s.loc), f)
	Sort(rows, mode)
	out := make([]core.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Task)
	}
	return out, nil
}

// Digest summarizes the overdue balance as of now.
func (s *Service) Digest(ctx context.Context) (OverdueDigest, error) {
	clients, tasks, err := s.snapshot(ctx)
	if err != nil {
		return OverdueDigest{}, err
	}
	return BuildDigest(Rows(clients, tasks, s.loc), s.Now()), nil
}
