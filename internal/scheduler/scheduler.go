// Package scheduler runs periodic jobs: currently the overdue digest.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"backoffice/internal/ledger"
	"backoffice/internal/log"
	"backoffice/internal/report"
)

// EventOverdueDigest is published after each digest run when a publisher is
// configured.
const EventOverdueDigest = "digest.overdue"

// DigestSource computes the digest from the current ledger.
type DigestSource interface {
	Digest(ctx context.Context) (report.OverdueDigest, error)
}

type Scheduler struct {
	cron      *cron.Cron
	source    DigestSource
	publisher ledger.EventPublisher
	logger    *log.Logger
	timeout   time.Duration
}

// New registers the digest on schedule, a standard five-field cron
// expression evaluated in loc. publisher may be nil.
func New(schedule string, loc *time.Location, source DigestSource, publisher ledger.EventPublisher) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		source:    source,
		publisher: publisher,
		logger:    log.Default().WithComponent(log.ComponentScheduler),
		timeout:   time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("schedule digest %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for a running job until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunDigest(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Overdue digest failed",
			log.FieldOperation, log.OpDigest, log.FieldError, err)
	}
}

// RunDigest computes the digest, logs a summary and publishes it.
func (s *Scheduler) RunDigest(ctx context.Context) (report.OverdueDigest, error) {
	d, err := s.source.Digest(ctx)
	if err != nil {
		return report.OverdueDigest{}, fmt.Errorf("compute digest: %w", err)
	}

	args := []any{
		log.FieldOperation, log.OpDigest,
		"overdue_tasks", d.Count,
		"remaining_cents", d.TotalRemaining.Cents,
	}
	for _, b := range d.Aging {
		args = append(args, "bucket_"+b.Bucket, b.Remaining.Cents)
	}
	if d.Count > 0 {
		s.logger.WarnContext(ctx, "Overdue digest", args...)
	} else {
		s.logger.InfoContext(ctx, "Overdue digest", args...)
	}

	if s.publisher != nil {
		ev := ledger.Event{
			Type:   EventOverdueDigest,
			Title:  fmt.Sprintf("%d overdue tasks", d.Count),
			Amount: d.TotalRemaining,
			At:     d.GeneratedAt,
		}
		if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish overdue digest", log.FieldError, err)
		}
	}
	return d, nil
}
