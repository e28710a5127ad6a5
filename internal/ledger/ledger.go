// Package ledger owns tasks and their payment logs. It is the only writer
// of task records and keeps paid equal to the sum of the payment log.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"backoffice/internal/core"
	"backoffice/internal/log"
	"backoffice/internal/storage"
)

// EventPublisher receives ledger events after a successful write.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev Event) error
}

// Event describes one ledger mutation.
type Event struct {
	Type     string     `json:"type"`
	TaskID   core.ID    `json:"taskId"`
	ClientID core.ID    `json:"clientId"`
	Title    string     `json:"title,omitempty"`
	Amount   core.Money `json:"amount"`
	Paid     core.Money `json:"paid"`
	Cost     core.Money `json:"cost"`
	At       time.Time  `json:"at"`
}

const (
	EventTaskCreated     = "task.created"
	EventTaskUpdated     = "task.updated"
	EventTaskDeleted     = "task.deleted"
	EventPaymentRecorded = "payment.recorded"
)

// TaskInput is the body of a create request. Nil pointers mean "not
// supplied".
type TaskInput struct {
	ClientID    core.ID         `json:"clientId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Cost        core.Money      `json:"cost"`
	Date        string          `json:"date"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	Paid        *core.Money     `json:"paid"`
	Payments    *[]core.Payment `json:"payments"`
}

// TaskPatch is a partial update. Only non-nil fields are applied; id and
// createdAt are not patchable.
type TaskPatch struct {
	ClientID    *core.ID        `json:"clientId"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Cost        *core.Money     `json:"cost"`
	Date        *string         `json:"date"`
	Status      *string         `json:"status"`
	Priority    *string         `json:"priority"`
	Paid        *core.Money     `json:"paid"`
	Payments    *[]core.Payment `json:"payments"`
}

type Ledger struct {
	store     storage.TaskStore
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
	newID     func() core.ID

	// mu serializes read-check-write sequences so two payments cannot both
	// pass the remaining-balance check. Events are published after it is
	// released.
	mu sync.Mutex
}

type Option func(*Ledger)

func WithPublisher(p EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(gen func() core.ID) Option {
	return func(l *Ledger) { l.newID = gen }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func New(store storage.TaskStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		now:    time.Now,
		newID:  core.NewID,
		logger: log.Default().WithComponent(log.ComponentLedger),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) List(ctx context.Context) ([]core.Task, error) {
	tasks, err := l.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (l *Ledger) Get(ctx context.Context, id core.ID) (core.Task, error) {
	t, err := l.store.GetTask(ctx, id)
	if err != nil {
		return core.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// Create stores a new task. An explicit payments array wins over an
// explicit paid value; a bare paid value becomes an opening payment.
func (l *Ledger) Create(ctx context.Context, in TaskInput) (core.Task, error) {
	status, priority, err := parseEnums(in.Status, in.Priority)
	if err != nil {
		return core.Task{}, err
	}
	if in.Cost.Cents < 0 {
		return core.Task{}, fieldError("cost", "must not be negative")
	}

	now := l.now()
	t := core.Task{
		ID:          l.newID(),
		ClientID:    in.ClientID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Cost:        in.Cost,
		Date:        strings.TrimSpace(in.Date),
		Status:      status,
		Priority:    priority,
		Payments:    []core.Payment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	switch {
	case in.Payments != nil:
		t.Payments = core.NormalizePayments(*in.Payments, t.Cost, now)
	case in.Paid != nil && in.Paid.IsPositive():
		opening := core.MinMoney(*in.Paid, t.Cost)
		if opening.IsPositive() {
			t.Payments = []core.Payment{{Amount: opening, At: now}}
		}
	}
	t.Paid = t.PaymentsTotal()

	if err := l.store.UpsertTask(ctx, t); err != nil {
		return core.Task{}, fmt.Errorf("create task: %w", err)
	}
	l.logger.InfoContext(ctx, "Task created",
		log.FieldTaskID, t.ID, log.FieldClientID, t.ClientID, log.FieldAmountCents, t.Cost.Cents)
	l.publish(ctx, EventTaskCreated, t, core.Money{})
	return t, nil
}

// Update merges patch over the stored task. A payments array replaces the
// log; a paid value above the current total appends an adjustment entry.
func (l *Ledger) Update(ctx context.Context, id core.ID, patch TaskPatch) (core.Task, error) {
	t, err := l.update(ctx, id, patch)
	if err != nil {
		return core.Task{}, err
	}
	l.publish(ctx, EventTaskUpdated, t, core.Money{})
	return t, nil
}

func (l *Ledger) update(ctx context.Context, id core.ID, patch TaskPatch) (core.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.store.GetTask(ctx, id)
	if err != nil {
		return core.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	now := l.now()

	if patch.ClientID != nil {
		t.ClientID = *patch.ClientID
	}
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Date != nil {
		t.Date = strings.TrimSpace(*patch.Date)
	}
	if patch.Status != nil {
		st, ok := core.ParseStatus(*patch.Status)
		if !ok {
			return core.Task{}, fieldError("status", "unknown status")
		}
		t.Status = st
	}
	if patch.Priority != nil {
		pr, ok := core.ParsePriority(*patch.Priority)
		if !ok {
			return core.Task{}, fieldError("priority", "unknown priority")
		}
		t.Priority = pr
	}
	if patch.Cost != nil {
		if patch.Cost.Cents < 0 {
			return core.Task{}, fieldError("cost", "must not be negative")
		}
		t.Cost = *patch.Cost
	}

	switch {
	case patch.Payments != nil:
		t.Payments = core.NormalizePayments(*patch.Payments, t.Cost, now)
	default:
		// Lowering cost below what was already collected trims the log.
		t.Payments = core.NormalizePayments(t.Payments, t.Cost, now)
		if patch.Paid != nil {
			current := t.PaymentsTotal()
			target := patch.Paid.Clamp(core.Money{}, t.Cost)
			switch {
			case target.Cents > current.Cents:
				t.Payments = append(t.Payments, core.Payment{Amount: target.Sub(current), At: now})
			case target.Cents < current.Cents:
				return core.Task{}, fieldError("paid", "cannot be lower than the recorded payments")
			}
		}
	}
	t.Paid = t.PaymentsTotal()
	t.UpdatedAt = now

	if err := l.store.UpsertTask(ctx, t); err != nil {
		return core.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	l.logger.InfoContext(ctx, "Task updated", log.FieldTaskID, t.ID, log.FieldPaidCents, t.Paid.Cents)
	return t, nil
}

func (l *Ledger) Delete(ctx context.Context, id core.ID) error {
	t, err := l.delete(ctx, id)
	if err != nil {
		return err
	}
	l.publish(ctx, EventTaskDeleted, t, core.Money{})
	return nil
}

func (l *Ledger) delete(ctx context.Context, id core.ID) (core.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.store.GetTask(ctx, id)
	if err != nil {
		return core.Task{}, fmt.Errorf("delete task %s: %w", id, err)
	}
	if err := l.store.DeleteTask(ctx, id); err != nil {
		return core.Task{}, fmt.Errorf("delete task %s: %w", id, err)
	}
	l.logger.InfoContext(ctx, "Task deleted", log.FieldTaskID, id)
	return t, nil
}

// RecordPayment appends a payment. It fails without touching the task when
// the amount is not positive or exceeds the remaining balance.
func (l *Ledger) RecordPayment(ctx context.Context, id core.ID, amount core.Money) (core.Task, error) {
	t, err := l.recordPayment(ctx, id, amount)
	if err != nil {
		return core.Task{}, err
	}
	l.publish(ctx, EventPaymentRecorded, t, amount)
	return t, nil
}

func (l *Ledger) recordPayment(ctx context.Context, id core.ID, amount core.Money) (core.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, err := l.store.GetTask(ctx, id)
	if err != nil {
		return core.Task{}, fmt.Errorf("record payment on %s: %w", id, err)
	}
	if !amount.IsPositive() {
		return core.Task{}, core.ErrInvalidAmount
	}
	paid := t.PaymentsTotal()
	remaining := core.MaxMoney(t.Cost.Sub(paid), core.Money{})
	if amount.Cents > remaining.Cents {
		return core.Task{}, core.ErrAmountExceedsRemaining
	}

	now := l.now()
	t.Payments = append(t.Payments, core.Payment{Amount: amount, At: now})
	t.Paid = core.MinMoney(t.Cost, paid.Add(amount))
	t.UpdatedAt = now

	if err := l.store.UpsertTask(ctx, t); err != nil {
		return core.Task{}, fmt.Errorf("record payment on %s: %w", id, err)
	}
	l.logger.InfoContext(ctx, "Payment recorded",
		log.FieldTaskID, t.ID, log.FieldAmountCents, amount.Cents, log.FieldPaidCents, t.Paid.Cents)
	return t, nil
}

// CountByClient reports how many tasks reference clientID.
func (l *Ledger) CountByClient(ctx context.Context, clientID core.ID) (int, error) {
	tasks, err := l.store.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	n := 0
	for _, t := range tasks {
		if t.ClientID == clientID {
			n++
		}
	}
	return n, nil
}

func (l *Ledger) publish(ctx context.Context, typ string, t core.Task, amount core.Money) {
	if l.publisher == nil {
		return
	}
	ev := Event{
		Type:     typ,
		TaskID:   t.ID,
		ClientID: t.ClientID,
		Title:    t.Title,
		Amount:   amount,
		Paid:     t.Paid,
		Cost:     t.Cost,
		At:       l.now(),
	}
	if err := l.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		// The write already succeeded; consumers catch up from storage.
		l.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldTaskID, t.ID, "event", typ, log.FieldError, err)
	}
}

func parseEnums(status, priority string) (core.Status, core.Priority, error) {
	verr := &core.ValidationError{}
	st, ok := core.ParseStatus(status)
	if !ok {
		verr.Add("status", "unknown status")
	}
	pr, ok := core.ParsePriority(priority)
	if !ok {
		verr.Add("priority", "unknown priority")
	}
	return st, pr, verr.OrNil()
}

func fieldError(field, msg string) error {
	verr := &core.ValidationError{}
	verr.Add(field, msg)
	return verr
}
