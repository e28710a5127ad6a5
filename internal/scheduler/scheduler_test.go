package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
	"backoffice/internal/ledger"
	"backoffice/internal/report"
	"backoffice/internal/storage/memory"
)

type recorder struct {
	events []ledger.Event
	err    error
}

func (r *recorder) PublishLedgerEvent(_ context.Context, ev ledger.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

type failingSource struct{}

func (failingSource) Digest(context.Context) (report.OverdueDigest, error) {
	return report.OverdueDigest{}, errors.New("store offline")
}

func newSource() *report.Service {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	store := memory.New(
		[]core.Client{{ID: "c1", Name: "Alpha"}},
		[]core.Task{
			{ID: "t1", ClientID: "c1", Title: "late", Cost: core.Cents(5000), Date: "2024-04-30"},
			{ID: "t2", ClientID: "c1", Title: "future", Cost: core.Cents(5000), Date: "2024-06-30"},
		},
	)
	return report.NewService(store, store,
		report.WithClock(func() time.Time { return now }),
		report.WithLocation(time.UTC))
}

func TestRunDigestPublishesSummary(t *testing.T) {
	pub := &recorder{}
	s, err := New("0 9 * * *", time.UTC, newSource(), pub)
	require.NoError(t, err)

	d, err := s.RunDigest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, d.Count)
	assert.Equal(t, core.Cents(5000), d.TotalRemaining)

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventOverdueDigest, pub.events[0].Type)
	assert.Equal(t, core.Cents(5000), pub.events[0].Amount)
}

func TestRunDigestToleratesPublishFailure(t *testing.T) {
	s, err := New("@daily", time.UTC, newSource(), &recorder{err: errors.New("broker down")})
	require.NoError(t, err)
	_, err = s.RunDigest(context.Background())
	require.NoError(t, err)
}

func TestRunDigestSourceFailure(t *testing.T) {
	s, err := New("0 9 * * *", time.UTC, failingSource{}, nil)
	require.NoError(t, err)
	_, err = s.RunDigest(context.Background())
	require.Error(t, err)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New("whenever", time.UTC, newSource(), nil)
	require.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s, err := New("0 9 * * *", time.UTC, newSource(), nil)
	require.NoError(t, err)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
