package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
	"backoffice/internal/ledger"
	"backoffice/internal/log"
	"backoffice/internal/registry"
	"backoffice/internal/report"
	"backoffice/internal/storage/memory"
)

var testNow = time.Date(2024, 5, 10, 10, 30, 0, 0, time.UTC)

type failingStore struct {
	*memory.Store
	err error
}

func (s *failingStore) ListTasks(ctx context.Context) ([]core.Task, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.ListTasks(ctx)
}

func (s *failingStore) Ping(ctx context.Context) error { return s.err }

type fixture struct {
	store  *failingStore
	server *Server
}

func seedTasks() []core.Task {
	created := testNow.Add(-72 * time.Hour)
	return []core.Task{
		{
			ID: "1", ClientID: "c1", Title: "Logo", Cost: core.Cents(10000), Date: "2024-05-01",
			Status: core.StatusInProgress, Priority: core.PriorityHigh,
			Payments:  []core.Payment{{Amount: core.Cents(4000), At: created}},
			Paid:      core.Cents(4000),
			CreatedAt: created, UpdatedAt: created,
		},
		{
			ID: "2", ClientID: "c1", Title: "Video", Cost: core.Cents(5000), Date: "2024-06-01",
			Status: core.StatusNotStarted, Priority: core.PriorityMedium,
			Payments:  []core.Payment{},
			CreatedAt: created.Add(time.Hour), UpdatedAt: created.Add(time.Hour),
		},
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := &failingStore{Store: memory.New(
		[]core.Client{{ID: "c1", Name: "Alpha", Company: "Alpha SA", CreatedAt: testNow}},
		seedTasks(),
	)}
	clock := func() time.Time { return testNow }
	seq := 0
	l := ledger.New(store, ledger.WithClock(clock), ledger.WithIDGenerator(func() core.ID {
		seq++
		return core.ID("new-" + string(rune('0'+seq)))
	}))
	reg := registry.New(store, l, registry.WithClock(clock))
	reports := report.NewService(store, store, report.WithClock(clock), report.WithLocation(time.UTC))

	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	srv := NewServer(cfg, Deps{Clients: reg, Tasks: l, Reports: reports, Health: store})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &fixture{store: store, server: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, path, nil)
	case string:
		req = httptest.NewRequest(method, path, strings.NewReader(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(raw)))
	}
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, Config{})

	rr := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	}

	f.store.err = errors.New("disk gone")
	rr = f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, http.MethodGet, "/api/tasks", nil)

	rr := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `http_requests_total{code="200",method="GET",route="GET /api/tasks"} 1`)
}

func TestClientEndpoints(t *testing.T) {
	f := newFixture(t, Config{})

	rr := f.do(t, http.MethodGet, "/api/clients", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.Client](t, rr), 1)

	rr = f.do(t, http.MethodGet, "/api/clients?withTasks=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	joined := decode[[]registry.ClientWithTasks](t, rr)
	require.Len(t, joined, 1)
	assert.Len(t, joined[0].Tasks, 2)

	rr = f.do(t, http.MethodGet, "/api/pelates/c1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Alpha", decode[core.Client](t, rr).Name)

	rr = f.do(t, http.MethodGet, "/api/clients/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Client not found", decode[errorBody](t, rr).Error)

	rr = f.do(t, http.MethodPost, "/api/clients", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/clients?strict=true", map[string]string{"name": "Beta"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode[errorBody](t, rr).Fields, "email")

	rr = f.do(t, http.MethodPost, "/api/clients", map[string]string{"name": "Beta"})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[core.Client](t, rr)
	assert.NotEmpty(t, created.ID)

	rr = f.do(t, http.MethodPut, "/api/clients/"+string(created.ID), map[string]string{"company": "Beta Ltd"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Beta Ltd", decode[core.Client](t, rr).Company)

	rr = f.do(t, http.MethodPut, "/api/clients/nope", map[string]string{"company": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Client not found", decode[errorBody](t, rr).Error)
}

func TestDeleteClientReportsOrphans(t *testing.T) {
	f := newFixture(t, Config{})

	rr := f.do(t, http.MethodDelete, "/api/clients/c1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[deleteClientResponse](t, rr)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.OrphanedTasks)

	rr = f.do(t, http.MethodDelete, "/api/clients/c1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/tasks/1", nil)
	assert.Equal(t, http.StatusOK, rr.Code, "tasks survive their client")
}

func TestTaskEndpoints(t *testing.T) {
	f := newFixture(t, Config{})

	rr := f.do(t, http.MethodGet, "/api/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, msgTaskNotFound, decode[messageBody](t, rr).Message)

	rr = f.do(t, http.MethodPost, "/api/tasks", map[string]any{"clientId": 7, "title": "Spot", "cost": "120,50", "paid": 20})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[core.Task](t, rr)
	assert.Equal(t, core.ID("7"), created.ClientID)
	assert.Equal(t, core.Cents(12050), created.Cost)
	assert.Equal(t, core.Cents(2000), created.Paid)
	assert.Equal(t, core.StatusNotStarted, created.Status)

	rr = f.do(t, http.MethodPost, "/api/tasks", map[string]any{"title": "Bad", "status": "done"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPut, "/api/tasks/1", map[string]any{"priority": "urgent"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode[messageBody](t, rr).Fields, "priority")

	rr = f.do(t, http.MethodPut, "/api/tasks/missing", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodPut, "/api/tasks/1", map[string]any{"title": "Logo v2", "status": string(core.StatusCompleted)})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Logo v2", decode[core.Task](t, rr).Title)

	rr = f.do(t, http.MethodDelete, "/api/tasks/2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	del := decode[deleteTaskResponse](t, rr)
	assert.Equal(t, "Task deleted", del.Message)
	assert.Equal(t, core.ID("2"), del.ID)

	rr = f.do(t, http.MethodDelete, "/api/tasks/2", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		name    string
		path    string
		body    any
		status  int
		message string
	}{
		{"zero", "/api/tasks/1/payments", map[string]any{"amount": 0}, http.StatusBadRequest, msgAmountNotPositive},
		{"negative", "/api/tasks/1/payments", map[string]any{"amount": -5}, http.StatusBadRequest, msgAmountNotPositive},
		{"missing", "/api/tasks/1/payments", map[string]any{}, http.StatusBadRequest, msgAmountNotPositive},
		{"not a number", "/api/tasks/1/payments", map[string]any{"amount": "lots"}, http.StatusBadRequest, msgAmountNotPositive},
		{"over remaining", "/api/tasks/1/payments", map[string]any{"amount": 60.01}, http.StatusBadRequest, msgAmountExceeds},
		{"unknown task", "/api/tasks/9/payments", map[string]any{"amount": 1}, http.StatusNotFound, msgTaskNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.message, decode[messageBody](t, rr).Message)
		})
	}

	rr := f.do(t, http.MethodPost, "/api/tasks/1/payments", map[string]any{"amount": "60"})
	require.Equal(t, http.StatusCreated, rr.Code)
	paid := decode[core.Task](t, rr)
	assert.Equal(t, core.Cents(10000), paid.Paid)
	assert.Len(t, paid.Payments, 2)

	rr = f.do(t, http.MethodPost, "/api/tasks/1/payments", map[string]any{"amount": 0.01})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgAmountExceeds, decode[messageBody](t, rr).Message)
}

func TestListTasksFiltersAndSorts(t *testing.T) {
	f := newFixture(t, Config{})

	rr := f.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	all := decode[[]core.Task](t, rr)
	require.Len(t, all, 2)
	assert.Equal(t, core.ID("2"), all[0].ID, "newest first by default")

	rr = f.do(t, http.MethodGet, "/api/tasks?sort=dueAsc", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, core.ID("1"), decode[[]core.Task](t, rr)[0].ID)

	rr = f.do(t, http.MethodGet, "/api/tasks?payState=partial", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	partial := decode[[]core.Task](t, rr)
	require.Len(t, partial, 1)
	assert.Equal(t, core.ID("1"), partial[0].ID)

	rr = f.do(t, http.MethodGet, "/api/tasks?q=video", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.Task](t, rr), 1)

	rr = f.do(t, http.MethodGet, "/api/tasks?from=2024-05-15&to=2024-06-30", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	windowed := decode[[]core.Task](t, rr)
	require.Len(t, windowed, 1)
	assert.Equal(t, core.ID("2"), windowed[0].ID)

	for _, bad := range []string{"?sort=random", "?status=done", "?from=yesterday", "?preset=someday", "?from=2024-06-01&to=2024-05-01"} {
		rr = f.do(t, http.MethodGet, "/api/tasks"+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, bad)
	}
}

func TestReportEndpoints(t *testing.T) {
	f := newFixture(t, Config{})

	rr := f.do(t, http.MethodGet, "/api/reports/dashboard?preset=thisMonth", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	d := decode[report.Dashboard](t, rr)
	assert.Equal(t, report.PresetThisMonth, d.Preset)
	assert.Equal(t, 1, d.KPIs.TotalClients)

	rr = f.do(t, http.MethodGet, "/api/reports/dashboard?preset=someday", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/reports/clients", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rollups := decode[[]report.ClientRollup](t, rr)
	require.Len(t, rollups, 1)
	assert.Equal(t, core.Cents(11000), rollups[0].Remaining)

	rr = f.do(t, http.MethodGet, "/api/reports/calendar?from=2024-05-01&to=2024-05-31", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	events := decode[[]report.CalendarEvent](t, rr)
	require.Len(t, events, 1)
	assert.Equal(t, "Logo (Alpha)", events[0].Title)
	assert.True(t, events[0].Overdue)

	rr = f.do(t, http.MethodGet, "/api/reports/calendar?from=2024-06-01&to=2024-05-01", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/reports/overdue", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[report.OverdueDigest](t, rr).Count)
}

func TestStorageFailureIsHidden(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.err = errors.New("tasks.json: unexpected end of JSON input")

	for _, path := range []string{"/api/tasks", "/api/reports/dashboard", "/api/clients?withTasks=true"} {
		rr := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, path)
		assert.Equal(t, "Internal server error", decode[messageBody](t, rr).Message)
		assert.NotContains(t, rr.Body.String(), "tasks.json")
	}
}

func TestMutatingRequestsAreRateLimited(t *testing.T) {
	f := newFixture(t, Config{RateLimitPerMinute: 1})

	rr := f.do(t, http.MethodPost, "/api/clients", map[string]string{"name": "A"})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = f.do(t, http.MethodPost, "/api/clients", map[string]string{"name": "B"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/clients", nil).Code)
}

func TestBodyLimit(t *testing.T) {
	f := newFixture(t, Config{MaxBodyBytes: 64})

	body := `{"name":"` + strings.Repeat("x", 200) + `"}`
	rr := f.do(t, http.MethodPost, "/api/clients", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestUnknownAPIRoute(t *testing.T) {
	f := newFixture(t, Config{})
	rr := f.do(t, http.MethodGet, "/api/invoices", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Not found", decode[messageBody](t, rr).Message)
}

type panickingHealth struct{}

func (panickingHealth) Ping(context.Context) error { panic("ping exploded") }

func TestPanicLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.ConfigFromEnv("debug", "json", &buf)).WithComponent(log.ComponentHTTP)
	srv := NewServer(Config{Logger: logger}, Deps{Health: panickingHealth{}})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.Header.Set("X-Request-ID", "req-7f3a")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "req-7f3a", rr.Header().Get("X-Request-ID"))

	var panicLine string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Contains(line, "Handler panicked") {
			panicLine = line
		}
	}
	require.NotEmpty(t, panicLine, "no panic log in %s", buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(panicLine), &entry))
	assert.Equal(t, "req-7f3a", entry["request_id"])
}
