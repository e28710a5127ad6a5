package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"backoffice/internal/core"
	"backoffice/internal/ledger"
	"backoffice/internal/report"
)

const (
	msgAmountNotPositive = "Amount must be > 0"
	msgAmountExceeds     = "Amount exceeds remaining"
)

// writeTaskError maps ledger errors. validationStatus differs between create
// (400) and update (422).
func (s *Server) writeTaskError(w http.ResponseWriter, r *http.Request, op string, validationStatus int, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, messageBody{Message: msgTaskNotFound})
	case errors.Is(err, core.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, messageBody{Message: msgAmountNotPositive})
	case errors.Is(err, core.ErrAmountExceedsRemaining):
		writeJSON(w, http.StatusBadRequest, messageBody{Message: msgAmountExceeds})
	default:
		if fields, ok := validationFields(err); ok {
			writeJSON(w, validationStatus, messageBody{Message: "Validation failed", Fields: fields})
			return
		}
		internalError(w, r, op, err)
	}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	f, mode, err := s.parseTaskQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: err.Error()})
		return
	}
	tasks, err := s.reports.Tasks(r.Context(), f, mode)
	if err != nil {
		internalError(w, r, "list_tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), pathID(r))
	if err != nil {
		s.writeTaskError(w, r, "get_task", http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in ledger.TaskInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, err, false)
		return
	}
	t, err := s.tasks.Create(r.Context(), in)
	if err != nil {
		s.writeTaskError(w, r, "create_task", http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch ledger.TaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeDecodeError(w, err, false)
		return
	}
	t, err := s.tasks.Update(r.Context(), pathID(r), patch)
	if err != nil {
		s.writeTaskError(w, r, "update_task", http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type deleteTaskResponse struct {
	Message string  `json:"message"`
	ID      core.ID `json:"id"`
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := s.tasks.Delete(r.Context(), id); err != nil {
		s.writeTaskError(w, r, "delete_task", http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteTaskResponse{Message: "Task deleted", ID: id})
}

// paymentRequest keeps amount raw so an unparsable amount is reported as an
// amount problem rather than a malformed body.
type paymentRequest struct {
	Amount json.RawMessage `json:"amount"`
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err, false)
		return
	}
	var amount core.Money
	if len(req.Amount) > 0 {
		if err := json.Unmarshal(req.Amount, &amount); err != nil {
			writeJSON(w, http.StatusBadRequest, messageBody{Message: msgAmountNotPositive})
			return
		}
	}
	t, err := s.tasks.RecordPayment(r.Context(), pathID(r), amount)
	if err != nil {
		s.writeTaskError(w, r, "record_payment", http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// parseTaskQuery reads q, clientId, status, priority, payState, preset,
// from, to and sort.
func (s *Server) parseTaskQuery(r *http.Request) (report.TaskFilter, report.SortMode, error) {
	q := r.URL.Query()
	f := report.TaskFilter{
		Query:    strings.TrimSpace(q.Get("q")),
		ClientID: core.ID(strings.TrimSpace(q.Get("clientId"))),
		PayState: strings.TrimSpace(q.Get("payState")),
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		st, ok := core.ParseStatus(v)
		if !ok {
			return f, "", fmt.Errorf("unknown status %q", v)
		}
		f.Status = st
	}
	if v := strings.TrimSpace(q.Get("priority")); v != "" {
		pr, ok := core.ParsePriority(v)
		if !ok {
			return f, "", fmt.Errorf("unknown priority %q", v)
		}
		f.Priority = pr
	}

	window, err := s.parseWindow(r)
	if err != nil {
		return f, "", err
	}
	f.Window = window

	mode, err := report.ParseSortMode(q.Get("sort"))
	if err != nil {
		return f, "", err
	}
	return f, mode, nil
}

// parseWindow resolves preset, from and to. Bare from/to imply custom.
func (s *Server) parseWindow(r *http.Request) (report.Range, error) {
	preset, from, to, err := s.parseRangeParams(r)
	if err != nil {
		return report.Range{}, err
	}
	return report.Window(preset, s.reports.Now(), from, to)
}

func (s *Server) parseRangeParams(r *http.Request) (report.Preset, time.Time, time.Time, error) {
	q := r.URL.Query()
	loc := s.reports.Now().Location()
	from, err := parseDateParam(q.Get("from"), loc)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("from: %w", err)
	}
	to, err := parseDateParam(q.Get("to"), loc)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("to: %w", err)
	}
	preset := report.Preset(strings.TrimSpace(q.Get("preset")))
	if preset == "" && (!from.IsZero() || !to.IsZero()) {
		preset = report.PresetCustom
	}
	return preset, from, to, nil
}

// parseDateParam accepts YYYY-MM-DD, read in loc, or RFC 3339. Empty is the
// zero time.
func parseDateParam(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", v)
	}
	return t.In(loc), nil
}
