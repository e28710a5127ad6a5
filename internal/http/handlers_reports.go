package http

import (
	"errors"
	"net/http"
	"strings"

	"backoffice/internal/core"
	"backoffice/internal/report"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	preset, from, to, err := s.parseRangeParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: err.Error()})
		return
	}
	q := r.URL.Query()
	query := report.Query{
		Preset:   preset,
		From:     from,
		To:       to,
		ClientID: core.ID(strings.TrimSpace(q.Get("clientId"))),
		PayState: strings.TrimSpace(q.Get("payState")),
		Search:   strings.TrimSpace(q.Get("q")),
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		st, ok := core.ParseStatus(v)
		if !ok {
			writeJSON(w, http.StatusBadRequest, messageBody{Message: "unknown status"})
			return
		}
		query.Status = st
	}

	d, err := s.reports.Dashboard(r.Context(), query)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, messageBody{Message: err.Error()})
			return
		}
		internalError(w, r, "dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleClientRollups(w http.ResponseWriter, r *http.Request) {
	rollups, err := s.reports.ClientRollups(r.Context())
	if err != nil {
		internalError(w, r, "client_rollups", err)
		return
	}
	writeJSON(w, http.StatusOK, rollups)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	loc := s.reports.Now().Location()
	from, err := parseDateParam(r.URL.Query().Get("from"), loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: "from: " + err.Error()})
		return
	}
	to, err := parseDateParam(r.URL.Query().Get("to"), loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: "to: " + err.Error()})
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: "to is before from"})
		return
	}
	events, err := s.reports.Calendar(r.Context(), from, to)
	if err != nil {
		internalError(w, r, "calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleOverdue(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.Digest(r.Context())
	if err != nil {
		internalError(w, r, "overdue_digest", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
