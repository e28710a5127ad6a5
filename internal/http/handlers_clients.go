package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"backoffice/internal/core"
	"backoffice/internal/registry"
)

// queryBool reads a boolean query flag; anything unparsable is false.
func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && v
}

func pathID(r *http.Request) core.ID {
	return core.ID(strings.TrimSpace(r.PathValue("id")))
}

func (s *Server) writeClientError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: msgClientMissing})
	default:
		if fields, ok := validationFields(err); ok {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "Validation failed", Fields: fields})
			return
		}
		internalError(w, r, op, err)
	}
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	if queryBool(r, "withTasks") {
		clients, err := s.clients.ListWithTasks(r.Context())
		if err != nil {
			internalError(w, r, "list_clients", err)
			return
		}
		writeJSON(w, http.StatusOK, clients)
		return
	}
	clients, err := s.clients.List(r.Context())
	if err != nil {
		internalError(w, r, "list_clients", err)
		return
	}
	if clients == nil {
		clients = []core.Client{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	c, err := s.clients.Get(r.Context(), pathID(r))
	if err != nil {
		s.writeClientError(w, r, "get_client", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var in registry.ClientInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, err, true)
		return
	}
	c, err := s.clients.Create(r.Context(), in, queryBool(r, "strict"))
	if err != nil {
		s.writeClientError(w, r, "create_client", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var patch registry.ClientPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeDecodeError(w, err, true)
		return
	}
	c, err := s.clients.Update(r.Context(), pathID(r), patch)
	if err != nil {
		s.writeClientError(w, r, "update_client", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type deleteClientResponse struct {
	Success       bool    `json:"success"`
	ID            core.ID `json:"id"`
	OrphanedTasks int     `json:"orphanedTasks"`
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	res, err := s.clients.Delete(r.Context(), pathID(r))
	if err != nil {
		s.writeClientError(w, r, "delete_client", err)
		return
	}
	writeJSON(w, http.StatusOK, deleteClientResponse{Success: true, ID: res.ID, OrphanedTasks: res.OrphanedTasks})
}
