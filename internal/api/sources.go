package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/errs"
	"github.com/preventia/preventia-core/internal/sources"
)

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	status := domain.SourceStatus(r.URL.Query().Get("status"))
	list, err := s.sources.List(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, list, nil)
}

type createSourceRequest struct {
	Source                   domain.Source `json:"source"`
	FullContentOverrideToken string        `json:"full_content_override_token"`
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.Source.DataRetentionDays == 0 {
		req.Source.DataRetentionDays = s.defaultRetentionDays
	}

	created, verrs := s.sources.Create(r.Context(), sources.CreateInput{
		Source:                   req.Source,
		FullContentOverrideToken: req.FullContentOverrideToken,
	})
	if len(verrs) > 0 {
		messages := make([]string, len(verrs))
		for i, v := range verrs {
			messages[i] = v.Error()
		}
		writeError(w, http.StatusUnprocessableEntity, messages...)
		return
	}
	writeData(w, created, nil)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	var patch domain.Source
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	updated, err := s.sources.Update(r.Context(), id, func(existing *domain.Source) error {
		patch.SourceID = existing.SourceID
		patch.CreatedAt = existing.CreatedAt
		patch.Status = existing.Status
		*existing = patch
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, updated, nil)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}
	reason := r.URL.Query().Get("reason")

	updated, err := s.sources.Transition(r.Context(), id, domain.SourceStatusDeleted, reason)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "source not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeData(w, updated, nil)
}
