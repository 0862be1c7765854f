package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MrWong99/phonalign/internal/history"
	"github.com/MrWong99/phonalign/internal/observe"
)

// maxHistoryLimit caps ?limit on GET /v1/history.
const maxHistoryLimit = 500

type historyResponse struct {
	Records []history.Record `json:"records"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		observe.Logger(r.Context()).Error("history recent failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "history unavailable")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Records: records})
}

func (s *Server) handleHistoryRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.history.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "analysis not found")
	case err != nil:
		observe.Logger(r.Context()).Error("history get failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "history unavailable")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}
