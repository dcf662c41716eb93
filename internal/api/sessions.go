package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ApplyEdit handles POST /documents/{id}/edits: the edit is buffered in
// the document's session and persisted after the debounce window.
func (h *Handler) ApplyEdit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := chi.URLParam(r, "id")

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	ctrl, err := h.sessions.Open(r.Context(), id)
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	if err := ctrl.Apply(req.Content); err != nil {
		writeError(w, "apply edit", err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// Undo handles POST /documents/{id}/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.sessions.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	if _, err := ctrl.Undo(); err != nil {
		writeError(w, "undo", err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// Redo handles POST /documents/{id}/redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.sessions.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	if _, err := ctrl.Redo(); err != nil {
		writeError(w, "redo", err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// GetSession handles GET /documents/{id}/session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no open session"))
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// CloseSession handles POST /documents/{id}/close: flush best-effort and
// discard the session.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
