package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ellsworth/fable/internal/apperr"
	"github.com/ellsworth/fable/internal/docservice"
	"github.com/ellsworth/fable/internal/models"
	"github.com/ellsworth/fable/internal/session"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *docservice.Service
	sessions *session.Manager
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service, sessions *session.Manager) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrSlugTaken):
		writeJSON(w, http.StatusConflict, errorBody("slug already taken"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrSessionClosed):
		writeJSON(w, http.StatusConflict, errorBody("edit session closed"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// GetDocument handles GET /documents/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// UpdateDocument handles PATCH /documents/{id}: a title rename, a content
// save, or both. A content save responds with the recomputed word count.
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := chi.URLParam(r, "id")

	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Title == nil && req.Content == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("title or content is required"))
		return
	}

	if req.Title != nil {
		if _, err := h.svc.RenameDocument(r.Context(), id, *req.Title); err != nil {
			writeError(w, "rename document", err)
			return
		}
	}
	if req.Content != nil {
		wc, err := h.svc.SaveDocument(r.Context(), id, *req.Content)
		if err != nil {
			writeError(w, "save document", err)
			return
		}
		writeJSON(w, http.StatusOK, SaveResponse{WordCount: wc})
		return
	}

	doc, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /documents/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBacklinks handles GET /documents/{id}/backlinks.
func (h *Handler) GetBacklinks(w http.ResponseWriter, r *http.Request) {
	bl, err := h.svc.Backlinks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	if bl == nil {
		bl = []models.Backlink{}
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Backlinks: bl})
}

// GetMentions handles GET /wiki/{id}/mentions.
func (h *Handler) GetMentions(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.Mentions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "mentions", err)
		return
	}
	if ms == nil {
		ms = []models.Mention{}
	}
	writeJSON(w, http.StatusOK, MentionsResponse{Mentions: ms})
}

// ListChapters handles GET /projects/{projectId}/chapters.
func (h *Handler) ListChapters(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListChapters(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		writeError(w, "list chapters", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": nonNilDocs(docs)})
}

// CreateChapter handles POST /projects/{projectId}/chapters.
func (h *Handler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	var req CreateChapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	doc, err := h.svc.CreateChapter(r.Context(), chi.URLParam(r, "projectId"), req.Title)
	if err != nil {
		writeError(w, "create chapter", err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// ReorderChapters handles POST /projects/{projectId}/chapters/reorder.
func (h *Handler) ReorderChapters(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ChapterIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("chapterIds is required"))
		return
	}
	if err := h.svc.ReorderChapters(r.Context(), chi.URLParam(r, "projectId"), req.ChapterIDs); err != nil {
		writeError(w, "reorder chapters", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListWikiPages handles GET /projects/{projectId}/wiki.
func (h *Handler) ListWikiPages(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListWikiPages(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		writeError(w, "list wiki pages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": nonNilDocs(docs)})
}

// CreateWikiPage handles POST /projects/{projectId}/wiki.
func (h *Handler) CreateWikiPage(w http.ResponseWriter, r *http.Request) {
	var req CreateWikiPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	doc, err := h.svc.CreateWikiPage(r.Context(), chi.URLParam(r, "projectId"), req.Title, req.Tags)
	if err != nil {
		writeError(w, "create wiki page", err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// GetWikiPageBySlug handles GET /projects/{projectId}/wiki/by-slug/{slug}.
func (h *Handler) GetWikiPageBySlug(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetWikiPageBySlug(r.Context(), chi.URLParam(r, "projectId"), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, "get wiki page by slug", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// AddTag handles POST /wiki/{id}/tags.
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tag == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("tag is required"))
		return
	}
	if err := h.svc.AddTag(r.Context(), chi.URLParam(r, "id"), req.Tag); err != nil {
		writeError(w, "add tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveTag handles DELETE /wiki/{id}/tags/{tag}.
func (h *Handler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveTag(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "tag")); err != nil {
		writeError(w, "remove tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RebuildLinks handles POST /projects/{projectId}/links/rebuild.
func (h *Handler) RebuildLinks(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.RebuildLinks(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		writeError(w, "rebuild links", err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildResponse{DocumentsProcessed: n})
}

// ListRevisions handles GET /chapters/{id}/revisions.
func (h *Handler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	revs, err := h.svc.ListRevisions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "list revisions", err)
		return
	}
	if revs == nil {
		revs = []models.Revision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": revs})
}

// CreateRevision handles POST /chapters/{id}/revisions.
func (h *Handler) CreateRevision(w http.ResponseWriter, r *http.Request) {
	var req RevisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rev, err := h.svc.CreateRevision(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeError(w, "create revision", err)
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

// RestoreRevision handles POST /revisions/{id}/restore.
func (h *Handler) RestoreRevision(w http.ResponseWriter, r *http.Request) {
	content, err := h.svc.RestoreRevision(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "restore revision", err)
		return
	}
	writeJSON(w, http.StatusOK, RestoreResponse{Content: content})
}

func nonNilDocs(docs []models.Document) []models.Document {
	if docs == nil {
		return []models.Document{}
	}
	return docs
}
