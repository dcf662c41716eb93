package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ellsworth/fable/internal/docservice"
	"github.com/ellsworth/fable/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, sessions *session.Manager, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, sessions)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents.
	r.Get("/documents/{id}", h.GetDocument)
	r.Patch("/documents/{id}", h.UpdateDocument)
	r.Delete("/documents/{id}", h.DeleteDocument)
	r.Get("/documents/{id}/backlinks", h.GetBacklinks)

	// Edit sessions.
	r.Post("/documents/{id}/edits", h.ApplyEdit)
	r.Post("/documents/{id}/undo", h.Undo)
	r.Post("/documents/{id}/redo", h.Redo)
	r.Get("/documents/{id}/session", h.GetSession)
	r.Post("/documents/{id}/close", h.CloseSession)

	// Chapters.
	r.Get("/projects/{projectId}/chapters", h.ListChapters)
	r.Post("/projects/{projectId}/chapters", h.CreateChapter)
	r.Post("/projects/{projectId}/chapters/reorder", h.ReorderChapters)

	// Wiki.
	r.Get("/projects/{projectId}/wiki", h.ListWikiPages)
	r.Post("/projects/{projectId}/wiki", h.CreateWikiPage)
	r.Get("/projects/{projectId}/wiki/by-slug/{slug}", h.GetWikiPageBySlug)
	r.Get("/wiki/{id}/mentions", h.GetMentions)
	r.Post("/wiki/{id}/tags", h.AddTag)
	r.Delete("/wiki/{id}/tags/{tag}", h.RemoveTag)

	// Reference index.
	r.Post("/projects/{projectId}/links/rebuild", h.RebuildLinks)

	// Revisions.
	r.Get("/chapters/{id}/revisions", h.ListRevisions)
	r.Post("/chapters/{id}/revisions", h.CreateRevision)
	r.Post("/revisions/{id}/restore", h.RestoreRevision)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
