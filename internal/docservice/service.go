// Package docservice coordinates the store, reference index, and revision
// policy behind the document save path.
package docservice

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ellsworth/fable/internal/apperr"
	"github.com/ellsworth/fable/internal/models"
	"github.com/ellsworth/fable/internal/refindex"
	"github.com/ellsworth/fable/internal/store"
)

// EventFunc is called after a successful document mutation.
// kind is one of "created", "updated", "deleted".
type EventFunc func(kind, projectID, documentID string)

// Service is the orchestration layer over store and index.
type Service struct {
	store  *store.Store
	index  *refindex.Index
	logger *slog.Logger

	// snapshotEvery bounds revision growth: at most one automatic
	// snapshot per chapter per interval.
	snapshotEvery time.Duration
	notify        EventFunc
}

// NewService creates a Service. snapshotEvery <= 0 disables automatic
// snapshots (explicit ones still work).
func NewService(st *store.Store, ix *refindex.Index, logger *slog.Logger, snapshotEvery time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, index: ix, logger: logger, snapshotEvery: snapshotEvery}
}

// SetEventFunc installs the change notification hook.
func (s *Service) SetEventFunc(fn EventFunc) { s.notify = fn }

func (s *Service) publish(kind, projectID, id string) {
	if s.notify != nil {
		s.notify(kind, projectID, id)
	}
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}

// GetDocument returns a document by id.
func (s *Service) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// LoadBody returns a document's persisted body. Satisfies session.Loader.
func (s *Service) LoadBody(ctx context.Context, id string) (string, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Body, nil
}

// Persist satisfies session.Persister.
func (s *Service) Persist(ctx context.Context, documentID, content string) error {
	_, err := s.SaveDocument(ctx, documentID, content)
	return err
}

// SaveDocument persists new body content and returns the recomputed word
// count. Idempotent on identical content, so it is safely retryable.
//
// A successful save triggers the outgoing-link recompute and, for
// chapters, the snapshot policy. Failures in either are logged but do not
// fail the save: the index and revision store are allowed to be
// transiently stale and are reconciled by the next recompute or rebuild.
func (s *Service) SaveDocument(ctx context.Context, id, content string) (int, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return 0, err
	}

	wc := WordCount(content)
	if err := s.store.UpdateBody(ctx, id, content, wc); err != nil {
		return 0, err
	}
	doc.Body = content
	doc.WordCount = wc

	if err := s.index.RecomputeOutgoing(ctx, id); err != nil {
		s.logger.Warn("docservice: recompute after save failed",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
	}
	if doc.Type == models.TypeChapter {
		s.maybeSnapshot(ctx, doc)
	}

	s.publish("updated", doc.ProjectID, id)
	return wc, nil
}

// CreateChapter creates an empty chapter appended to the manuscript.
func (s *Service) CreateChapter(ctx context.Context, projectID, title string) (*models.Document, error) {
	doc, err := s.store.CreateChapter(ctx, projectID, title)
	if err != nil {
		return nil, err
	}
	s.publish("created", projectID, doc.ID)
	return doc, nil
}

// CreateWikiPage creates an empty wiki page with a slug derived from the
// title.
func (s *Service) CreateWikiPage(ctx context.Context, projectID, title string, tags []string) (*models.Document, error) {
	doc, err := s.store.CreateWikiPage(ctx, projectID, title, refindex.Slugify(title), tags)
	if err != nil {
		return nil, err
	}
	s.publish("created", projectID, doc.ID)
	return doc, nil
}

// ListChapters returns a project's chapters in manuscript order.
func (s *Service) ListChapters(ctx context.Context, projectID string) ([]models.Document, error) {
	return s.store.ListChapters(ctx, projectID)
}

// ListWikiPages returns a project's wiki pages ordered by title.
func (s *Service) ListWikiPages(ctx context.Context, projectID string) ([]models.Document, error) {
	return s.store.ListWikiPages(ctx, projectID)
}

// GetWikiPageBySlug returns the wiki page with the given slug.
func (s *Service) GetWikiPageBySlug(ctx context.Context, projectID, slug string) (*models.Document, error) {
	return s.store.GetWikiPageBySlug(ctx, projectID, slug)
}

// RenameDocument changes a document's title (and slug, for wiki pages),
// then rebuilds the project's links: other documents' edges resolve by
// title, so a rename can change what their bodies point at.
func (s *Service) RenameDocument(ctx context.Context, id, title string) (*models.Document, error) {
	if err := s.store.UpdateTitle(ctx, id, title, refindex.Slugify(title)); err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.index.RebuildAll(ctx, doc.ProjectID); err != nil {
		s.logger.Warn("docservice: rebuild after rename failed",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
	}
	s.publish("updated", doc.ProjectID, id)
	return doc, nil
}

// ReorderChapters rewrites manuscript order to match the given sequence.
func (s *Service) ReorderChapters(ctx context.Context, projectID string, orderedIDs []string) error {
	return s.store.ReorderChapters(ctx, projectID, orderedIDs)
}

// AddTag adds a tag to a wiki page.
func (s *Service) AddTag(ctx context.Context, id, tag string) error {
	doc, err := s.requireType(ctx, id, models.TypeWikiPage)
	if err != nil {
		return err
	}
	for _, t := range doc.Tags {
		if t == tag {
			return nil
		}
	}
	return s.store.SetTags(ctx, id, append(doc.Tags, tag))
}

// RemoveTag removes a tag from a wiki page.
func (s *Service) RemoveTag(ctx context.Context, id, tag string) error {
	doc, err := s.requireType(ctx, id, models.TypeWikiPage)
	if err != nil {
		return err
	}
	kept := doc.Tags[:0]
	for _, t := range doc.Tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	return s.store.SetTags(ctx, id, kept)
}

// DeleteDocument removes a document, its incident edges, and (for
// chapters) its revisions.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.publish("deleted", doc.ProjectID, id)
	return nil
}

// Backlinks returns the documents linking to the given one.
func (s *Service) Backlinks(ctx context.Context, id string) ([]models.Backlink, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.index.Backlinks(ctx, id)
}

// Mentions returns the chapters referencing the given wiki page.
func (s *Service) Mentions(ctx context.Context, id string) ([]models.Mention, error) {
	if _, err := s.requireType(ctx, id, models.TypeWikiPage); err != nil {
		return nil, err
	}
	return s.index.Mentions(ctx, id)
}

// RebuildLinks recomputes every document's outgoing edges in a project.
func (s *Service) RebuildLinks(ctx context.Context, projectID string) (int, error) {
	return s.index.RebuildAll(ctx, projectID)
}

func (s *Service) requireType(ctx context.Context, id string, want models.DocType) (*models.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Type != want {
		return nil, apperr.ErrNotFound
	}
	return doc, nil
}
