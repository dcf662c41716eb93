package docservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/ellsworth/fable/internal/checksum"
	"github.com/ellsworth/fable/internal/models"
)

// autoSnapshotNote marks revisions taken by the save-path policy rather
// than by explicit user request.
const autoSnapshotNote = "autosave"

// maybeSnapshot applies the snapshot policy after a persisted chapter
// save: a snapshot is taken when the chapter has no revision yet, or when
// the newest one is older than snapshotEvery and the content actually
// changed. Failures are logged only; the save already stands.
func (s *Service) maybeSnapshot(ctx context.Context, doc *models.Document) {
	if s.snapshotEvery <= 0 {
		return
	}
	latest, err := s.store.LatestRevision(ctx, doc.ID)
	if err != nil {
		s.logger.Warn("docservice: latest revision lookup failed",
			slog.String("chapter_id", doc.ID),
			slog.String("error", err.Error()))
		return
	}
	if latest != nil {
		if time.Since(latest.CreatedAt) < s.snapshotEvery {
			return
		}
		if checksum.Sum([]byte(latest.Content)) == checksum.Sum([]byte(doc.Body)) {
			return
		}
	}
	if _, err := s.store.AddRevision(ctx, doc.ID, doc.Body, autoSnapshotNote); err != nil {
		s.logger.Warn("docservice: snapshot failed",
			slog.String("chapter_id", doc.ID),
			slog.String("error", err.Error()))
	}
}

// CreateRevision snapshots a chapter's current content on explicit request.
func (s *Service) CreateRevision(ctx context.Context, chapterID, note string) (*models.Revision, error) {
	doc, err := s.requireType(ctx, chapterID, models.TypeChapter)
	if err != nil {
		return nil, err
	}
	return s.store.AddRevision(ctx, chapterID, doc.Body, note)
}

// ListRevisions returns a chapter's revisions newest-first, each annotated
// with the chapter's current title.
func (s *Service) ListRevisions(ctx context.Context, chapterID string) ([]models.Revision, error) {
	doc, err := s.requireType(ctx, chapterID, models.TypeChapter)
	if err != nil {
		return nil, err
	}
	revs, err := s.store.ListRevisions(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	for i := range revs {
		revs[i].ChapterTitle = doc.Title
	}
	return revs, nil
}

// RestoreRevision feeds a revision's content back through the normal save
// path, so the reference index is updated and the snapshot policy applies.
// The revision history itself is untouched; restore creates new live
// content, never rewrites the log.
func (s *Service) RestoreRevision(ctx context.Context, revisionID string) (string, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return "", err
	}
	if _, err := s.SaveDocument(ctx, rev.ChapterID, rev.Content); err != nil {
		return "", err
	}
	return rev.Content, nil
}
