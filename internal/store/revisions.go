package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ellsworth/fable/internal/apperr"
	"github.com/ellsworth/fable/internal/models"
)

// AddRevision appends an immutable snapshot of a chapter's content.
func (s *Store) AddRevision(ctx context.Context, chapterID, content, note string) (*models.Revision, error) {
	rev := models.Revision{
		ID:        uuid.NewString(),
		ChapterID: chapterID,
		Content:   content,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO revisions (id, chapter_id, content, note, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rev.ID, rev.ChapterID, rev.Content, rev.Note, rev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: add revision: %w", err)
	}
	return &rev, nil
}

// ListRevisions returns a chapter's revisions newest-first.
func (s *Store) ListRevisions(ctx context.Context, chapterID string) ([]models.Revision, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, chapter_id, content, note, created_at
		FROM revisions
		WHERE chapter_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("store: list revisions: %w", err)
	}
	defer rows.Close()

	var out []models.Revision
	for rows.Next() {
		var r models.Revision
		if err := rows.Scan(&r.ID, &r.ChapterID, &r.Content, &r.Note, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRevision returns a single revision by id.
func (s *Store) GetRevision(ctx context.Context, id string) (*models.Revision, error) {
	var r models.Revision
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, chapter_id, content, note, created_at FROM revisions WHERE id = ?
	`, id).Scan(&r.ID, &r.ChapterID, &r.Content, &r.Note, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: get revision: %w", err)
	}
	return &r, nil
}

// LatestRevision returns the newest revision for a chapter, or nil when the
// chapter has none.
func (s *Store) LatestRevision(ctx context.Context, chapterID string) (*models.Revision, error) {
	var r models.Revision
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, chapter_id, content, note, created_at
		FROM revisions
		WHERE chapter_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, chapterID).Scan(&r.ID, &r.ChapterID, &r.Content, &r.Note, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: latest revision: %w", err)
	}
	return &r, nil
}
