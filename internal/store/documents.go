package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ellsworth/fable/internal/apperr"
	"github.com/ellsworth/fable/internal/models"
)

const documentColumns = `id, project_id, doc_type, title, slug, tags, body, sort_order, word_count, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	var tagsJSON string
	err := row.Scan(&d.ID, &d.ProjectID, &d.Type, &d.Title, &d.Slug, &tagsJSON,
		&d.Body, &d.SortOrder, &d.WordCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &d.Tags); err != nil {
		d.Tags = nil
	}
	return &d, nil
}

// CreateChapter inserts a new chapter appended to the end of the manuscript.
func (s *Store) CreateChapter(ctx context.Context, projectID, title string) (*models.Document, error) {
	var maxOrder int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order), 0) FROM documents WHERE project_id = ? AND doc_type = ?`,
		projectID, models.TypeChapter).Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("store: max sort_order: %w", err)
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, doc_type, title, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, projectID, models.TypeChapter, title, maxOrder+1, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: create chapter: %w", err)
	}
	return s.GetDocument(ctx, id)
}

// CreateWikiPage inserts a new wiki page with the given slug and tags.
// Returns apperr.ErrSlugTaken when the slug already exists in the project.
func (s *Store) CreateWikiPage(ctx context.Context, projectID, title, slug string, tags []string) (*models.Document, error) {
	tagsJSON, _ := json.Marshal(nonNil(tags))
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, doc_type, title, slug, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, projectID, models.TypeWikiPage, title, slug, string(tagsJSON), now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, apperr.ErrSlugTaken
		}
		return nil, fmt.Errorf("store: create wiki page: %w", err)
	}
	return s.GetDocument(ctx, id)
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	return d, nil
}

// GetWikiPageBySlug returns the wiki page with the given slug in a project.
func (s *Store) GetWikiPageBySlug(ctx context.Context, projectID, slug string) (*models.Document, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE project_id = ? AND doc_type = ? AND slug = ?`,
		projectID, models.TypeWikiPage, slug)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: get wiki page by slug: %w", err)
	}
	return d, nil
}

// ListChapters returns a project's chapters in manuscript order.
func (s *Store) ListChapters(ctx context.Context, projectID string) ([]models.Document, error) {
	return s.listDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE project_id = ? AND doc_type = ? ORDER BY sort_order ASC`,
		projectID, models.TypeChapter)
}

// ListWikiPages returns a project's wiki pages ordered by title.
func (s *Store) ListWikiPages(ctx context.Context, projectID string) ([]models.Document, error) {
	return s.listDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE project_id = ? AND doc_type = ? ORDER BY title ASC`,
		projectID, models.TypeWikiPage)
}

// ListByProject returns every document in a project, wiki pages first then
// chapters, each group ordered by id for determinism.
func (s *Store) ListByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	return s.listDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE project_id = ? ORDER BY doc_type DESC, id ASC`,
		projectID)
}

func (s *Store) listDocuments(ctx context.Context, query string, args ...any) ([]models.Document, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// UpdateBody persists new body content and the recomputed word count.
func (s *Store) UpdateBody(ctx context.Context, id, body string, wordCount int) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE documents SET body = ?, word_count = ?, updated_at = ? WHERE id = ?
	`, body, wordCount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: update body: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// UpdateTitle renames a document. For wiki pages the slug is updated too.
func (s *Store) UpdateTitle(ctx context.Context, id, title, slug string) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE documents SET title = ?, slug = CASE WHEN doc_type = ? THEN ? ELSE slug END, updated_at = ?
		WHERE id = ?
	`, title, models.TypeWikiPage, slug, time.Now().UTC(), id)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return apperr.ErrSlugTaken
		}
		return fmt.Errorf("store: update title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ReorderChapters rewrites sort_order to match the given id sequence.
func (s *Store) ReorderChapters(ctx context.Context, projectID string, orderedIDs []string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for i, id := range orderedIDs {
		_, err := tx.ExecContext(ctx, `
			UPDATE documents SET sort_order = ? WHERE id = ? AND project_id = ? AND doc_type = ?
		`, i+1, id, projectID, models.TypeChapter)
		if err != nil {
			return fmt.Errorf("store: reorder: %w", err)
		}
	}
	return tx.Commit()
}

// SetTags replaces a wiki page's tag set.
func (s *Store) SetTags(ctx context.Context, id string, tags []string) error {
	tagsJSON, _ := json.Marshal(nonNil(tags))
	res, err := s.conn.ExecContext(ctx,
		`UPDATE documents SET tags = ?, updated_at = ? WHERE id = ?`,
		string(tagsJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: set tags: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document together with its incident link edges
// and, for chapters, its revisions.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	_, _ = tx.ExecContext(ctx, `DELETE FROM links WHERE source_id = ? OR target_id = ?`, id, id)
	_, _ = tx.ExecContext(ctx, `DELETE FROM revisions WHERE chapter_id = ?`, id)

	return tx.Commit()
}

// DocumentRef is the slim projection used for link resolution.
type DocumentRef struct {
	ID    string
	Type  models.DocType
	Title string
	Slug  string
}

// ListRefs returns id/type/title/slug for every document in a project,
// without loading bodies.
func (s *Store) ListRefs(ctx context.Context, projectID string) ([]DocumentRef, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, doc_type, title, slug FROM documents WHERE project_id = ? ORDER BY id ASC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list refs: %w", err)
	}
	defer rows.Close()

	var out []DocumentRef
	for rows.Next() {
		var r DocumentRef
		if err := rows.Scan(&r.ID, &r.Type, &r.Title, &r.Slug); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
