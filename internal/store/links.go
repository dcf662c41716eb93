package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ellsworth/fable/internal/models"
)

// ReplaceOutgoing atomically replaces every link edge whose source is
// sourceID with the given set, inside a single transaction. Readers never
// observe a partially replaced edge set. The UNIQUE(source_id, target_id)
// constraint collapses duplicate targets; the first raw occurrence wins.
func (s *Store) ReplaceOutgoing(ctx context.Context, sourceID string, refs []models.LinkReference) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("store: delete outgoing: %w", err)
	}
	if len(refs) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO links (project_id, source_id, source_type, target_id, target_type, raw_target, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("store: prepare link insert: %w", err)
		}
		defer stmt.Close()
		now := time.Now().UTC()
		for _, r := range refs {
			if _, err := stmt.ExecContext(ctx, r.ProjectID, r.SourceID, r.SourceType,
				r.TargetID, r.TargetType, r.RawTarget, now); err != nil {
				return fmt.Errorf("store: insert link: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Outgoing returns the current edge set for a source document.
func (s *Store) Outgoing(ctx context.Context, sourceID string) ([]models.LinkReference, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT project_id, source_id, source_type, target_id, target_type, raw_target, created_at
		FROM links WHERE source_id = ? ORDER BY target_id ASC
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("store: outgoing: %w", err)
	}
	defer rows.Close()

	var out []models.LinkReference
	for rows.Next() {
		var r models.LinkReference
		if err := rows.Scan(&r.ProjectID, &r.SourceID, &r.SourceType,
			&r.TargetID, &r.TargetType, &r.RawTarget, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Backlinks returns every edge pointing at targetID, annotated with the
// source's current title and ordered by source title ascending.
func (s *Store) Backlinks(ctx context.Context, targetID string) ([]models.Backlink, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT l.source_type, l.source_id, d.title, l.created_at
		FROM links l
		JOIN documents d ON d.id = l.source_id
		WHERE l.target_id = ?
		ORDER BY d.title ASC, l.source_id ASC
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("store: backlinks: %w", err)
	}
	defer rows.Close()

	var out []models.Backlink
	for rows.Next() {
		var b models.Backlink
		if err := rows.Scan(&b.SourceType, &b.SourceID, &b.SourceTitle, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Mentions returns the chapters whose bodies link to the given wiki page,
// ordered by chapter title ascending.
func (s *Store) Mentions(ctx context.Context, wikiPageID string) ([]models.Mention, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT d.id, d.title
		FROM links l
		JOIN documents d ON d.id = l.source_id
		WHERE l.target_id = ? AND l.source_type = ?
		ORDER BY d.title ASC, d.id ASC
	`, wikiPageID, models.TypeChapter)
	if err != nil {
		return nil, fmt.Errorf("store: mentions: %w", err)
	}
	defer rows.Close()

	var out []models.Mention
	for rows.Next() {
		var m models.Mention
		if err := rows.Scan(&m.ChapterID, &m.ChapterTitle); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
