package api

import "github.com/ellsworth/fable/internal/models"

// CreateChapterRequest is the request body for creating a chapter.
type CreateChapterRequest struct {
	Title string `json:"title"`
}

// CreateWikiPageRequest is the request body for creating a wiki page.
type CreateWikiPageRequest struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

// UpdateDocumentRequest carries a partial document update: a new title,
// new body content, or both.
type UpdateDocumentRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// SaveResponse reports the word count recomputed by a content save.
type SaveResponse struct {
	WordCount int `json:"wordCount"`
}

// EditRequest is the request body for streaming an edit into a session.
type EditRequest struct {
	Content string `json:"content"`
}

// ReorderRequest is the request body for reordering chapters.
type ReorderRequest struct {
	ChapterIDs []string `json:"chapterIds"`
}

// TagRequest is the request body for adding a wiki page tag.
type TagRequest struct {
	Tag string `json:"tag"`
}

// RevisionRequest is the request body for an explicit snapshot.
type RevisionRequest struct {
	Note string `json:"note"`
}

// RestoreResponse returns the restored content.
type RestoreResponse struct {
	Content string `json:"content"`
}

// RebuildResponse reports how many documents a rebuild processed.
type RebuildResponse struct {
	DocumentsProcessed int `json:"documentsProcessed"`
}

// BacklinksResponse wraps a backlink listing.
type BacklinksResponse struct {
	Backlinks []models.Backlink `json:"backlinks"`
}

// MentionsResponse wraps a mention listing.
type MentionsResponse struct {
	Mentions []models.Mention `json:"mentions"`
}
