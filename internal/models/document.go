// Package models defines the domain types for Fable.
package models

import "time"

// DocType discriminates the two document variants.
type DocType string

const (
	TypeChapter  DocType = "chapter"
	TypeWikiPage DocType = "wiki_page"
)

// Document is a chapter or wiki page within a project.
//
// Slug and Tags are only meaningful for wiki pages; SortOrder and
// WordCount only for chapters. WordCount is derived from Body and
// recomputed on every persisted save.
type Document struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Type      DocType   `json:"type"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Body      string    `json:"body"`
	SortOrder int       `json:"sortOrder,omitempty"`
	WordCount int       `json:"wordCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LinkReference is a directed edge recording that the source document's
// body contains a link resolving to the target. Edges are a pure function
// of current bodies: multiple raw links to the same target inside one
// document collapse to a single edge.
type LinkReference struct {
	ProjectID  string    `json:"projectId"`
	SourceID   string    `json:"sourceId"`
	SourceType DocType   `json:"sourceType"`
	TargetID   string    `json:"targetId"`
	TargetType DocType   `json:"targetType"`
	RawTarget  string    `json:"rawTarget"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Backlink is a LinkReference viewed from the target side, annotated with
// the source's current title.
type Backlink struct {
	SourceType  DocType   `json:"sourceType"`
	SourceID    string    `json:"sourceId"`
	SourceTitle string    `json:"sourceTitle"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Mention is a backlink originating from a chapter and targeting a wiki
// page: "who references this lore entity in the manuscript".
type Mention struct {
	ChapterID    string `json:"chapterId"`
	ChapterTitle string `json:"chapterTitle"`
}

// Revision is an immutable snapshot of a chapter's content. Revisions are
// never mutated or deleted by normal operation; restoring one produces new
// live content through the ordinary save path.
//
// ChapterTitle is not stored: listings annotate it with the chapter's
// current title.
type Revision struct {
	ID           string    `json:"id"`
	ChapterID    string    `json:"chapterId"`
	ChapterTitle string    `json:"chapterTitle,omitempty"`
	Content      string    `json:"content"`
	Note         string    `json:"note"`
	CreatedAt    time.Time `json:"createdAt"`
}
