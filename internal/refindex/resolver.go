// Package refindex maintains the bidirectional reference graph between
// documents: outgoing link recomputation, backlinks, and chapter mentions.
package refindex

import (
	"regexp"
	"strings"

	"github.com/ellsworth/fable/internal/models"
	"github.com/ellsworth/fable/internal/store"
)

var (
	slugStripRe    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugCollapseRe = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes a title or raw link target for comparison:
// lowercase, internal whitespace collapsed to single spaces, trimmed.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Slugify derives a URL-friendly slug from a title.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugStripRe.ReplaceAllString(slug, "")
	slug = slugCollapseRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// Resolution is the outcome of resolving one raw link target.
type Resolution struct {
	Ref *store.DocumentRef
	// Collided lists every candidate id when more than one document
	// matched the target; Ref is then the lexicographically smallest.
	Collided []string
}

// resolve maps a raw target to at most one document among refs. Wiki pages
// take precedence over chapters; the wiki is the canonical namespace for
// entity references. Matching compares normalized titles, and for wiki
// pages the slugified target against the stored slug. A miss returns a
// zero Resolution: a dangling link is a valid authoring state, not an
// error.
func resolve(refs []store.DocumentRef, rawTarget string) Resolution {
	nt := Normalize(rawTarget)
	if nt == "" {
		return Resolution{}
	}
	st := Slugify(rawTarget)

	var wiki, chapters []store.DocumentRef
	for i := range refs {
		r := refs[i]
		switch r.Type {
		case models.TypeWikiPage:
			if Normalize(r.Title) == nt || (r.Slug != "" && r.Slug == st) {
				wiki = append(wiki, r)
			}
		case models.TypeChapter:
			if Normalize(r.Title) == nt {
				chapters = append(chapters, r)
			}
		}
	}

	candidates := wiki
	if len(candidates) == 0 {
		candidates = chapters
	}
	switch len(candidates) {
	case 0:
		return Resolution{}
	case 1:
		return Resolution{Ref: &candidates[0]}
	}

	// Title collision: resolve deterministically to the smallest id and
	// report every candidate so the caller can log it.
	best := 0
	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
		if candidates[i].ID < candidates[best].ID {
			best = i
		}
	}
	return Resolution{Ref: &candidates[best], Collided: ids}
}
