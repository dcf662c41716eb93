package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ellsworth/fable/internal/apperr"
	"github.com/ellsworth/fable/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "fable-store-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	st, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateChapter_AppendsSortOrder(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	c1, err := st.CreateChapter(ctx, "p1", "One")
	if err != nil {
		t.Fatal(err)
	}
	c2, err := st.CreateChapter(ctx, "p1", "Two")
	if err != nil {
		t.Fatal(err)
	}
	if c1.SortOrder != 1 || c2.SortOrder != 2 {
		t.Errorf("sort orders = %d, %d, want 1, 2", c1.SortOrder, c2.SortOrder)
	}

	chapters, err := st.ListChapters(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 2 || chapters[0].ID != c1.ID || chapters[1].ID != c2.ID {
		t.Errorf("chapters not in manuscript order: %+v", chapters)
	}
}

func TestCreateChapter_SortOrderPerProject(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, err := st.CreateChapter(ctx, "p1", "One"); err != nil {
		t.Fatal(err)
	}
	other, err := st.CreateChapter(ctx, "p2", "First in p2")
	if err != nil {
		t.Fatal(err)
	}
	if other.SortOrder != 1 {
		t.Errorf("sort order in fresh project = %d, want 1", other.SortOrder)
	}
}

func TestCreateWikiPage_SlugConflict(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, err := st.CreateWikiPage(ctx, "p1", "Rhea", "rhea", nil); err != nil {
		t.Fatal(err)
	}
	_, err := st.CreateWikiPage(ctx, "p1", "Rhea Again", "rhea", nil)
	if !errors.Is(err, apperr.ErrSlugTaken) {
		t.Errorf("duplicate slug error = %v, want ErrSlugTaken", err)
	}

	// Same slug in another project is fine.
	if _, err := st.CreateWikiPage(ctx, "p2", "Rhea", "rhea", nil); err != nil {
		t.Errorf("same slug in other project should pass: %v", err)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	st := testStore(t)
	_, err := st.GetDocument(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateBody_And_WordCount(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	c, err := st.CreateChapter(ctx, "p1", "One")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateBody(ctx, c.ID, "hello brave new world", 4); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetDocument(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "hello brave new world" || got.WordCount != 4 {
		t.Errorf("body = %q, wc = %d", got.Body, got.WordCount)
	}

	if err := st.UpdateBody(ctx, "missing", "x", 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing update error = %v, want ErrNotFound", err)
	}
}

func TestUpdateTitle_WikiSlugFollows(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	w, err := st.CreateWikiPage(ctx, "p1", "Old Name", "old-name", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateTitle(ctx, w.ID, "New Name", "new-name"); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetWikiPageBySlug(ctx, "p1", "new-name")
	if err != nil {
		t.Fatalf("lookup by new slug: %v", err)
	}
	if got.Title != "New Name" {
		t.Errorf("title = %q", got.Title)
	}

	c, _ := st.CreateChapter(ctx, "p1", "Chapter")
	if err := st.UpdateTitle(ctx, c.ID, "Renamed Chapter", "renamed-chapter"); err != nil {
		t.Fatal(err)
	}
	gotC, _ := st.GetDocument(ctx, c.ID)
	if gotC.Slug != "" {
		t.Errorf("chapter slug = %q, want empty", gotC.Slug)
	}
}

func TestReorderChapters(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	a, _ := st.CreateChapter(ctx, "p1", "A")
	b, _ := st.CreateChapter(ctx, "p1", "B")
	c, _ := st.CreateChapter(ctx, "p1", "C")

	if err := st.ReorderChapters(ctx, "p1", []string{c.ID, a.ID, b.ID}); err != nil {
		t.Fatal(err)
	}
	chapters, _ := st.ListChapters(ctx, "p1")
	want := []string{c.ID, a.ID, b.ID}
	for i, ch := range chapters {
		if ch.ID != want[i] {
			t.Fatalf("position %d = %s, want %s", i, ch.ID, want[i])
		}
	}
}

func TestReplaceOutgoing_Replaces(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	src, _ := st.CreateChapter(ctx, "p1", "Source")
	t1, _ := st.CreateWikiPage(ctx, "p1", "T1", "t1", nil)
	t2, _ := st.CreateWikiPage(ctx, "p1", "T2", "t2", nil)

	edge := func(target *models.Document) models.LinkReference {
		return models.LinkReference{
			ProjectID:  "p1",
			SourceID:   src.ID,
			SourceType: src.Type,
			TargetID:   target.ID,
			TargetType: target.Type,
			RawTarget:  target.Title,
		}
	}

	if err := st.ReplaceOutgoing(ctx, src.ID, []models.LinkReference{edge(t1), edge(t2)}); err != nil {
		t.Fatal(err)
	}
	out, _ := st.Outgoing(ctx, src.ID)
	if len(out) != 2 {
		t.Fatalf("outgoing = %d, want 2", len(out))
	}

	// Replacement drops the old set entirely.
	if err := st.ReplaceOutgoing(ctx, src.ID, []models.LinkReference{edge(t2)}); err != nil {
		t.Fatal(err)
	}
	out, _ = st.Outgoing(ctx, src.ID)
	if len(out) != 1 || out[0].TargetID != t2.ID {
		t.Errorf("after replace: %+v", out)
	}

	// Empty set clears.
	if err := st.ReplaceOutgoing(ctx, src.ID, nil); err != nil {
		t.Fatal(err)
	}
	out, _ = st.Outgoing(ctx, src.ID)
	if len(out) != 0 {
		t.Errorf("after clear: %+v", out)
	}
}

func TestReplaceOutgoing_DuplicateTargetsCollapse(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	src, _ := st.CreateChapter(ctx, "p1", "Source")
	tgt, _ := st.CreateWikiPage(ctx, "p1", "Target", "target", nil)

	e := models.LinkReference{
		ProjectID: "p1", SourceID: src.ID, SourceType: src.Type,
		TargetID: tgt.ID, TargetType: tgt.Type, RawTarget: "Target",
	}
	if err := st.ReplaceOutgoing(ctx, src.ID, []models.LinkReference{e, e}); err != nil {
		t.Fatal(err)
	}
	out, _ := st.Outgoing(ctx, src.ID)
	if len(out) != 1 {
		t.Errorf("duplicate edges collapsed to %d rows, want 1", len(out))
	}
}

func TestBacklinks_OrderedBySourceTitle(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	tgt, _ := st.CreateWikiPage(ctx, "p1", "Rhea", "rhea", nil)
	zeta, _ := st.CreateChapter(ctx, "p1", "Zeta")
	alpha, _ := st.CreateChapter(ctx, "p1", "Alpha")

	for _, src := range []*models.Document{zeta, alpha} {
		err := st.ReplaceOutgoing(ctx, src.ID, []models.LinkReference{{
			ProjectID: "p1", SourceID: src.ID, SourceType: src.Type,
			TargetID: tgt.ID, TargetType: tgt.Type, RawTarget: "Rhea",
		}})
		if err != nil {
			t.Fatal(err)
		}
	}

	bl, err := st.Backlinks(ctx, tgt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 2 {
		t.Fatalf("backlinks = %d, want 2", len(bl))
	}
	if bl[0].SourceTitle != "Alpha" || bl[1].SourceTitle != "Zeta" {
		t.Errorf("order = %q, %q, want Alpha, Zeta", bl[0].SourceTitle, bl[1].SourceTitle)
	}
}

func TestMentions_ChaptersOnly(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	page, _ := st.CreateWikiPage(ctx, "p1", "Rhea", "rhea", nil)
	chap, _ := st.CreateChapter(ctx, "p1", "One")
	other, _ := st.CreateWikiPage(ctx, "p1", "Other", "other", nil)

	for _, src := range []*models.Document{chap, other} {
		err := st.ReplaceOutgoing(ctx, src.ID, []models.LinkReference{{
			ProjectID: "p1", SourceID: src.ID, SourceType: src.Type,
			TargetID: page.ID, TargetType: page.Type, RawTarget: "Rhea",
		}})
		if err != nil {
			t.Fatal(err)
		}
	}

	ms, err := st.Mentions(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 || ms[0].ChapterID != chap.ID {
		t.Errorf("mentions = %+v, want only chapter %s", ms, chap.ID)
	}
}

func TestDeleteDocument_CascadesEdgesAndRevisions(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	chap, _ := st.CreateChapter(ctx, "p1", "One")
	page, _ := st.CreateWikiPage(ctx, "p1", "Rhea", "rhea", nil)

	_ = st.ReplaceOutgoing(ctx, chap.ID, []models.LinkReference{{
		ProjectID: "p1", SourceID: chap.ID, SourceType: chap.Type,
		TargetID: page.ID, TargetType: page.Type, RawTarget: "Rhea",
	}})
	if _, err := st.AddRevision(ctx, chap.ID, "draft", "manual"); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteDocument(ctx, chap.ID); err != nil {
		t.Fatal(err)
	}
	if out, _ := st.Outgoing(ctx, chap.ID); len(out) != 0 {
		t.Errorf("edges survived delete: %+v", out)
	}
	if revs, _ := st.ListRevisions(ctx, chap.ID); len(revs) != 0 {
		t.Errorf("revisions survived delete: %+v", revs)
	}
	if bl, _ := st.Backlinks(ctx, page.ID); len(bl) != 0 {
		t.Errorf("backlinks survived delete: %+v", bl)
	}

	if err := st.DeleteDocument(ctx, chap.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestRevisions_NewestFirst(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	chap, _ := st.CreateChapter(ctx, "p1", "One")
	r1, _ := st.AddRevision(ctx, chap.ID, "v1", "")
	r2, _ := st.AddRevision(ctx, chap.ID, "v2", "autosave")

	revs, err := st.ListRevisions(ctx, chap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 2 || revs[0].ID != r2.ID || revs[1].ID != r1.ID {
		t.Errorf("revisions not newest-first: %+v", revs)
	}

	latest, err := st.LatestRevision(ctx, chap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != r2.ID {
		t.Errorf("latest = %+v, want %s", latest, r2.ID)
	}

	got, err := st.GetRevision(ctx, r1.ID)
	if err != nil || got.Content != "v1" {
		t.Errorf("get revision = %+v, %v", got, err)
	}
}

func TestLatestRevision_NoneIsNil(t *testing.T) {
	st := testStore(t)
	latest, err := st.LatestRevision(context.Background(), "nothing")
	if err != nil {
		t.Fatal(err)
	}
	if latest != nil {
		t.Errorf("latest = %+v, want nil", latest)
	}
}

func TestSetTags_RoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	w, _ := st.CreateWikiPage(ctx, "p1", "Rhea", "rhea", []string{"protagonist"})
	if err := st.SetTags(ctx, w.ID, []string{"protagonist", "pov"}); err != nil {
		t.Fatal(err)
	}
	got, _ := st.GetDocument(ctx, w.ID)
	if len(got.Tags) != 2 || got.Tags[1] != "pov" {
		t.Errorf("tags = %v", got.Tags)
	}
}
