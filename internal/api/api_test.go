package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ellsworth/fable/internal/models"
	"github.com/ellsworth/fable/internal/session"
	"github.com/ellsworth/fable/internal/testutil"
)

// testEnv sets up a temp store, service, session manager, and router.
// An empty token means auth disabled.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	svc, _ := testutil.TestService(t, 0)
	sessions := session.NewManager(svc, svc, session.Config{
		DebounceWindow: 20 * time.Millisecond,
		HistoryLimit:   100,
	})
	t.Cleanup(func() { sessions.CloseAll(context.Background()) })
	return NewRouter(svc, sessions, authToken != "", authToken, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createChapter(t *testing.T, router http.Handler, projectID, title string) models.Document {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/projects/"+projectID+"/chapters", map[string]string{"title": title})
	if w.Code != http.StatusCreated {
		t.Fatalf("create chapter = %d, body = %s", w.Code, w.Body.String())
	}
	var doc models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	return doc
}

func createWikiPage(t *testing.T, router http.Handler, projectID, title string) models.Document {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/projects/"+projectID+"/wiki", map[string]string{"title": title})
	if w.Code != http.StatusCreated {
		t.Fatalf("create wiki page = %d, body = %s", w.Code, w.Body.String())
	}
	var doc models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	return doc
}

func TestCreateAndGetChapter(t *testing.T) {
	router := testEnv(t, "")

	chap := createChapter(t, router, "p1", "Chapter One")
	w := doJSON(t, router, http.MethodGet, "/documents/"+chap.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "Chapter One" || got.Type != models.TypeChapter {
		t.Errorf("doc = %+v", got)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	router := testEnv(t, "")
	w := doJSON(t, router, http.MethodGet, "/documents/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateDocument_ContentReturnsWordCount(t *testing.T) {
	router := testEnv(t, "")
	chap := createChapter(t, router, "p1", "One")

	w := doJSON(t, router, http.MethodPatch, "/documents/"+chap.ID,
		map[string]string{"content": "five words are in here"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SaveResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.WordCount != 5 {
		t.Errorf("wordCount = %d, want 5", resp.WordCount)
	}
}

func TestUpdateDocument_EmptyBodyRejected(t *testing.T) {
	router := testEnv(t, "")
	chap := createChapter(t, router, "p1", "One")
	w := doJSON(t, router, http.MethodPatch, "/documents/"+chap.ID, map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWikiSlugConflict(t *testing.T) {
	router := testEnv(t, "")
	createWikiPage(t, router, "p1", "Rhea")
	w := doJSON(t, router, http.MethodPost, "/projects/p1/wiki", map[string]string{"title": "Rhea"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate slug = %d, want 409", w.Code)
	}
}

func TestBacklinksAndMentions(t *testing.T) {
	router := testEnv(t, "")
	page := createWikiPage(t, router, "p1", "Rhea")
	chap := createChapter(t, router, "p1", "One")

	w := doJSON(t, router, http.MethodPatch, "/documents/"+chap.ID,
		map[string]string{"content": "Enter [[Rhea]]."})
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/documents/"+page.ID+"/backlinks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks = %d", w.Code)
	}
	var bl BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &bl)
	if len(bl.Backlinks) != 1 || bl.Backlinks[0].SourceID != chap.ID {
		t.Errorf("backlinks = %+v", bl.Backlinks)
	}

	w = doJSON(t, router, http.MethodGet, "/wiki/"+page.ID+"/mentions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mentions = %d", w.Code)
	}
	var ms MentionsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &ms)
	if len(ms.Mentions) != 1 || ms.Mentions[0].ChapterID != chap.ID {
		t.Errorf("mentions = %+v", ms.Mentions)
	}
}

func TestMentions_OfChapterIs404(t *testing.T) {
	router := testEnv(t, "")
	chap := createChapter(t, router, "p1", "One")
	w := doJSON(t, router, http.MethodGet, "/wiki/"+chap.ID+"/mentions", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestReorderChapters(t *testing.T) {
	router := testEnv(t, "")
	a := createChapter(t, router, "p1", "A")
	b := createChapter(t, router, "p1", "B")

	w := doJSON(t, router, http.MethodPost, "/projects/p1/chapters/reorder",
		map[string][]string{"chapterIds": {b.ID, a.ID}})
	if w.Code != http.StatusNoContent {
		t.Fatalf("reorder = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/projects/p1/chapters", nil)
	var resp struct {
		Chapters []models.Document `json:"chapters"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Chapters) != 2 || resp.Chapters[0].ID != b.ID {
		t.Errorf("order = %+v", resp.Chapters)
	}
}

func TestRebuildLinks(t *testing.T) {
	router := testEnv(t, "")
	chap := createChapter(t, router, "p1", "One")
	doJSON(t, router, http.MethodPatch, "/documents/"+chap.ID,
		map[string]string{"content": "About [[Rhea]]."})

	// Target created after the save; a rebuild resolves the old body.
	page := createWikiPage(t, router, "p1", "Rhea")
	w := doJSON(t, router, http.MethodPost, "/projects/p1/links/rebuild", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild = %d", w.Code)
	}
	var resp RebuildResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.DocumentsProcessed != 2 {
		t.Errorf("processed = %d, want 2", resp.DocumentsProcessed)
	}

	w = doJSON(t, router, http.MethodGet, "/documents/"+page.ID+"/backlinks", nil)
	var bl BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &bl)
	if len(bl.Backlinks) != 1 {
		t.Errorf("backlinks after rebuild = %+v", bl.Backlinks)
	}
}

func TestRevisionsAndRestore(t *testing.T) {
	router := testEnv(t, "")
	chap := createChapter(t, router, "p1", "One")
	doJSON(t, router, http.MethodPatch, "/documents/"+chap.ID, map[string]string{"content": "draft one"})

	w := doJSON(t, router, http.MethodPost, "/chapters/"+chap.ID+"/revisions",
		map[string]string{"note": "checkpoint"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create revision = %d, body = %s", w.Code, w.Body.String())
	}
	var rev models.Revision
	_ = json.Unmarshal(w.Body.Bytes(), &rev)

	doJSON(t, router, http.MethodPatch, "/documents/"+chap.ID, map[string]string{"content": "draft two"})

	w = doJSON(t, router, http.MethodPost, "/revisions/"+rev.ID+"/restore", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore = %d", w.Code)
	}
	var restored RestoreResponse
	_ = json.Unmarshal(w.Body.Bytes(), &restored)
	if restored.Content != "draft one" {
		t.Errorf("restored = %q", restored.Content)
	}

	w = doJSON(t, router, http.MethodGet, "/chapters/"+chap.ID+"/revisions", nil)
	var list struct {
		Revisions []models.Revision `json:"revisions"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Revisions) != 1 {
		t.Fatalf("revisions = %+v", list.Revisions)
	}
	if list.Revisions[0].ChapterTitle != "One" {
		t.Errorf("chapterTitle = %q, want One", list.Revisions[0].ChapterTitle)
	}
}

func TestEditSessionLifecycle(t *testing.T) {
	router := testEnv(t, "")
	chap := createChapter(t, router, "p1", "One")

	w := doJSON(t, router, http.MethodPost, "/documents/"+chap.ID+"/edits",
		map[string]string{"content": "first words"})
	if w.Code != http.StatusOK {
		t.Fatalf("edit = %d, body = %s", w.Code, w.Body.String())
	}
	var snap session.Snapshot
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	if snap.Live != "first words" || !snap.CanUndo {
		t.Errorf("snapshot = %+v", snap)
	}

	w = doJSON(t, router, http.MethodPost, "/documents/"+chap.ID+"/undo", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	if snap.Live != "" || !snap.CanRedo {
		t.Errorf("after undo = %+v", snap)
	}

	w = doJSON(t, router, http.MethodPost, "/documents/"+chap.ID+"/redo", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	if snap.Live != "first words" {
		t.Errorf("after redo = %+v", snap)
	}

	w = doJSON(t, router, http.MethodGet, "/documents/"+chap.ID+"/session", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get session = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/documents/"+chap.ID+"/close", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("close = %d", w.Code)
	}
	// Close flushed the live content through the save path.
	w = doJSON(t, router, http.MethodGet, "/documents/"+chap.ID, nil)
	var doc models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if doc.Body != "first words" {
		t.Errorf("body after close = %q", doc.Body)
	}

	w = doJSON(t, router, http.MethodGet, "/documents/"+chap.ID+"/session", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("session after close = %d, want 404", w.Code)
	}
}

func TestEditSession_UnknownDocument(t *testing.T) {
	router := testEnv(t, "")
	w := doJSON(t, router, http.MethodPost, "/documents/ghost/edits", map[string]string{"content": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestTagsEndpoints(t *testing.T) {
	router := testEnv(t, "")
	page := createWikiPage(t, router, "p1", "Rhea")

	w := doJSON(t, router, http.MethodPost, "/wiki/"+page.ID+"/tags", map[string]string{"tag": "pov"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("add tag = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/wiki/"+page.ID+"/tags/pov", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("remove tag = %d", w.Code)
	}
}

func TestAuth_TokenMode(t *testing.T) {
	router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/projects/p1/chapters", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/projects/p1/chapters", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/projects/p1/chapters", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("good token = %d, want 200", w.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	router := testEnv(t, "")
	chap := createChapter(t, router, "p1", "One")

	w := doJSON(t, router, http.MethodDelete, "/documents/"+chap.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/documents/"+chap.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("after delete = %d, want 404", w.Code)
	}
}
