// Package importer watches an inbox directory and imports dropped Markdown
// files as documents. Files live under <inbox>/<projectID>/name.md and may
// carry frontmatter (title, type, tags); imported files are removed.
package importer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ellsworth/fable/internal/apperr"
	"github.com/ellsworth/fable/internal/docservice"
	"github.com/ellsworth/fable/internal/models"
	"github.com/ellsworth/fable/internal/parser"
)

// settleDelay is how long a file must be quiet before it is imported, so
// partially written drops are not picked up mid-copy.
const settleDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the inbox root and imports files
// until ctx is cancelled. Files already present at start are imported
// first. New project subdirectories created at runtime are added to the
// watch list.
func Watch(ctx context.Context, svc *docservice.Service, inboxRoot string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, inboxRoot); err != nil {
		return err
	}

	logger.Info("importer: started", slog.String("root", inboxRoot))
	sweep(ctx, svc, inboxRoot, logger)

	// Pending files are imported once their settle timer expires.
	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("importer: stopped")
			return nil

		case <-settleCh:
			for p := range pending {
				importFile(ctx, svc, inboxRoot, p, logger)
			}
			pending = make(map[string]struct{})

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("importer: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pending[ev.Name] = struct{}{}
				scheduleSettle()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("importer: error", slog.String("error", watchErr.Error()))
		}
	}
}

// sweep imports any files already sitting in the inbox.
func sweep(ctx context.Context, svc *docservice.Service, inboxRoot string, logger *slog.Logger) {
	_ = filepath.WalkDir(inboxRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		importFile(ctx, svc, inboxRoot, path, logger)
		return nil
	})
}

// importFile reads, parses, and imports one dropped file, removing it on
// success. The project id is the file's first path segment under the
// inbox root.
func importFile(ctx context.Context, svc *docservice.Service, inboxRoot, absPath string, logger *slog.Logger) {
	rel, err := filepath.Rel(inboxRoot, absPath)
	if err != nil {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		logger.Warn("importer: file outside a project dir", slog.String("path", rel))
		return
	}
	projectID := parts[0]

	data, err := os.ReadFile(absPath)
	if err != nil {
		logger.Warn("importer: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	res, err := parser.Parse(data)
	if err != nil {
		logger.Warn("importer: parse failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(absPath), ".md")
	}

	var doc *models.Document
	switch res.DocTypeHint() {
	case string(models.TypeWikiPage):
		doc, err = svc.CreateWikiPage(ctx, projectID, title, res.Tags)
	default:
		doc, err = svc.CreateChapter(ctx, projectID, title)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrSlugTaken) {
			logger.Warn("importer: slug taken, skipping", slog.String("path", rel), slog.String("title", title))
		} else {
			logger.Warn("importer: create failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
		return
	}

	if _, err := svc.SaveDocument(ctx, doc.ID, res.Body); err != nil {
		logger.Warn("importer: save failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	if err := os.Remove(absPath); err != nil {
		logger.Warn("importer: remove failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
	logger.Info("importer: imported",
		slog.String("path", rel),
		slog.String("document_id", doc.ID),
		slog.String("type", string(doc.Type)))
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
