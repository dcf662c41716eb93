package refindex

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ellsworth/fable/internal/models"
	"github.com/ellsworth/fable/internal/parser"
	"github.com/ellsworth/fable/internal/store"
)

// rebuildConcurrency bounds the per-document fan-out of RebuildAll so one
// slow resolution does not stall the whole rebuild.
const rebuildConcurrency = 4

// Index derives link edges from document bodies and serves backlink
// queries. Edges are always a pure function of current persisted bodies:
// RecomputeOutgoing replaces a source's full edge set, never appends to it.
//
// Updates are serialized per source id; unrelated sources recompute in
// parallel. Edges are partitioned by source, so no index-wide lock exists.
type Index struct {
	store  *store.Store
	logger *slog.Logger

	mu          sync.Mutex
	sourceLocks map[string]*sync.Mutex
}

// New creates an Index over the given store.
func New(st *store.Store, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		store:       st,
		logger:      logger,
		sourceLocks: make(map[string]*sync.Mutex),
	}
}

func (ix *Index) sourceLock(sourceID string) *sync.Mutex {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	l, ok := ix.sourceLocks[sourceID]
	if !ok {
		l = &sync.Mutex{}
		ix.sourceLocks[sourceID] = l
	}
	return l
}

// RecomputeOutgoing parses the source's current persisted body, resolves
// every link occurrence against the project, and replaces the source's edge
// set with exactly the resolved set. Idempotent; atomic with respect to
// readers. The body is read from the store under the per-source lock, so
// the written edges always derive from the body current at write time,
// never from a caller's snapshot.
func (ix *Index) RecomputeOutgoing(ctx context.Context, sourceID string) error {
	l := ix.sourceLock(sourceID)
	l.Lock()
	defer l.Unlock()

	source, err := ix.store.GetDocument(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("refindex: load source: %w", err)
	}

	refs, err := ix.store.ListRefs(ctx, source.ProjectID)
	if err != nil {
		return fmt.Errorf("refindex: list refs: %w", err)
	}

	var edges []models.LinkReference
	seen := make(map[string]struct{})
	for _, target := range parser.Targets(source.Body) {
		res := resolve(refs, target)
		if res.Collided != nil {
			ix.logger.Warn("refindex: ambiguous link target",
				slog.String("source_id", source.ID),
				slog.String("target", target),
				slog.Any("candidates", res.Collided))
		}
		if res.Ref == nil {
			// Unresolved target: dangling link, no edge.
			continue
		}
		if _, dup := seen[res.Ref.ID]; dup {
			continue
		}
		seen[res.Ref.ID] = struct{}{}
		edges = append(edges, models.LinkReference{
			ProjectID:  source.ProjectID,
			SourceID:   source.ID,
			SourceType: source.Type,
			TargetID:   res.Ref.ID,
			TargetType: res.Ref.Type,
			RawTarget:  target,
		})
	}

	if err := ix.store.ReplaceOutgoing(ctx, source.ID, edges); err != nil {
		return fmt.Errorf("refindex: replace outgoing: %w", err)
	}
	return nil
}

// Backlinks returns every edge pointing at targetID, annotated with the
// source's current title and ordered by source title ascending.
func (ix *Index) Backlinks(ctx context.Context, targetID string) ([]models.Backlink, error) {
	return ix.store.Backlinks(ctx, targetID)
}

// Mentions returns the chapters referencing the given wiki page.
func (ix *Index) Mentions(ctx context.Context, wikiPageID string) ([]models.Mention, error) {
	return ix.store.Mentions(ctx, wikiPageID)
}

// RebuildAll recomputes outgoing edges for every document in the project
// with bounded concurrency. Safe to invoke concurrently with itself and
// with individual saves: each worker re-reads its document's body under
// the per-source lock, so a save landing mid-rebuild is never overwritten
// with edges from an older body. A document whose recompute fails (or was
// deleted since the listing) is logged and skipped; re-invoking the
// rebuild reconciles it. Returns the number of documents processed.
func (ix *Index) RebuildAll(ctx context.Context, projectID string) (int, error) {
	docs, err := ix.store.ListByProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("refindex: list project: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildConcurrency)
	for i := range docs {
		doc := docs[i]
		g.Go(func() error {
			if err := ix.RecomputeOutgoing(gCtx, doc.ID); err != nil {
				ix.logger.Warn("refindex: rebuild document failed",
					slog.String("document_id", doc.ID),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(docs), nil
}
