package search

import (
	"context"
	"sync"

	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/logger"
	"golang.org/x/sync/errgroup"
)

const reindexBatch = 500

// Service is the facade that tries the index first and falls back to PG FTS.
type Service struct {
	index    Backend
	fallback Searcher
	loader   RecordLoader
	log      *logger.Logger
	pending  sync.WaitGroup
}

// NewService creates a search service. index may be nil when Meilisearch is
// not configured.
func NewService(index Backend, fallback Searcher, log *logger.Logger) *Service {
	s := &Service{index: index, fallback: fallback, log: log}
	if loader, ok := fallback.(RecordLoader); ok {
		s.loader = loader
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

// Search tries the index if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.indexReady() {
		results, total, err := s.index.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn("search index error, falling back to pgfts", "error", err)
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.log.Error("pgfts search failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexComment indexes a comment in the background. Reactions are skipped.
func (s *Service) IndexComment(c comment.Comment) {
	record, ok := RecordFor(c)
	if !ok || !s.indexReady() {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.index.IndexComments([]CommentRecord{record}); err != nil {
			s.log.Warn("index comment failed", "comment_id", record.ID, "error", err)
		}
	}()
}

// DeleteComment removes a comment from the index in the background.
func (s *Service) DeleteComment(id string) {
	if !s.indexReady() {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.index.DeleteComment(id); err != nil {
			s.log.Warn("delete comment from index failed", "comment_id", id, "error", err)
		}
	}()
}

// Wait blocks until background index writes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// ReindexAll pushes records to the index in parallel batches.
func (s *Service) ReindexAll(ctx context.Context, records []CommentRecord) error {
	if !s.indexReady() || len(records) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(records); start += reindexBatch {
		end := min(start+reindexBatch, len(records))
		batch := records[start:end]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return s.index.IndexComments(batch)
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("reindex comments failed", "error", err)
		return err
	}
	s.log.Info("reindexed comments", "count", len(records))
	return nil
}

// ReindexAllFromPG reindexes every comment from PostgreSQL.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.indexReady() || s.loader == nil {
		return
	}
	records, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error("reindex load failed", "error", err)
		return
	}
	_ = s.ReindexAll(ctx, records)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
