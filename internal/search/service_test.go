package search

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"chronicle/discuss/internal/comment"
)

type fakeBackend struct {
	mu        sync.Mutex
	healthy   bool
	searchErr error
	results   []Result
	indexed   []CommentRecord
	batches   int
	deleted   []string
}

func (f *fakeBackend) Healthy() bool { return f.healthy }

func (f *fakeBackend) Search(context.Context, Query) ([]Result, int, error) {
	if f.searchErr != nil {
		return nil, 0, f.searchErr
	}
	return f.results, len(f.results), nil
}

func (f *fakeBackend) IndexComments(records []CommentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, records...)
	f.batches++
	return nil
}

func (f *fakeBackend) DeleteComment(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeFallback struct {
	results []Result
	records []CommentRecord
	calls   int
}

func (f *fakeFallback) Healthy() bool { return true }

func (f *fakeFallback) Search(context.Context, Query) ([]Result, int, error) {
	f.calls++
	return f.results, len(f.results), nil
}

func (f *fakeFallback) LoadAllRecords(context.Context) ([]CommentRecord, error) {
	return f.records, nil
}

func TestSearchPrefersHealthyIndex(t *testing.T) {
	index := &fakeBackend{healthy: true, results: []Result{{ID: "from-index"}}}
	fallback := &fakeFallback{results: []Result{{ID: "from-pg"}}}
	resp := NewService(index, fallback, nil).Search(context.Background(), Query{Text: "plan"})
	if len(resp.Results) != 1 || resp.Results[0].ID != "from-index" || fallback.calls != 0 {
		t.Fatalf("expected index results, got %+v", resp)
	}
}

func TestSearchFallsBackOnIndexError(t *testing.T) {
	index := &fakeBackend{healthy: true, searchErr: errors.New("timeout")}
	fallback := &fakeFallback{results: []Result{{ID: "from-pg"}}}
	resp := NewService(index, fallback, nil).Search(context.Background(), Query{Text: "plan"})
	if len(resp.Results) != 1 || resp.Results[0].ID != "from-pg" {
		t.Fatalf("expected fallback results, got %+v", resp)
	}
}

func TestSearchWithoutIndexOrResults(t *testing.T) {
	resp := NewService(nil, &fakeFallback{}, nil).Search(context.Background(), Query{Text: "none"})
	if resp.Results == nil || len(resp.Results) != 0 || resp.Query != "none" {
		t.Fatalf("expected empty non-nil results, got %+v", resp)
	}
}

func TestIndexCommentSkipsReactions(t *testing.T) {
	index := &fakeBackend{healthy: true}
	s := NewService(index, &fakeFallback{}, nil)

	s.IndexComment(comment.Comment{ID: "r1", Content: "👍", SourceComment: "c1", ItemContext: comment.EmojiContext()})
	s.IndexComment(comment.Comment{
		ID:          "c1",
		Scope:       "doc",
		ItemID:      "item-1",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		RichContent: json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"ship it"}]}]}`),
	})
	s.DeleteComment("c0")
	s.Wait()

	if len(index.indexed) != 1 || index.indexed[0].ID != "c1" {
		t.Fatalf("unexpected indexed records %+v", index.indexed)
	}
	if index.indexed[0].Body != "ship it" || index.indexed[0].Author != comment.UnknownUser {
		t.Fatalf("record not derived from rich content: %+v", index.indexed[0])
	}
	if len(index.deleted) != 1 || index.deleted[0] != "c0" {
		t.Fatalf("unexpected deletes %v", index.deleted)
	}
}

func TestUnhealthyIndexIsNotWritten(t *testing.T) {
	index := &fakeBackend{healthy: false}
	s := NewService(index, &fakeFallback{}, nil)
	s.IndexComment(comment.Comment{ID: "c1", Content: "hello"})
	s.Wait()
	if len(index.indexed) != 0 {
		t.Fatal("unhealthy index should be skipped")
	}
}

func TestReindexAllFromPGBatches(t *testing.T) {
	records := make([]CommentRecord, reindexBatch*2+1)
	for i := range records {
		records[i] = CommentRecord{ID: string(rune('a' + i%26))}
	}
	index := &fakeBackend{healthy: true}
	s := NewService(index, &fakeFallback{records: records}, nil)
	s.ReindexAllFromPG(context.Background())
	if index.batches != 3 || len(index.indexed) != len(records) {
		t.Fatalf("expected 3 batches of %d records, got %d batches %d records", len(records), index.batches, len(index.indexed))
	}
}
