package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"chronicle/discuss/internal/comment"
)

var testKey = comment.Key{Scope: "doc", ItemID: "item-1"}

type fakeTransport struct {
	listFn   func(context.Context, comment.Key) ([]comment.Comment, error)
	createFn func(context.Context, comment.CreateInput) (comment.Comment, error)
	updateFn func(context.Context, comment.Key, string, comment.UpdateInput) (comment.Comment, error)
	deleteFn func(context.Context, comment.Key, string) error

	mu      sync.Mutex
	seq     int
	created []comment.CreateInput
	updated []comment.UpdateInput
	deleted []string
}

func (f *fakeTransport) List(ctx context.Context, key comment.Key) ([]comment.Comment, error) {
	if f.listFn != nil {
		return f.listFn(ctx, key)
	}
	return []comment.Comment{}, nil
}

func (f *fakeTransport) Create(ctx context.Context, input comment.CreateInput) (comment.Comment, error) {
	f.mu.Lock()
	f.created = append(f.created, input)
	f.seq++
	seq := f.seq
	f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(ctx, input)
	}
	return comment.Comment{
		ID:            fmt.Sprintf("new-%d", seq),
		Scope:         input.Scope,
		ItemID:        input.ItemID,
		Content:       input.Content,
		RichContent:   input.RichContent,
		CreatedBy:     &comment.Author{ID: "u-me", DisplayName: "Me"},
		CreatedAt:     at(100 + seq),
		SourceComment: input.SourceComment,
		ItemContext:   input.ItemContext,
	}, nil
}

func (f *fakeTransport) Update(ctx context.Context, key comment.Key, id string, input comment.UpdateInput) (comment.Comment, error) {
	f.mu.Lock()
	f.updated = append(f.updated, input)
	f.mu.Unlock()
	if f.updateFn != nil {
		return f.updateFn(ctx, key, id, input)
	}
	return comment.Comment{ID: id, Scope: key.Scope, ItemID: key.ItemID, Content: input.Content, RichContent: input.RichContent, Version: 1}, nil
}

func (f *fakeTransport) Delete(ctx context.Context, key comment.Key, id string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	if f.deleteFn != nil {
		return f.deleteFn(ctx, key, id)
	}
	return nil
}

func (f *fakeTransport) lastCreated() comment.CreateInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[len(f.created)-1]
}

// fakeUndo records deletions and lets the test decide how they resolve.
type fakeUndo struct {
	mu      sync.Mutex
	pending map[string]func(bool)
}

func (f *fakeUndo) Perform(_ context.Context, _ comment.Key, c comment.Comment, onResolve func(bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		f.pending = map[string]func(bool){}
	}
	f.pending[c.ID] = onResolve
}

func (f *fakeUndo) resolve(id string, undone bool) {
	f.mu.Lock()
	cb := f.pending[id]
	delete(f.pending, id)
	f.mu.Unlock()
	if cb != nil {
		cb(undone)
	}
}

func at(minutes int) time.Time {
	return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
}

func record(id, source string, minutes int) comment.Comment {
	return comment.Comment{
		ID:            id,
		Scope:         testKey.Scope,
		ItemID:        testKey.ItemID,
		Content:       "body of " + id,
		CreatedBy:     &comment.Author{ID: "u-" + id, DisplayName: "Author " + id},
		CreatedAt:     at(minutes),
		SourceComment: source,
	}
}

// mentionDoc builds a ProseMirror document mentioning ids.
func mentionDoc(ids ...string) json.RawMessage {
	nodes := make([]string, 0, len(ids)+1)
	nodes = append(nodes, `{"type":"text","text":"hey "}`)
	for _, id := range ids {
		nodes = append(nodes, fmt.Sprintf(`{"type":"mention","attrs":{"id":%q,"label":%q}}`, id, id))
	}
	return json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[` + strings.Join(nodes, ",") + `]}]}`)
}

func ids(comments []comment.Comment) string {
	out := make([]string, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.ID)
	}
	return strings.Join(out, ",")
}

func loaded(t interface{ Fatalf(string, ...any) }, transport *fakeTransport, undo Undoer, records ...comment.Comment) *Coordinator {
	transport.listFn = func(context.Context, comment.Key) ([]comment.Comment, error) {
		return records, nil
	}
	c := New(testKey, Deps{Transport: transport, Undo: undo})
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}
