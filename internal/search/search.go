package search

import (
	"context"
	"time"

	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/richtext"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Scope   string `json:"scope"`
	ItemID  string `json:"itemId"`
	Snippet string `json:"snippet"`
	Author  string `json:"author"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Scope  string
	ItemID string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Backend is a search index that can also be written to.
type Backend interface {
	Searcher
	IndexComments(records []CommentRecord) error
	DeleteComment(id string) error
}

// RecordLoader reads every indexable comment from the primary store.
type RecordLoader interface {
	LoadAllRecords(ctx context.Context) ([]CommentRecord, error)
}

// CommentRecord is the data we index for a comment.
type CommentRecord struct {
	ID        string `json:"id"`
	Scope     string `json:"scope"`
	ItemID    string `json:"itemId"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	CreatedAt int64  `json:"createdAt"`
}

// RecordFor builds the index record of c. Reactions are not indexable.
func RecordFor(c comment.Comment) (CommentRecord, bool) {
	if c.IsReaction() {
		return CommentRecord{}, false
	}
	body := c.Content
	if c.HasRichContent() {
		if doc, err := richtext.Parse(c.RichContent); err == nil && !doc.IsEmpty() {
			body = doc.PlainText()
		}
	}
	return CommentRecord{
		ID:        c.ID,
		Scope:     c.Scope,
		ItemID:    c.ItemID,
		Body:      body,
		Author:    c.AuthorName(),
		CreatedAt: c.CreatedAt.UTC().Truncate(time.Second).Unix(),
	}, true
}
