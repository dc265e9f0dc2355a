package store

import (
	"encoding/json"
	"testing"
	"time"

	"chronicle/discuss/internal/comment"
)

func TestCommentRowConversion(t *testing.T) {
	row, err := NewCommentRow("c2", "u1", comment.CreateInput{
		Scope:         "doc",
		ItemID:        "item-1",
		Content:       "👍",
		SourceComment: "c1",
		ItemContext:   comment.EmojiContext(),
	})
	if err != nil {
		t.Fatalf("new row: %v", err)
	}
	if string(row.ItemContext) != `{"is_emoji":true}` {
		t.Fatalf("unexpected stored context %s", row.ItemContext)
	}
	row.CreatedByName = "Avery"
	row.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got := row.Comment()
	if !got.IsReaction() || got.SourceComment != "c1" || got.AuthorName() != "Avery" {
		t.Fatalf("unexpected comment %+v", got)
	}
}

func TestCommentRowWithoutAuthorOrContext(t *testing.T) {
	row, err := NewCommentRow("c1", "", comment.CreateInput{Scope: "doc", ItemID: "item-1", Content: "hi"})
	if err != nil {
		t.Fatalf("new row: %v", err)
	}
	if row.ItemContext != nil || row.SourceComment != nil || row.CreatedByID != nil {
		t.Fatalf("expected empty optional columns, got %+v", row)
	}
	got := row.Comment()
	if got.CreatedBy != nil || got.AuthorName() != comment.UnknownUser || !got.IsRoot() {
		t.Fatalf("unexpected comment %+v", got)
	}
}

func TestForeignContextSurvivesStorage(t *testing.T) {
	row := CommentRow{ID: "c1", ItemContext: json.RawMessage(`{"origin":"mobile"}`)}
	got := row.Comment()
	if got.ItemContext.Kind != comment.ContextUnknown {
		t.Fatalf("expected unknown context, got %+v", got.ItemContext)
	}
	if nullJSON(json.RawMessage("null")) != nil || nullJSON(nil) != nil {
		t.Fatal("null documents should be stored as SQL NULL")
	}
}
