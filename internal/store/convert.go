package store

import (
	"encoding/json"

	"chronicle/discuss/internal/comment"
)

// Comment converts the row to the record served to clients. An author that
// was removed becomes a nil CreatedBy.
func (r CommentRow) Comment() comment.Comment {
	out := comment.Comment{
		ID:          r.ID,
		Scope:       r.Scope,
		ItemID:      r.ItemID,
		Content:     r.Content,
		RichContent: r.RichContent,
		CreatedAt:   r.CreatedAt,
		Version:     r.Version,
	}
	if r.CreatedByID != nil {
		out.CreatedBy = &comment.Author{ID: *r.CreatedByID, DisplayName: r.CreatedByName}
	}
	if r.SourceComment != nil {
		out.SourceComment = *r.SourceComment
	}
	if len(r.ItemContext) > 0 {
		var ctx comment.ItemContext
		if err := json.Unmarshal(r.ItemContext, &ctx); err == nil {
			out.ItemContext = ctx
		}
	}
	return out
}

// Comments converts rows in order.
func Comments(rows []CommentRow) []comment.Comment {
	out := make([]comment.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Comment())
	}
	return out
}

// NewCommentRow builds the row for a new comment written by authorID.
func NewCommentRow(id, authorID string, input comment.CreateInput) (CommentRow, error) {
	row := CommentRow{
		ID:          id,
		Scope:       input.Scope,
		ItemID:      input.ItemID,
		Content:     input.Content,
		RichContent: input.RichContent,
	}
	if authorID != "" {
		row.CreatedByID = &authorID
	}
	if input.SourceComment != "" {
		source := input.SourceComment
		row.SourceComment = &source
	}
	if !input.ItemContext.IsZero() {
		raw, err := json.Marshal(input.ItemContext)
		if err != nil {
			return CommentRow{}, err
		}
		row.ItemContext = raw
	}
	return row, nil
}
