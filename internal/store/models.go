package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CommentRow is a comment as stored. The author name is joined from users
// and is empty when the author no longer exists.
type CommentRow struct {
	ID            string
	Scope         string
	ItemID        string
	Content       string
	RichContent   json.RawMessage
	CreatedByID   *string
	CreatedByName string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int
	SourceComment *string
	ItemContext   json.RawMessage
}

// CommentUpdate replaces the body of a comment.
type CommentUpdate struct {
	Content     string
	RichContent json.RawMessage
}
