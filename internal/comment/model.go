// Package comment holds the comment record and the views derived from a
// flat snapshot of records: reply threads and emoji reaction tallies.
package comment

import (
	"encoding/json"
	"strings"
	"time"
)

// UnknownUser is shown in place of an author that no longer exists.
const UnknownUser = "Unknown user"

// Key identifies one discussion: every record of a snapshot shares it.
type Key struct {
	Scope  string `json:"scope"`
	ItemID string `json:"item_id"`
}

func (k Key) String() string {
	return k.Scope + "/" + k.ItemID
}

func (k Key) Valid() bool {
	return strings.TrimSpace(k.Scope) != "" && strings.TrimSpace(k.ItemID) != ""
}

type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Comment is the record exchanged with the comment transport. Records are
// treated as immutable values once received.
type Comment struct {
	ID            string          `json:"id"`
	Scope         string          `json:"scope"`
	ItemID        string          `json:"item_id"`
	Content       string          `json:"content,omitempty"`
	RichContent   json.RawMessage `json:"rich_content,omitempty"`
	CreatedBy     *Author         `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	Version       int             `json:"version"`
	SourceComment string          `json:"source_comment,omitempty"`
	ItemContext   ItemContext     `json:"item_context"`
}

func (c Comment) Key() Key {
	return Key{Scope: c.Scope, ItemID: c.ItemID}
}

// Root returns the id of the thread the record belongs to.
func (c Comment) Root() string {
	if c.SourceComment != "" {
		return c.SourceComment
	}
	return c.ID
}

func (c Comment) IsRoot() bool {
	return c.SourceComment == ""
}

func (c Comment) IsReaction() bool {
	return c.ItemContext.IsEmoji()
}

// Edited reports whether the record was changed after creation.
func (c Comment) Edited() bool {
	return c.Version > 0
}

func (c Comment) HasRichContent() bool {
	trimmed := strings.TrimSpace(string(c.RichContent))
	return trimmed != "" && trimmed != "null"
}

func (c Comment) AuthorName() string {
	if c.CreatedBy == nil || strings.TrimSpace(c.CreatedBy.DisplayName) == "" {
		return UnknownUser
	}
	return c.CreatedBy.DisplayName
}

func (c Comment) IsMine(userID string) bool {
	return userID != "" && c.CreatedBy != nil && c.CreatedBy.ID == userID
}

// CreateInput carries the fields sent when creating a record.
type CreateInput struct {
	Scope         string          `json:"scope"`
	ItemID        string          `json:"item_id"`
	Content       string          `json:"content,omitempty"`
	RichContent   json.RawMessage `json:"rich_content,omitempty"`
	SourceComment string          `json:"source_comment,omitempty"`
	ItemContext   ItemContext     `json:"item_context"`
	Mentions      []string        `json:"mentions,omitempty"`
}

func (in CreateInput) Key() Key {
	return Key{Scope: in.Scope, ItemID: in.ItemID}
}

// UpdateInput carries a replacement body. NewMentions lists only users who
// were not mentioned before the edit.
type UpdateInput struct {
	Content     string          `json:"content,omitempty"`
	RichContent json.RawMessage `json:"rich_content,omitempty"`
	NewMentions []string        `json:"new_mentions,omitempty"`
}
