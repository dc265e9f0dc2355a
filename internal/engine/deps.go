// Package engine keeps the local, optimistic view of one discussion: the
// snapshot of comment records, the editing and reply selection, and the
// context waiting to be sent with the next comment.
package engine

import (
	"context"
	"encoding/json"

	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/logger"
	"chronicle/discuss/internal/richtext"
)

// Transport is the remote store of comment records.
type Transport interface {
	List(ctx context.Context, key comment.Key) ([]comment.Comment, error)
	Create(ctx context.Context, input comment.CreateInput) (comment.Comment, error)
	Update(ctx context.Context, key comment.Key, id string, input comment.UpdateInput) (comment.Comment, error)
	Delete(ctx context.Context, key comment.Key, id string) error
}

// RichContent understands structured comment bodies.
type RichContent interface {
	ExtractMentions(raw json.RawMessage) []string
	IsEmpty(raw json.RawMessage) bool
	Serialize(doc any) (json.RawMessage, error)
}

// Undoer performs a deletion that the user may still take back. onResolve
// is called exactly once, with true when the user undid the deletion.
type Undoer interface {
	Perform(ctx context.Context, key comment.Key, c comment.Comment, onResolve func(undone bool))
}

var defaultRichContent RichContent = richtext.ProseMirror{}

// Deps are the collaborators shared by every coordinator of a registry.
// Only Transport is required.
type Deps struct {
	Transport Transport
	Rich      RichContent
	Undo      Undoer
	Log       *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Rich == nil {
		d.Rich = defaultRichContent
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Undo == nil {
		d.Undo = immediateDelete{transport: d.Transport, log: d.Log}
	}
	return d
}

// immediateDelete offers no undo window.
type immediateDelete struct {
	transport Transport
	log       *logger.Logger
}

func (d immediateDelete) Perform(ctx context.Context, key comment.Key, c comment.Comment, onResolve func(bool)) {
	if err := d.transport.Delete(ctx, key, c.ID); err != nil {
		d.log.Error("delete comment failed", "key", key.String(), "comment_id", c.ID, "error", err)
	}
	onResolve(false)
}
