package engine

import (
	"context"
	"strings"
	"sync"

	"chronicle/discuss/internal/comment"
)

// Coordinator owns the snapshot of one discussion and applies mutations to
// it optimistically.
//
// Transport calls run without the lock held, so commands may overlap. Every
// result is applied as a function of the snapshot current when the call
// completes, which keeps interleaved mutations from overwriting each other.
type Coordinator struct {
	key  comment.Key
	deps Deps

	mu       sync.Mutex
	snapshot []comment.Comment
	revision uint64
	loadGen  uint64
	sel      selection
	comp     composer
	closed   bool

	views comment.Views
}

func New(key comment.Key, deps Deps) *Coordinator {
	return &Coordinator{key: key, deps: deps.withDefaults(), snapshot: []comment.Comment{}}
}

func (c *Coordinator) Key() comment.Key {
	return c.key
}

// Load replaces the snapshot with the transport's current list. On failure
// the previous snapshot is kept. A response that arrives after a newer Load
// was issued is discarded.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fetchError("load", ErrClosed)
	}
	c.loadGen++
	gen := c.loadGen
	c.mu.Unlock()

	list, err := c.deps.Transport.List(ctx, c.key)
	if err != nil {
		c.deps.Log.Warn("load comments failed", "key", c.key.String(), "error", err)
		return fetchError("load", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.loadGen {
		c.deps.Log.Warn("discarding stale comment list", "key", c.key.String(), "generation", gen)
		return nil
	}
	next := make([]comment.Comment, len(list))
	copy(next, list)
	c.replaceLocked("load", next)
	return nil
}

// Create sends a new comment. With a reply target selected the comment joins
// the target's thread. Attached context rides along and is resolved as sent.
// On failure the selection and context stay in place for a retry.
func (c *Coordinator) Create(ctx context.Context, body Body) (comment.Comment, error) {
	encoded, err := encodeBody(c.deps.Rich, body)
	if err != nil {
		return comment.Comment{}, validationError("create", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return comment.Comment{}, submitError("create", ErrClosed)
	}
	input := comment.CreateInput{
		Scope:       c.key.Scope,
		ItemID:      c.key.ItemID,
		Content:     encoded.content,
		RichContent: encoded.rich,
		Mentions:    encoded.mentions,
	}
	var replyTarget string
	if c.sel.replyTo != nil {
		replyTarget = c.sel.replyTo.ID
		input.SourceComment = c.sel.replyTo.Root()
	}
	token, metadata := c.comp.snapshot()
	input.ItemContext = comment.AttachedContext(metadata)
	c.mu.Unlock()

	created, err := c.deps.Transport.Create(ctx, input)
	if err != nil {
		return comment.Comment{}, submitError("create", err)
	}

	c.mu.Lock()
	var fire []func()
	if !c.closed {
		c.appendLocked("create", created)
		if c.sel.replyTo != nil && c.sel.replyTo.ID == replyTarget {
			c.sel.replyTo = nil
		}
		if token != 0 {
			fire = c.comp.releaseIf(token, true)
		}
	}
	c.mu.Unlock()
	run(fire)
	return created, nil
}

// React records emoji against exactly targetID. Reactions are never
// flattened to a thread root.
func (c *Coordinator) React(ctx context.Context, emoji, targetID string) (comment.Comment, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return comment.Comment{}, validationError("react", ErrEmptyBody)
	}
	if strings.TrimSpace(targetID) == "" {
		return comment.Comment{}, validationError("react", ErrMissingTarget)
	}
	if c.isClosed() {
		return comment.Comment{}, submitError("react", ErrClosed)
	}
	created, err := c.deps.Transport.Create(ctx, comment.CreateInput{
		Scope:         c.key.Scope,
		ItemID:        c.key.ItemID,
		Content:       emoji,
		SourceComment: targetID,
		ItemContext:   comment.EmojiContext(),
	})
	if err != nil {
		return comment.Comment{}, submitError("react", err)
	}
	c.mu.Lock()
	if !c.closed {
		c.appendLocked("react", created)
	}
	c.mu.Unlock()
	return created, nil
}

// StartEdit puts target into editing state and remembers who its body
// mentions right now. Any other edit in progress is dropped.
func (c *Coordinator) StartEdit(target comment.Comment) {
	mentions := c.mentionsOf(target)
	c.mu.Lock()
	c.sel.edit = &editing{target: target, mentions: mentions}
	c.mu.Unlock()
}

func (c *Coordinator) CancelEdit() {
	c.mu.Lock()
	c.sel.edit = nil
	c.mu.Unlock()
}

// Edit replaces the body of target. Only users who were not mentioned when
// editing began are reported as new mentions. On failure the editing state
// is kept.
func (c *Coordinator) Edit(ctx context.Context, target comment.Comment, body Body) (comment.Comment, error) {
	encoded, err := encodeBody(c.deps.Rich, body)
	if err != nil {
		return comment.Comment{}, validationError("edit", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return comment.Comment{}, submitError("edit", ErrClosed)
	}
	var before []string
	captured := c.sel.edit != nil && c.sel.edit.target.ID == target.ID
	if captured {
		before = c.sel.edit.mentions
	}
	c.mu.Unlock()
	if !captured {
		before = c.mentionsOf(target)
	}

	updated, err := c.deps.Transport.Update(ctx, c.key, target.ID, comment.UpdateInput{
		Content:     encoded.content,
		RichContent: encoded.rich,
		NewMentions: mentionDelta(before, encoded.mentions),
	})
	if err != nil {
		return comment.Comment{}, submitError("edit", err)
	}

	c.mu.Lock()
	if !c.closed {
		c.applyLocked("edit", func(current []comment.Comment) []comment.Comment {
			next := make([]comment.Comment, len(current))
			for i, existing := range current {
				if existing.ID == updated.ID {
					next[i] = updated
					continue
				}
				next[i] = existing
			}
			return next
		})
		if c.sel.edit != nil && c.sel.edit.target.ID == target.ID {
			c.sel.edit = nil
		}
	}
	c.mu.Unlock()
	return updated, nil
}

// Delete removes target from the snapshot at once and hands it to the undo
// collaborator. If the user undoes, the record is appended to whatever the
// snapshot is at that time.
func (c *Coordinator) Delete(ctx context.Context, target comment.Comment) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.applyLocked("delete", func(current []comment.Comment) []comment.Comment {
		next := make([]comment.Comment, 0, len(current))
		for _, existing := range current {
			if existing.ID != target.ID {
				next = append(next, existing)
			}
		}
		return next
	})
	c.mu.Unlock()

	c.deps.Undo.Perform(ctx, c.key, target, func(undone bool) {
		if undone {
			c.restore(target)
		}
	})
}

func (c *Coordinator) restore(original comment.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, existing := range c.snapshot {
		if existing.ID == original.ID {
			return
		}
	}
	c.appendLocked("restore", original)
}

// SelectReply makes target the reply target. Pending attached context is
// resolved as not sent.
func (c *Coordinator) SelectReply(target comment.Comment) {
	c.mu.Lock()
	selected := target
	c.sel.replyTo = &selected
	fire := c.comp.release(false)
	c.mu.Unlock()
	run(fire)
}

func (c *Coordinator) CancelReply() {
	c.mu.Lock()
	c.sel.replyTo = nil
	c.mu.Unlock()
}

// Attach stores metadata for the next Create. onResolved fires exactly once:
// with Sent true when a comment carried the metadata, otherwise false (the
// context was cancelled or replaced, or the discussion closed). Empty
// metadata resolves immediately as not sent.
//
// Known gap: when CancelContext, SelectReply or Close runs while a Create
// carrying the metadata is in flight, onResolved reports Sent false even
// though the created comment holds the metadata in its item context.
func (c *Coordinator) Attach(metadata map[string]any, onResolved func(Resolution)) {
	c.mu.Lock()
	var fire []func()
	if c.closed {
		fire = (&composer{}).attach(nil, onResolved)
	} else {
		fire = c.comp.attach(metadata, onResolved)
	}
	c.mu.Unlock()
	run(fire)
}

func (c *Coordinator) CancelContext() {
	c.mu.Lock()
	fire := c.comp.release(false)
	c.mu.Unlock()
	run(fire)
}

// HasContext reports whether metadata is waiting for the next comment.
func (c *Coordinator) HasContext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comp.pending != nil
}

// Close tears the coordinator down. Pending context resolves as not sent and
// results of in-flight calls are no longer applied.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.sel = selection{}
	fire := c.comp.release(false)
	c.mu.Unlock()
	run(fire)
}

func (c *Coordinator) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel.view()
}

// Snapshot returns a copy of the current records in snapshot order.
func (c *Coordinator) Snapshot() []comment.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]comment.Comment, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}

func (c *Coordinator) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}

func (c *Coordinator) Threads() []comment.Thread {
	threads, _ := c.derived()
	return threads
}

func (c *Coordinator) Reactions() comment.Tally {
	_, tally := c.derived()
	return tally
}

// Find returns the record with id from the current snapshot.
func (c *Coordinator) Find(id string) (comment.Comment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.snapshot {
		if existing.ID == id {
			return existing, true
		}
	}
	return comment.Comment{}, false
}

func (c *Coordinator) derived() ([]comment.Thread, comment.Tally) {
	c.mu.Lock()
	revision, snapshot := c.revision, c.snapshot
	c.mu.Unlock()
	return c.views.Get(revision, snapshot)
}

func (c *Coordinator) mentionsOf(target comment.Comment) []string {
	if !target.HasRichContent() {
		return []string{}
	}
	return c.deps.Rich.ExtractMentions(target.RichContent)
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// applyLocked installs fn(current) as the new snapshot. The old slice is
// never written to, so readers holding it stay consistent.
func (c *Coordinator) applyLocked(op string, fn func([]comment.Comment) []comment.Comment) {
	c.replaceLocked(op, fn(c.snapshot))
}

func (c *Coordinator) appendLocked(op string, record comment.Comment) {
	c.applyLocked(op, func(current []comment.Comment) []comment.Comment {
		next := make([]comment.Comment, len(current), len(current)+1)
		copy(next, current)
		return append(next, record)
	})
}

func (c *Coordinator) replaceLocked(op string, next []comment.Comment) {
	c.snapshot = next
	c.revision++
	c.deps.Log.Debug("snapshot updated", "key", c.key.String(), "op", op, "revision", c.revision, "size", len(next))
}

func run(callbacks []func()) {
	for _, cb := range callbacks {
		cb()
	}
}
