// Package undo delays destructive comment deletes so the user can take them
// back within a short window.
package undo

import (
	"context"
	"sync"
	"time"

	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/logger"
)

// Deleter removes a comment from the remote store.
type Deleter interface {
	Delete(ctx context.Context, key comment.Key, id string) error
}

type pending struct {
	key       comment.Key
	target    comment.Comment
	timer     *time.Timer
	onResolve func(bool)
}

// Deferred runs deletes after Window unless Undo is called first.
type Deferred struct {
	deleter Deleter
	window  time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	pending map[string]*pending
	wg      sync.WaitGroup
}

func NewDeferred(deleter Deleter, window time.Duration, log *logger.Logger) *Deferred {
	if log == nil {
		log = logger.Nop()
	}
	return &Deferred{deleter: deleter, window: window, log: log, pending: map[string]*pending{}}
}

// Perform schedules the delete of target. A second Perform for the same id
// while one is pending is resolved as not undone and otherwise ignored.
func (d *Deferred) Perform(ctx context.Context, key comment.Key, target comment.Comment, onResolve func(undone bool)) {
	if onResolve == nil {
		onResolve = func(bool) {}
	}
	d.mu.Lock()
	if _, exists := d.pending[target.ID]; exists {
		d.mu.Unlock()
		onResolve(false)
		return
	}
	entry := &pending{key: key, target: target, onResolve: onResolve}
	d.pending[target.ID] = entry
	d.wg.Add(1)
	entry.timer = time.AfterFunc(d.window, func() {
		d.commit(context.WithoutCancel(ctx), target.ID)
	})
	d.mu.Unlock()
}

// Undo cancels a pending delete. It reports false when the window already
// elapsed or id is unknown.
func (d *Deferred) Undo(id string) bool {
	entry := d.take(id)
	if entry == nil {
		return false
	}
	// A timer that already fired finds the entry gone and does nothing.
	entry.timer.Stop()
	d.wg.Done()
	entry.onResolve(true)
	return true
}

// Flush runs every pending delete now and waits for them to finish.
func (d *Deferred) Flush(ctx context.Context) {
	d.mu.Lock()
	ids := make([]string, 0, len(d.pending))
	for id, entry := range d.pending {
		if entry.timer.Stop() {
			ids = append(ids, id)
		}
	}
	d.mu.Unlock()
	for _, id := range ids {
		d.commit(ctx, id)
	}
	d.wg.Wait()
}

// Pending returns the number of deletes still inside their window.
func (d *Deferred) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Deferred) take(id string) *pending {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.pending[id]
	if !ok {
		return nil
	}
	delete(d.pending, id)
	return entry
}

func (d *Deferred) commit(ctx context.Context, id string) {
	entry := d.take(id)
	if entry == nil {
		return
	}
	defer d.wg.Done()
	if err := d.deleter.Delete(ctx, entry.key, id); err != nil {
		d.log.Error("delete comment failed", "key", entry.key.String(), "comment_id", id, "error", err)
	} else {
		d.log.Debug("comment deleted", "key", entry.key.String(), "comment_id", id)
	}
	entry.onResolve(false)
}
