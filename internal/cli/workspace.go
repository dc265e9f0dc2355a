package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chronicle/discuss/internal/cache"
	"chronicle/discuss/internal/client"
	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/config"
	"chronicle/discuss/internal/engine"
	"chronicle/discuss/internal/logger"
	"chronicle/discuss/internal/undo"
)

// workspace is the client side of one discussion: the API client, the
// optional list cache, the undo window and the coordinator.
type workspace struct {
	api      *client.Client
	who      client.Identity
	undo     *undo.Deferred
	registry *engine.Registry
	coord    *engine.Coordinator
	closers  []func() error
	log      *logger.Logger
}

func openWorkspace(ctx context.Context, cfg config.Config, g *GlobalOptions, key comment.Key, log *logger.Logger) (*workspace, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("--scope and --item are required")
	}
	api := client.New(g.API, g.Token)
	ws := &workspace{api: api, log: log}

	who, err := api.Whoami(ctx)
	if err != nil {
		return nil, err
	}
	ws.who = who

	var transport engine.Transport = api
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheTTL, log)
		if err != nil {
			log.Warn("comment cache unavailable", "error", err)
		} else {
			ws.closers = append(ws.closers, redisCache.Close)
			transport = cache.NewTransport(api, redisCache)
		}
	}

	ws.undo = undo.NewDeferred(transport, cfg.UndoWindow, log)
	ws.registry = engine.NewRegistry(engine.Deps{Transport: transport, Undo: ws.undo, Log: log})
	ws.coord = ws.registry.Open(key)
	if err := ws.coord.Load(ctx); err != nil {
		ws.Close(ctx)
		return nil, err
	}
	return ws, nil
}

// find resolves a comment id, accepting a unique prefix.
func (ws *workspace) find(id string) (comment.Comment, error) {
	if c, ok := ws.coord.Find(id); ok {
		return c, nil
	}
	var match *comment.Comment
	for _, c := range ws.coord.Snapshot() {
		if !strings.HasPrefix(c.ID, id) {
			continue
		}
		if match != nil {
			return comment.Comment{}, fmt.Errorf("comment id %q is ambiguous", id)
		}
		found := c
		match = &found
	}
	if match == nil {
		return comment.Comment{}, fmt.Errorf("comment %q not found", id)
	}
	return *match, nil
}

// Close sends pending deletes and releases the discussion.
func (ws *workspace) Close(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	ws.undo.Flush(flushCtx)
	ws.registry.CloseAll()
	for _, closer := range ws.closers {
		_ = closer()
	}
}
