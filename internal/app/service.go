package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"chronicle/discuss/internal/auth"
	"chronicle/discuss/internal/comment"
	"chronicle/discuss/internal/config"
	"chronicle/discuss/internal/logger"
	"chronicle/discuss/internal/rbac"
	"chronicle/discuss/internal/richtext"
	"chronicle/discuss/internal/search"
	"chronicle/discuss/internal/store"
	"chronicle/discuss/internal/util"
)

const (
	maxEmojiRunes  = 8
	maxSearchLimit = 100
	notifyTimeout  = 30 * time.Second
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Email     string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error
	EnsureUser(ctx context.Context, user store.User) error
	ListComments(ctx context.Context, key comment.Key) ([]store.CommentRow, error)
	GetComment(ctx context.Context, key comment.Key, id string) (store.CommentRow, error)
	InsertComment(ctx context.Context, item store.CommentRow) (store.CommentRow, error)
	UpdateComment(ctx context.Context, key comment.Key, id string, update store.CommentUpdate) (store.CommentRow, error)
	DeleteComment(ctx context.Context, key comment.Key, id string) (bool, error)
	RecordMentions(ctx context.Context, commentID string, userIDs []string) ([]string, error)
}

// listCache keeps serialized comment lists per discussion.
type listCache interface {
	Lookup(ctx context.Context, key comment.Key) ([]comment.Comment, int64, bool)
	Store(ctx context.Context, key comment.Key, gen int64, items []comment.Comment) bool
	Invalidate(ctx context.Context, key comment.Key)
	Ping(ctx context.Context) error
}

type commentIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexComment(c comment.Comment)
	DeleteComment(id string)
}

type mentionNotifier interface {
	NotifyMentions(ctx context.Context, c comment.Comment, userIDs []string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	cache    listCache
	search   commentIndex
	notifier mentionNotifier
	rich     richtext.ProseMirror
	log      *logger.Logger
	pending  sync.WaitGroup
}

func New(cfg config.Config, dataStore *store.PostgresStore, log *logger.Logger) *Service {
	return newService(cfg, dataStore, log)
}

func newService(cfg config.Config, dataStore dataStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{cfg: cfg, store: dataStore, log: log}
}

// UseCache enables the read-through list cache.
func (s *Service) UseCache(c listCache) {
	s.cache = c
}

// UseSearch enables indexing of written comments and the search endpoint.
func (s *Service) UseSearch(index commentIndex) {
	s.search = index
}

// UseNotifier enables mention e-mails.
func (s *Service) UseNotifier(n mentionNotifier) {
	s.notifier = n
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingCache reports the cache state. It returns false when no cache is used.
func (s *Service) PingCache(ctx context.Context) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return true, s.cache.Ping(ctx)
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(claims.Sub) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Email:     claims.Email,
		Role:      string(rbac.Normalize(claims.Role)),
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// ListComments returns every live record of the discussion, oldest first.
func (s *Service) ListComments(ctx context.Context, key comment.Key) ([]comment.Comment, error) {
	if !key.Valid() {
		return nil, invalid("scope and item are required", nil)
	}
	var gen int64
	if s.cache != nil {
		items, g, ok := s.cache.Lookup(ctx, key)
		if ok {
			return items, nil
		}
		gen = g
	}
	rows, err := s.store.ListComments(ctx, key)
	if err != nil {
		return nil, err
	}
	items := store.Comments(rows)
	if s.cache != nil {
		s.cache.Store(ctx, key, gen, items)
	}
	return items, nil
}

func (s *Service) CreateComment(ctx context.Context, session Session, key comment.Key, input comment.CreateInput) (comment.Comment, error) {
	if !s.Can(session.Role, rbac.ActionComment) {
		return comment.Comment{}, forbidden()
	}
	if !key.Valid() {
		return comment.Comment{}, invalid("scope and item are required", nil)
	}
	input.Scope = key.Scope
	input.ItemID = key.ItemID
	input.SourceComment = strings.TrimSpace(input.SourceComment)

	if input.ItemContext.IsEmoji() {
		emoji := strings.TrimSpace(input.Content)
		if emoji == "" {
			return comment.Comment{}, invalid("emoji is required", nil)
		}
		if len([]rune(emoji)) > maxEmojiRunes {
			return comment.Comment{}, invalid("emoji is too long", nil)
		}
		if input.SourceComment == "" {
			return comment.Comment{}, invalid("reactions need a target comment", nil)
		}
		input.Content = emoji
		input.RichContent = nil
		input.Mentions = nil
	} else if err := s.validateBody(input.Content, input.RichContent); err != nil {
		return comment.Comment{}, err
	}

	if input.SourceComment != "" {
		parent, err := s.store.GetComment(ctx, key, input.SourceComment)
		if errors.Is(err, sql.ErrNoRows) {
			return comment.Comment{}, invalid("target comment not found", map[string]any{"sourceComment": input.SourceComment})
		}
		if err != nil {
			return comment.Comment{}, err
		}
		// replies to replies join the root thread
		if parent.SourceComment != nil && *parent.SourceComment != "" {
			input.SourceComment = *parent.SourceComment
		}
	}

	if err := s.store.EnsureUser(ctx, store.User{ID: session.UserID, DisplayName: session.UserName, Email: session.Email}); err != nil {
		return comment.Comment{}, err
	}
	row, err := store.NewCommentRow(util.NewID("cmt"), session.UserID, input)
	if err != nil {
		return comment.Comment{}, invalid("invalid item context", nil)
	}
	created, err := s.store.InsertComment(ctx, row)
	if err != nil {
		return comment.Comment{}, err
	}
	out := created.Comment()
	s.written(ctx, out)

	if !out.IsReaction() {
		s.mention(ctx, out, mergeMentions(input.Mentions, s.rich.ExtractMentions(input.RichContent)))
	}
	s.log.Info("comment created", "comment_id", out.ID, "key", key.String(), "user_id", session.UserID, "reaction", out.IsReaction())
	return out, nil
}

// UpdateComment replaces the body of a comment. Only users who were not
// mentioned before are notified.
func (s *Service) UpdateComment(ctx context.Context, session Session, key comment.Key, id string, input comment.UpdateInput) (comment.Comment, error) {
	existing, err := s.store.GetComment(ctx, key, id)
	if err != nil {
		return comment.Comment{}, err
	}
	current := existing.Comment()
	if !rbac.CanChange(rbac.Normalize(session.Role), current.IsMine(session.UserID)) {
		return comment.Comment{}, forbidden()
	}
	if current.IsReaction() {
		return comment.Comment{}, invalid("reactions cannot be edited", nil)
	}
	if err := s.validateBody(input.Content, input.RichContent); err != nil {
		return comment.Comment{}, err
	}

	updated, err := s.store.UpdateComment(ctx, key, id, store.CommentUpdate{Content: input.Content, RichContent: input.RichContent})
	if err != nil {
		return comment.Comment{}, err
	}
	out := updated.Comment()
	s.written(ctx, out)
	s.mention(ctx, out, mergeMentions(input.NewMentions, s.rich.ExtractMentions(input.RichContent)))
	s.log.Info("comment updated", "comment_id", out.ID, "key", key.String(), "user_id", session.UserID, "version", out.Version)
	return out, nil
}

func (s *Service) DeleteComment(ctx context.Context, session Session, key comment.Key, id string) error {
	existing, err := s.store.GetComment(ctx, key, id)
	if err != nil {
		return err
	}
	current := existing.Comment()
	if !rbac.CanChange(rbac.Normalize(session.Role), current.IsMine(session.UserID)) {
		return forbidden()
	}
	deleted, err := s.store.DeleteComment(ctx, key, id)
	if err != nil {
		return err
	}
	if !deleted {
		return sql.ErrNoRows
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, key)
	}
	if s.search != nil {
		s.search.DeleteComment(id)
	}
	s.log.Info("comment deleted", "comment_id", id, "key", key.String(), "user_id", session.UserID)
	return nil
}

func (s *Service) Search(ctx context.Context, q search.Query) (search.Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return search.Response{}, invalid("query is required", nil)
	}
	if q.Limit <= 0 || q.Limit > maxSearchLimit {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	return s.search.Search(ctx, q), nil
}

func (s *Service) validateBody(content string, rich []byte) error {
	if len(rich) > 0 {
		if _, err := richtext.Parse(rich); err != nil {
			return invalid("invalid rich content", nil)
		}
		if !s.rich.IsEmpty(rich) {
			return nil
		}
	}
	if strings.TrimSpace(content) == "" {
		return invalid("comment body is empty", nil)
	}
	return nil
}

func (s *Service) written(ctx context.Context, c comment.Comment) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, c.Key())
	}
	if s.search != nil {
		s.search.IndexComment(c)
	}
}

// mention records userIDs against c and mails the ones recorded for the
// first time. Mail goes out in the background.
func (s *Service) mention(ctx context.Context, c comment.Comment, userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	fresh, err := s.store.RecordMentions(ctx, c.ID, userIDs)
	if err != nil {
		s.log.Warn("record mentions failed", "comment_id", c.ID, "error", err)
		return
	}
	if len(fresh) == 0 || s.notifier == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyMentions(notifyCtx, c, fresh); err != nil {
			s.log.Warn("mention notification failed", "comment_id", c.ID, "error", err)
		}
	}()
}

func mergeMentions(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, list := range lists {
		for _, id := range list {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
