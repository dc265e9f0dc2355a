package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chronicle/discuss/internal/comment"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict is returned when a comment id is already taken.
var ErrConflict = errors.New("comment already exists")

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const commentColumns = `
	c.id, c.scope, c.item_id, c.content, c.rich_content, c.created_by_id,
	coalesce(u.display_name, ''), c.created_at, c.updated_at, c.version,
	c.source_comment, c.item_context`

// EnsureUser inserts the user or refreshes its display name and email.
func (s *PostgresStore) EnsureUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			email = COALESCE(EXCLUDED.email, users.email),
			updated_at = NOW()
	`, user.ID, user.DisplayName, user.Email)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UsersByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, coalesce(email, ''), created_at, updated_at
		FROM users
		WHERE id = ANY($1)
		ORDER BY display_name, id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0, len(ids))
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Email, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// ListComments returns the live comments of key in creation order.
func (s *PostgresStore) ListComments(ctx context.Context, key comment.Key) ([]CommentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		LEFT JOIN users u ON u.id = c.created_by_id
		WHERE c.scope = $1 AND c.item_id = $2 AND c.deleted_at IS NULL
		ORDER BY c.created_at ASC, c.id ASC
	`, key.Scope, key.ItemID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	return scanComments(rows)
}

// ListAllComments returns every live comment, used to rebuild the search index.
func (s *PostgresStore) ListAllComments(ctx context.Context) ([]CommentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		LEFT JOIN users u ON u.id = c.created_by_id
		WHERE c.deleted_at IS NULL
		ORDER BY c.created_at ASC, c.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all comments: %w", err)
	}
	defer rows.Close()
	return scanComments(rows)
}

// GetComment returns sql.ErrNoRows for unknown and deleted comments.
func (s *PostgresStore) GetComment(ctx context.Context, key comment.Key, id string) (CommentRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		LEFT JOIN users u ON u.id = c.created_by_id
		WHERE c.id = $1 AND c.scope = $2 AND c.item_id = $3 AND c.deleted_at IS NULL
	`, id, key.Scope, key.ItemID)
	return scanComment(row)
}

func (s *PostgresStore) InsertComment(ctx context.Context, item CommentRow) (CommentRow, error) {
	row := s.db.QueryRowContext(ctx, `
		WITH c AS (
			INSERT INTO comments (id, scope, item_id, content, rich_content, created_by_id, source_comment, item_context)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING *
		)
		SELECT `+commentColumns+`
		FROM c
		LEFT JOIN users u ON u.id = c.created_by_id
	`, item.ID, item.Scope, item.ItemID, item.Content, nullJSON(item.RichContent), item.CreatedByID, item.SourceComment, nullJSON(item.ItemContext))
	created, err := scanComment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return CommentRow{}, ErrConflict
		}
		return CommentRow{}, fmt.Errorf("insert comment: %w", err)
	}
	return created, nil
}

// UpdateComment replaces the body and bumps the version.
func (s *PostgresStore) UpdateComment(ctx context.Context, key comment.Key, id string, update CommentUpdate) (CommentRow, error) {
	row := s.db.QueryRowContext(ctx, `
		WITH c AS (
			UPDATE comments
			SET content = $4, rich_content = $5, version = version + 1, updated_at = clock_timestamp()
			WHERE id = $1 AND scope = $2 AND item_id = $3 AND deleted_at IS NULL
			RETURNING *
		)
		SELECT `+commentColumns+`
		FROM c
		LEFT JOIN users u ON u.id = c.created_by_id
	`, id, key.Scope, key.ItemID, update.Content, nullJSON(update.RichContent))
	updated, err := scanComment(row)
	if err != nil {
		return CommentRow{}, fmt.Errorf("update comment: %w", err)
	}
	return updated, nil
}

// DeleteComment soft-deletes a comment. Replies and reactions are kept.
func (s *PostgresStore) DeleteComment(ctx context.Context, key comment.Key, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET deleted_at = NOW()
		WHERE id = $1 AND scope = $2 AND item_id = $3 AND deleted_at IS NULL
	`, id, key.Scope, key.ItemID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows: %w", err)
	}
	return affected > 0, nil
}

// RecordMentions stores mentions of commentID and returns the user ids that
// were not recorded before.
func (s *PostgresStore) RecordMentions(ctx context.Context, commentID string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return []string{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		INSERT INTO comment_mentions (comment_id, user_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT (comment_id, user_id) DO NOTHING
		RETURNING user_id
	`, commentID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("record mentions: %w", err)
	}
	defer rows.Close()

	recorded := make([]string, 0, len(userIDs))
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		recorded = append(recorded, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentions: %w", err)
	}
	return recorded, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (CommentRow, error) {
	var (
		item          CommentRow
		richContent   []byte
		createdByID   sql.NullString
		sourceComment sql.NullString
		itemContext   []byte
	)
	if err := row.Scan(
		&item.ID, &item.Scope, &item.ItemID, &item.Content, &richContent, &createdByID,
		&item.CreatedByName, &item.CreatedAt, &item.UpdatedAt, &item.Version,
		&sourceComment, &itemContext,
	); err != nil {
		return CommentRow{}, err
	}
	if len(richContent) > 0 {
		item.RichContent = json.RawMessage(richContent)
	}
	if len(itemContext) > 0 {
		item.ItemContext = json.RawMessage(itemContext)
	}
	if createdByID.Valid {
		item.CreatedByID = &createdByID.String
	}
	if sourceComment.Valid && strings.TrimSpace(sourceComment.String) != "" {
		item.SourceComment = &sourceComment.String
	}
	return item, nil
}

func scanComments(rows *sql.Rows) ([]CommentRow, error) {
	items := make([]CommentRow, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// nullJSON stores absent and JSON-null documents as SQL NULL.
func nullJSON(raw json.RawMessage) any {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return trimmed
}
