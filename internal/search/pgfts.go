package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"chronicle/discuss/internal/store"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres the API is down anyway.
func (p *PgFTS) Healthy() bool {
	return true
}

const notReaction = `NOT coalesce(c.item_context -> 'is_emoji' = 'true'::jsonb, false)`

// Search ranks live, non-reaction comments with plainto_tsquery and builds
// snippets with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	where := []string{"c.fts @@ " + tsQuery, "c.deleted_at IS NULL", notReaction}
	if q.Scope != "" {
		args = append(args, q.Scope)
		where = append(where, fmt.Sprintf("c.scope = $%d", len(args)))
	}
	if q.ItemID != "" {
		args = append(args, q.ItemID)
		where = append(where, fmt.Sprintf("c.item_id = $%d", len(args)))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	countSQL := "SELECT count(*) FROM comments c WHERE " + whereSQL
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT c.id, c.scope, c.item_id,
			ts_headline('english', c.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			coalesce(u.display_name, '')
		FROM comments c
		LEFT JOIN users u ON u.id = c.created_by_id
		WHERE %s
		ORDER BY ts_rank(c.fts, %s) DESC, c.created_at DESC
		LIMIT %d OFFSET %d`, tsQuery, whereSQL, tsQuery, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Scope, &r.ItemID, &r.Snippet, &r.Author); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		if r.Author == "" {
			r.Author = "Unknown user"
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every indexable comment for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CommentRecord, error) {
	rows, err := store.NewPostgresStore(p.db).ListAllComments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	records := make([]CommentRecord, 0, len(rows))
	for _, row := range rows {
		if record, ok := RecordFor(row.Comment()); ok {
			records = append(records, record)
		}
	}
	return records, nil
}
