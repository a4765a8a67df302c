// Package store persists processed discussions in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/summarize"
	"github.com/threadrank/pkg/models"
)

// ErrNotFound is returned when a post has never been saved.
var ErrNotFound = errors.New("discussion not found")

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id            BIGINT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL DEFAULT '',
	author        TEXT NOT NULL DEFAULT '',
	points        INTEGER NOT NULL DEFAULT 0,
	comment_count INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ,
	fetched_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	stats         JSONB NOT NULL DEFAULT '{}',
	dangling      JSONB NOT NULL DEFAULT '[]'
);

ALTER TABLE posts ADD COLUMN IF NOT EXISTS stats JSONB NOT NULL DEFAULT '{}';
ALTER TABLE posts ADD COLUMN IF NOT EXISTS dangling JSONB NOT NULL DEFAULT '[]';

CREATE TABLE IF NOT EXISTS comments (
	post_id     BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	id          BIGINT NOT NULL,
	parent_id   BIGINT NOT NULL,
	author      TEXT NOT NULL DEFAULT '',
	path        TEXT NOT NULL,
	position    INTEGER NOT NULL,
	penalty     INTEGER NOT NULL,
	reply_count INTEGER NOT NULL,
	score       INTEGER NOT NULL,
	text        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (post_id, id)
);

CREATE INDEX IF NOT EXISTS comments_post_position_idx ON comments (post_id, position);

CREATE TABLE IF NOT EXISTS summaries (
	post_id    BIGINT PRIMARY KEY REFERENCES posts(id) ON DELETE CASCADE,
	model      TEXT NOT NULL DEFAULT '',
	summary    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and checks the connection.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewWithPool(pool), nil
}

// NewWithPool wraps an existing pool. Close closes it.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the pool for the job queue, which shares it.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SaveDiscussion upserts the post and replaces its ranked comments in one
// transaction. Dangling comments are kept only as diagnostics on the post row,
// next to the run counters.
func (s *Store) SaveDiscussion(ctx context.Context, post *models.Post, res *discussion.Result) error {
	if post == nil || res == nil {
		return fmt.Errorf("save discussion: post and result are required")
	}

	stats, err := json.Marshal(res.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	dangling := res.Dangling
	if dangling == nil {
		dangling = []*discussion.DanglingParentError{}
	}
	danglingJSON, err := json.Marshal(dangling)
	if err != nil {
		return fmt.Errorf("failed to encode dangling comments: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	fetchedAt := post.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	var createdAt *time.Time
	if !post.CreatedAt.IsZero() {
		createdAt = &post.CreatedAt
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO posts (id, title, url, author, points, comment_count, created_at, fetched_at, stats, dangling)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			author = EXCLUDED.author,
			points = EXCLUDED.points,
			comment_count = EXCLUDED.comment_count,
			created_at = EXCLUDED.created_at,
			fetched_at = EXCLUDED.fetched_at,
			stats = EXCLUDED.stats,
			dangling = EXCLUDED.dangling
	`, post.ID, post.Title, post.URL, post.Author, post.Points, post.CommentCount, createdAt, fetchedAt, stats, danglingJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert post %d: %w", post.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, post.ID); err != nil {
		return fmt.Errorf("failed to clear comments of post %d: %w", post.ID, err)
	}

	if len(res.Comments) > 0 {
		batch := &pgx.Batch{}
		for _, c := range res.Comments {
			batch.Queue(`
				INSERT INTO comments (post_id, id, parent_id, author, path, position, penalty, reply_count, score, text)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, post.ID, c.ID, c.ParentID, c.Author, c.Path, c.Position, c.Penalty, c.ReplyCount, c.Score, c.Text)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert comments of post %d: %w", post.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit discussion %d: %w", post.ID, err)
	}

	zerolog.Ctx(ctx).Debug().
		Int64("post_id", post.ID).
		Int("comments", len(res.Comments)).
		Msg("Saved discussion")
	return nil
}

// LoadDiscussion returns a saved post and the result it was saved with,
// comments in position order.
func (s *Store) LoadDiscussion(ctx context.Context, postID int64) (*models.Post, *discussion.Result, error) {
	post := &models.Post{}
	var createdAt *time.Time
	var stats, dangling []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, url, author, points, comment_count, created_at, fetched_at, stats, dangling
		FROM posts WHERE id = $1
	`, postID).Scan(&post.ID, &post.Title, &post.URL, &post.Author, &post.Points, &post.CommentCount, &createdAt, &post.FetchedAt, &stats, &dangling)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("post %d: %w", postID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load post %d: %w", postID, err)
	}
	if createdAt != nil {
		post.CreatedAt = createdAt.UTC()
	}
	post.FetchedAt = post.FetchedAt.UTC()

	res := &discussion.Result{RootID: post.ID}
	if err := json.Unmarshal(stats, &res.Stats); err != nil {
		return nil, nil, fmt.Errorf("failed to decode stats of post %d: %w", postID, err)
	}
	if err := json.Unmarshal(dangling, &res.Dangling); err != nil {
		return nil, nil, fmt.Errorf("failed to decode dangling comments of post %d: %w", postID, err)
	}
	if len(res.Dangling) == 0 {
		res.Dangling = nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, parent_id, author, path, position, penalty, reply_count, score, text
		FROM comments WHERE post_id = $1
		ORDER BY position, id
	`, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load comments of post %d: %w", postID, err)
	}
	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*discussion.Comment, error) {
		c := &discussion.Comment{}
		err := row.Scan(&c.ID, &c.ParentID, &c.Author, &c.Path, &c.Position, &c.Penalty, &c.ReplyCount, &c.Score, &c.Text)
		return c, err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan comments of post %d: %w", postID, err)
	}
	res.Comments = comments
	return post, res, nil
}

// SaveSummary stores the latest summary of a saved post.
func (s *Store) SaveSummary(ctx context.Context, postID int64, model string, summary *summarize.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO summaries (post_id, model, summary, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (post_id) DO UPDATE SET
			model = EXCLUDED.model,
			summary = EXCLUDED.summary,
			created_at = EXCLUDED.created_at
	`, postID, model, data)
	if err != nil {
		return fmt.Errorf("failed to save summary of post %d: %w", postID, err)
	}
	return nil
}

// LoadSummary returns the latest summary of a post.
func (s *Store) LoadSummary(ctx context.Context, postID int64) (*summarize.Summary, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT summary FROM summaries WHERE post_id = $1`, postID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("summary of post %d: %w", postID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load summary of post %d: %w", postID, err)
	}

	var summary summarize.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary of post %d: %w", postID, err)
	}
	return &summary, nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}
