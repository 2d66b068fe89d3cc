// Package postgres implements the store interfaces on PostgreSQL via pgx.
// It mirrors the sqlite backend semantics so the two are interchangeable
// behind the store.Store interface.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newswire-app/newswire/internal/model"
	"github.com/newswire-app/newswire/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func Open(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	st := &Store{pool: pool}
	if err := st.applySchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var migrations = []string{
	// Migration 1: Initial schema
	`
CREATE TABLE IF NOT EXISTS news_items (
	id BIGINT PRIMARY KEY,
	title TEXT NOT NULL,
	"by" TEXT,
	url TEXT,
	descendants INTEGER NOT NULL DEFAULT 0,
	score INTEGER NOT NULL DEFAULT 0,
	time BIGINT NOT NULL DEFAULT 0,
	text TEXT
);
CREATE INDEX IF NOT EXISTS idx_news_items_time ON news_items(time DESC);

CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL,
	admin BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS reactions (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id),
	news_item_id BIGINT NOT NULL REFERENCES news_items(id),
	is_like BOOLEAN NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reactions_user_item ON reactions(user_id, news_item_id);
CREATE INDEX IF NOT EXISTS idx_reactions_item ON reactions(news_item_id);
`,
}

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := s.pool.Exec(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := s.pool.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *Store) InsertNewsItem(ctx context.Context, item *model.NewsItem) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO news_items (id, title, "by", url, descendants, score, time, text)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING
`, item.ID, item.Title, nullIfEmpty(item.By), nullIfEmpty(item.URL), item.Descendants, item.Score, item.Time, nullIfEmpty(item.Text))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListRankedItems(ctx context.Context, limit, offset int) ([]model.RankedItem, int64, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
SELECT n.id, n.title, n."by", n.url, n.descendants, n.score, n.time, n.text,
	COALESCE(r.likes, 0) AS likes, COALESCE(r.dislikes, 0) AS dislikes
FROM news_items n
LEFT JOIN (
	SELECT news_item_id,
		COUNT(*) FILTER (WHERE is_like) AS likes,
		COUNT(*) FILTER (WHERE NOT is_like) AS dislikes
	FROM reactions
	GROUP BY news_item_id
) r ON r.news_item_id = n.id
ORDER BY likes DESC, dislikes DESC, n.time DESC, n.id ASC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []model.RankedItem
	for rows.Next() {
		item, err := scanRankedItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM news_items`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) ListRecentItems(ctx context.Context, limit int) ([]model.NewsItem, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, title, "by", url, descendants, score, time, text
FROM news_items
ORDER BY id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.NewsItem
	for rows.Next() {
		item, err := scanNewsItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO users (username, email, admin)
VALUES ($1, $2, $3)
RETURNING id
`, user.Username, user.Email, user.Admin).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateUser
		}
		return 0, err
	}
	return id, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, username, email, admin
FROM users
WHERE email = $1
`, email)
	return scanUser(row)
}

func (s *Store) SetAdmin(ctx context.Context, email string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET admin = TRUE WHERE email = $1`, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, username, email, admin
FROM users
ORDER BY id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) DeleteUserCascade(ctx context.Context, userID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM reactions WHERE user_id = $1`, userID); err != nil {
		return err
	}
	tag, execErr := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if execErr != nil {
		err = execErr
		return err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrNotFound
		return err
	}
	err = tx.Commit(ctx)
	return err
}

func (s *Store) ToggleReaction(ctx context.Context, userID, newsItemID int64, isLike bool) (model.ReactionState, error) {
	state, err := s.toggleOnce(ctx, userID, newsItemID, isLike)
	if errors.Is(err, store.ErrDuplicateReaction) {
		// A concurrent first reaction for the same pair won the insert race;
		// the second attempt sees its row and applies the next transition.
		state, err = s.toggleOnce(ctx, userID, newsItemID, isLike)
	}
	return state, err
}

func (s *Store) toggleOnce(ctx context.Context, userID, newsItemID int64, isLike bool) (model.ReactionState, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.ReactionNone, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var state model.ReactionState
	var reactionID int64
	var current bool
	// The row lock queues concurrent toggles for the same pair; each
	// transaction reads the state the previous one committed (a deleted
	// row scans as absent, a flipped row carries the new stance).
	err = tx.QueryRow(ctx, `
SELECT id, is_like FROM reactions WHERE user_id = $1 AND news_item_id = $2 FOR UPDATE
`, userID, newsItemID).Scan(&reactionID, &current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
INSERT INTO reactions (user_id, news_item_id, is_like)
VALUES ($1, $2, $3)
`, userID, newsItemID, isLike)
		if err != nil {
			if isUniqueViolation(err) {
				err = store.ErrDuplicateReaction
			} else if isForeignKeyViolation(err) {
				err = store.ErrNotFound
			}
			return model.ReactionNone, err
		}
		state = stateFor(isLike)
	case err != nil:
		return model.ReactionNone, err
	case current == isLike:
		// Same stance again withdraws it.
		if _, err = tx.Exec(ctx, `DELETE FROM reactions WHERE id = $1`, reactionID); err != nil {
			return model.ReactionNone, err
		}
		state = model.ReactionNone
	default:
		// Opposite stance flips the row in place.
		if _, err = tx.Exec(ctx, `UPDATE reactions SET is_like = $1 WHERE id = $2`, isLike, reactionID); err != nil {
			return model.ReactionNone, err
		}
		state = stateFor(isLike)
	}
	if err = tx.Commit(ctx); err != nil {
		return model.ReactionNone, err
	}
	return state, nil
}

func (s *Store) GetUserReactions(ctx context.Context, userID int64, newsItemIDs []int64) (map[int64]model.Reaction, error) {
	reactions := make(map[int64]model.Reaction, len(newsItemIDs))
	if len(newsItemIDs) == 0 {
		return reactions, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, news_item_id, is_like
FROM reactions
WHERE user_id = $1 AND news_item_id = ANY($2)
`, userID, newsItemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r model.Reaction
		if err := rows.Scan(&r.ID, &r.UserID, &r.NewsItemID, &r.IsLike); err != nil {
			return nil, err
		}
		reactions[r.NewsItemID] = r
	}
	return reactions, rows.Err()
}

func scanNewsItem(scanner interface{ Scan(dest ...any) error }) (model.NewsItem, error) {
	var n model.NewsItem
	var by, url, text *string
	if err := scanner.Scan(&n.ID, &n.Title, &by, &url, &n.Descendants, &n.Score, &n.Time, &text); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NewsItem{}, store.ErrNotFound
		}
		return model.NewsItem{}, err
	}
	if by != nil {
		n.By = *by
	}
	if url != nil {
		n.URL = *url
	}
	if text != nil {
		n.Text = *text
	}
	return n, nil
}

func scanRankedItem(scanner interface{ Scan(dest ...any) error }) (model.RankedItem, error) {
	var item model.RankedItem
	var by, url, text *string
	if err := scanner.Scan(&item.ID, &item.Title, &by, &url, &item.Descendants, &item.Score, &item.Time, &text, &item.Likes, &item.Dislikes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RankedItem{}, store.ErrNotFound
		}
		return model.RankedItem{}, err
	}
	if by != nil {
		item.By = *by
	}
	if url != nil {
		item.URL = *url
	}
	if text != nil {
		item.Text = *text
	}
	return item, nil
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (model.User, error) {
	var u model.User
	if err := scanner.Scan(&u.ID, &u.Username, &u.Email, &u.Admin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

func stateFor(isLike bool) model.ReactionState {
	if isLike {
		return model.ReactionLiked
	}
	return model.ReactionDisliked
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
