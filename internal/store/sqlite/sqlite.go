package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/newswire-app/newswire/internal/model"
	"github.com/newswire-app/newswire/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: Initial schema
	`
CREATE TABLE IF NOT EXISTS news_items (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	"by" TEXT,
	url TEXT,
	descendants INTEGER NOT NULL DEFAULT 0,
	score INTEGER NOT NULL DEFAULT 0,
	time INTEGER NOT NULL DEFAULT 0,
	text TEXT
);
CREATE INDEX IF NOT EXISTS idx_news_items_time ON news_items(time DESC);

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	email TEXT NOT NULL,
	admin INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS reactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	news_item_id INTEGER NOT NULL,
	is_like INTEGER NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id),
	FOREIGN KEY(news_item_id) REFERENCES news_items(id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reactions_user_item ON reactions(user_id, news_item_id);
CREATE INDEX IF NOT EXISTS idx_reactions_item ON reactions(news_item_id);
`,
	// Future migrations go here:
	// Migration 2: `ALTER TABLE ...`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *Store) InsertNewsItem(ctx context.Context, item *model.NewsItem) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO news_items (id, title, "by", url, descendants, score, time, text)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, item.ID, item.Title, nullIfEmpty(item.By), nullIfEmpty(item.URL), item.Descendants, item.Score, item.Time, nullIfEmpty(item.Text))
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) ListRankedItems(ctx context.Context, limit, offset int) ([]model.RankedItem, int64, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT n.id, n.title, n."by", n.url, n.descendants, n.score, n.time, n.text,
	COALESCE(r.likes, 0) AS likes, COALESCE(r.dislikes, 0) AS dislikes
FROM news_items n
LEFT JOIN (
	SELECT news_item_id,
		SUM(CASE WHEN is_like = 1 THEN 1 ELSE 0 END) AS likes,
		SUM(CASE WHEN is_like = 0 THEN 1 ELSE 0 END) AS dislikes
	FROM reactions
	GROUP BY news_item_id
) r ON r.news_item_id = n.id
ORDER BY likes DESC, dislikes DESC, n.time DESC, n.id ASC
LIMIT ? OFFSET ?
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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_items`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) ListRecentItems(ctx context.Context, limit int) ([]model.NewsItem, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, "by", url, descendants, score, time, text
FROM news_items
ORDER BY id DESC
LIMIT ?
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
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (username, email, admin)
VALUES (?, ?, ?)
`, user.Username, user.Email, boolToInt(user.Admin))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateUser
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, username, email, admin
FROM users
WHERE email = ?
`, email)
	return scanUser(row)
}

func (s *Store) SetAdmin(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET admin = 1 WHERE email = ?`, email)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Reactions first: the user row must never outlive its reactions' FK target.
	if _, err = tx.ExecContext(ctx, `DELETE FROM reactions WHERE user_id = ?`, userID); err != nil {
		return err
	}
	res, execErr := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if execErr != nil {
		err = execErr
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		err = store.ErrNotFound
		return err
	}
	err = tx.Commit()
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ReactionNone, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var state model.ReactionState
	var reactionID int64
	var current int
	err = tx.QueryRowContext(ctx, `
SELECT id, is_like FROM reactions WHERE user_id = ? AND news_item_id = ?
`, userID, newsItemID).Scan(&reactionID, &current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
INSERT INTO reactions (user_id, news_item_id, is_like)
VALUES (?, ?, ?)
`, userID, newsItemID, boolToInt(isLike))
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
	case (current == 1) == isLike:
		// Same stance again withdraws it.
		if _, err = tx.ExecContext(ctx, `DELETE FROM reactions WHERE id = ?`, reactionID); err != nil {
			return model.ReactionNone, err
		}
		state = model.ReactionNone
	default:
		// Opposite stance flips the row in place.
		if _, err = tx.ExecContext(ctx, `UPDATE reactions SET is_like = ? WHERE id = ?`, boolToInt(isLike), reactionID); err != nil {
			return model.ReactionNone, err
		}
		state = stateFor(isLike)
	}
	if err = tx.Commit(); err != nil {
		return model.ReactionNone, err
	}
	return state, nil
}

func (s *Store) GetUserReactions(ctx context.Context, userID int64, newsItemIDs []int64) (map[int64]model.Reaction, error) {
	reactions := make(map[int64]model.Reaction, len(newsItemIDs))
	if len(newsItemIDs) == 0 {
		return reactions, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(newsItemIDs)), ",")
	args := make([]any, 0, len(newsItemIDs)+1)
	args = append(args, userID)
	for _, id := range newsItemIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id, user_id, news_item_id, is_like
FROM reactions
WHERE user_id = ? AND news_item_id IN (%s)
`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r model.Reaction
		var isLike int
		if err := rows.Scan(&r.ID, &r.UserID, &r.NewsItemID, &isLike); err != nil {
			return nil, err
		}
		r.IsLike = isLike == 1
		reactions[r.NewsItemID] = r
	}
	return reactions, rows.Err()
}

func scanNewsItem(scanner interface{ Scan(dest ...any) error }) (model.NewsItem, error) {
	var n model.NewsItem
	var by sql.NullString
	var url sql.NullString
	var text sql.NullString
	if err := scanner.Scan(&n.ID, &n.Title, &by, &url, &n.Descendants, &n.Score, &n.Time, &text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.NewsItem{}, store.ErrNotFound
		}
		return model.NewsItem{}, err
	}
	if by.Valid {
		n.By = by.String
	}
	if url.Valid {
		n.URL = url.String
	}
	if text.Valid {
		n.Text = text.String
	}
	return n, nil
}

func scanRankedItem(scanner interface{ Scan(dest ...any) error }) (model.RankedItem, error) {
	var item model.RankedItem
	var by sql.NullString
	var url sql.NullString
	var text sql.NullString
	if err := scanner.Scan(&item.ID, &item.Title, &by, &url, &item.Descendants, &item.Score, &item.Time, &text, &item.Likes, &item.Dislikes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RankedItem{}, store.ErrNotFound
		}
		return model.RankedItem{}, err
	}
	if by.Valid {
		item.By = by.String
	}
	if url.Valid {
		item.URL = url.String
	}
	if text.Valid {
		item.Text = text.String
	}
	return item, nil
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (model.User, error) {
	var u model.User
	var admin int
	if err := scanner.Scan(&u.ID, &u.Username, &u.Email, &admin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	u.Admin = admin == 1
	return u, nil
}

func stateFor(isLike bool) model.ReactionState {
	if isLike {
		return model.ReactionLiked
	}
	return model.ReactionDisliked
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
