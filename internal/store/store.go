package store

import (
	"context"
	"errors"

	"github.com/newswire-app/newswire/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUser     = errors.New("duplicate user")
	ErrDuplicateReaction = errors.New("duplicate reaction")
)

type Store interface {
	NewsStore
	UserStore
	ReactionStore
	Ping(ctx context.Context) error
	Close() error
}

type NewsStore interface {
	// InsertNewsItem inserts the item unless a row with the same id already
	// exists. Reports whether a row was written; existing rows are left
	// untouched.
	InsertNewsItem(ctx context.Context, item *model.NewsItem) (bool, error)
	// ListRankedItems returns one page of items ordered by likes desc,
	// dislikes desc, time desc, id asc, plus the unfiltered item total.
	ListRankedItems(ctx context.Context, limit, offset int) ([]model.RankedItem, int64, error)
	// ListRecentItems returns the latest items by id descending, without
	// reaction counts.
	ListRecentItems(ctx context.Context, limit int) ([]model.NewsItem, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	// SetAdmin marks the user with the given email as admin. Promoting an
	// admin again is a no-op success; a missing user is ErrNotFound.
	SetAdmin(ctx context.Context, email string) error
	ListUsers(ctx context.Context) ([]model.User, error)
	// DeleteUserCascade removes the user's reactions and then the user row
	// in one transaction. ErrNotFound when no such user exists.
	DeleteUserCascade(ctx context.Context, userID int64) error
}

type ReactionStore interface {
	// ToggleReaction applies the three-way transition for (userID, itemID):
	// no row inserts, an equal row deletes, an opposite row flips in place.
	// Runs as a single transaction and returns the resulting state.
	ToggleReaction(ctx context.Context, userID, newsItemID int64, isLike bool) (model.ReactionState, error)
	// GetUserReactions returns the user's reactions for the given item ids,
	// keyed by news item id.
	GetUserReactions(ctx context.Context, userID int64, newsItemIDs []int64) (map[int64]model.Reaction, error)
}
