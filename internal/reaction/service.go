// Package reaction manages user accounts and their like and dislike
// reactions on news items. Accounts are created lazily on first login,
// keyed by the email asserted by the identity provider.
package reaction

import (
	"context"
	"errors"
	"log/slog"

	"github.com/newswire-app/newswire/internal/model"
	"github.com/newswire-app/newswire/internal/store"
)

// ErrUnknownUser is returned when a reaction is attempted under an email
// that has no account.
var ErrUnknownUser = errors.New("unknown user")

type Service struct {
	store store.Store
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

// UpsertUser returns the account registered under email, creating it on
// first login. An existing account is returned unchanged even when the
// identity provider now reports a different display name.
func (s *Service) UpsertUser(ctx context.Context, username, email string) (model.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.User{}, err
	}

	created := model.User{Username: username, Email: email}
	id, err := s.store.CreateUser(ctx, &created)
	if err == nil {
		created.ID = id
		return created, nil
	}
	if !errors.Is(err, store.ErrDuplicateUser) {
		return model.User{}, err
	}

	// Two first logins can race on the insert. The loser re-reads the
	// winner's row. If the email still has no row, the collision was on
	// the username and the duplicate is real.
	user, fetchErr := s.store.GetUserByEmail(ctx, email)
	if fetchErr == nil {
		return user, nil
	}
	if errors.Is(fetchErr, store.ErrNotFound) {
		return model.User{}, err
	}
	return model.User{}, fetchErr
}

func (s *Service) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.store.GetUserByEmail(ctx, email)
}

// Promote grants admin rights to the account registered under email.
// Promoting an existing admin is a no-op.
func (s *Service) Promote(ctx context.Context, email string) error {
	err := s.store.SetAdmin(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("promote skipped, no account for email", "email", email)
	}
	return err
}

// Toggle cycles the caller's reaction on an item: none to liked or
// disliked, same stance back to none, opposite stance flipped. The
// resulting state is returned so callers can render it without a
// second read.
func (s *Service) Toggle(ctx context.Context, email string, newsItemID int64, isLike bool) (model.ReactionState, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.ReactionNone, ErrUnknownUser
		}
		return model.ReactionNone, err
	}
	return s.store.ToggleReaction(ctx, user.ID, newsItemID, isLike)
}

// DeleteUser removes the account and every reaction it cast.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	return s.store.DeleteUserCascade(ctx, userID)
}

func (s *Service) Users(ctx context.Context) ([]model.User, error) {
	return s.store.ListUsers(ctx)
}

// ReactionsFor maps item IDs to the caller's current stance. An empty or
// unknown email yields an empty map so anonymous pages render without a
// special case.
func (s *Service) ReactionsFor(ctx context.Context, email string, newsItemIDs []int64) (map[int64]model.Reaction, error) {
	if email == "" {
		return nil, nil
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.store.GetUserReactions(ctx, user.ID, newsItemIDs)
}
