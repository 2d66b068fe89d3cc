package sqlite

import (
	"context"
	"testing"

	"github.com/newswire-app/newswire/internal/model"
	"github.com/newswire-app/newswire/internal/store"
)

func TestUserLifecycle(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	id := mustCreateUser(t, st, "alice", "alice@example.com")
	if id == 0 {
		t.Fatalf("expected user id")
	}

	user, err := st.GetUserByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.ID != id || user.Username != "alice" || user.Admin {
		t.Fatalf("unexpected user: %+v", user)
	}

	_, err = st.CreateUser(context.Background(), &model.User{Username: "alice2", Email: "alice@example.com"})
	if err != store.ErrDuplicateUser {
		t.Fatalf("expected ErrDuplicateUser for email, got %v", err)
	}
	_, err = st.CreateUser(context.Background(), &model.User{Username: "alice", Email: "other@example.com"})
	if err != store.ErrDuplicateUser {
		t.Fatalf("expected ErrDuplicateUser for username, got %v", err)
	}

	_, err = st.GetUserByEmail(context.Background(), "missing@example.com")
	if err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetAdmin(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	mustCreateUser(t, st, "carol", "carol@example.com")

	if err := st.SetAdmin(context.Background(), "carol@example.com"); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	user, err := st.GetUserByEmail(context.Background(), "carol@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.Admin {
		t.Fatalf("expected admin flag set")
	}

	// Promoting an admin again is a no-op, not an error.
	if err := st.SetAdmin(context.Background(), "carol@example.com"); err != nil {
		t.Fatalf("set admin twice: %v", err)
	}

	if err := st.SetAdmin(context.Background(), "missing@example.com"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListUsers(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	first := mustCreateUser(t, st, "alice", "alice@example.com")
	second := mustCreateUser(t, st, "bob", "bob@example.com")

	users, err := st.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].ID != first || users[1].ID != second {
		t.Fatalf("unexpected order: %d, %d", users[0].ID, users[1].ID)
	}
}

func TestDeleteUserCascade(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	mustInsertItem(t, st, 1, "Item", 100)
	userID := mustCreateUser(t, st, "dave", "dave@example.com")
	mustToggle(t, st, userID, 1, true)

	if err := st.DeleteUserCascade(context.Background(), userID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	_, err := st.GetUserByEmail(context.Background(), "dave@example.com")
	if err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	reactions, err := st.GetUserReactions(context.Background(), userID, []int64{1})
	if err != nil {
		t.Fatalf("get reactions: %v", err)
	}
	if len(reactions) != 0 {
		t.Fatalf("expected reactions removed, got %d", len(reactions))
	}

	items, _, err := st.ListRankedItems(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list ranked: %v", err)
	}
	if items[0].Likes != 0 {
		t.Fatalf("expected like count 0 after cascade, got %d", items[0].Likes)
	}

	if err := st.DeleteUserCascade(context.Background(), userID); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
