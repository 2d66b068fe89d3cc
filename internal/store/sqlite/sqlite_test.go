package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/newswire-app/newswire/internal/model"
	"github.com/newswire-app/newswire/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func mustInsertItem(t *testing.T, st *Store, id int64, title string, itemTime int64) {
	t.Helper()
	inserted, err := st.InsertNewsItem(context.Background(), &model.NewsItem{
		ID:    id,
		Title: title,
		By:    "tester",
		URL:   "https://example.com",
		Time:  itemTime,
	})
	if err != nil {
		t.Fatalf("insert item %d: %v", id, err)
	}
	if !inserted {
		t.Fatalf("expected item %d to be inserted", id)
	}
}

func mustCreateUser(t *testing.T, st *Store, username, email string) int64 {
	t.Helper()
	id, err := st.CreateUser(context.Background(), &model.User{Username: username, Email: email})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return id
}

func mustToggle(t *testing.T, st *Store, userID, itemID int64, isLike bool) model.ReactionState {
	t.Helper()
	state, err := st.ToggleReaction(context.Background(), userID, itemID, isLike)
	if err != nil {
		t.Fatalf("toggle reaction user=%d item=%d: %v", userID, itemID, err)
	}
	return state
}

func TestInsertNewsItemIgnoresExisting(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	mustInsertItem(t, st, 101, "First Title", 1000)

	inserted, err := st.InsertNewsItem(context.Background(), &model.NewsItem{ID: 101, Title: "Changed Title", Time: 2000})
	if err != nil {
		t.Fatalf("reinsert item: %v", err)
	}
	if inserted {
		t.Fatalf("expected reinsert to be ignored")
	}

	items, err := st.ListRecentItems(context.Background(), 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "First Title" {
		t.Fatalf("expected original title to survive, got %q", items[0].Title)
	}
}

func TestRankedOrdering(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	// A and B tie on likes; B wins on dislikes. C has no reactions at all.
	mustInsertItem(t, st, 1, "Item A", 100)
	mustInsertItem(t, st, 2, "Item B", 50)
	mustInsertItem(t, st, 3, "Item C", 200)

	var users []int64
	for i := 0; i < 5; i++ {
		users = append(users, mustCreateUser(t, st, fmt.Sprintf("user%d", i), fmt.Sprintf("user%d@example.com", i)))
	}
	for _, u := range users[:3] {
		mustToggle(t, st, u, 1, true)
		mustToggle(t, st, u, 2, true)
	}
	mustToggle(t, st, users[3], 1, false)
	mustToggle(t, st, users[3], 2, false)
	mustToggle(t, st, users[4], 2, false)

	items, total, err := st.ListRankedItems(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list ranked: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != 2 || items[1].ID != 1 || items[2].ID != 3 {
		t.Fatalf("unexpected order: %d, %d, %d", items[0].ID, items[1].ID, items[2].ID)
	}
	if items[0].Likes != 3 || items[0].Dislikes != 2 {
		t.Fatalf("unexpected counts for B: %d/%d", items[0].Likes, items[0].Dislikes)
	}
	if items[2].Likes != 0 || items[2].Dislikes != 0 {
		t.Fatalf("expected zero counts for C, got %d/%d", items[2].Likes, items[2].Dislikes)
	}
}

func TestRankedTieBreaksOnTime(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	mustInsertItem(t, st, 10, "Older", 100)
	mustInsertItem(t, st, 11, "Newer", 200)

	items, _, err := st.ListRankedItems(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list ranked: %v", err)
	}
	if items[0].ID != 11 || items[1].ID != 10 {
		t.Fatalf("expected newer item first, got %d then %d", items[0].ID, items[1].ID)
	}
}

func TestRankedPagination(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	for i := int64(1); i <= 5; i++ {
		mustInsertItem(t, st, i, fmt.Sprintf("Item %d", i), i*10)
	}

	seen := map[int64]bool{}
	for offset := 0; offset < 6; offset += 2 {
		items, total, err := st.ListRankedItems(context.Background(), 2, offset)
		if err != nil {
			t.Fatalf("list ranked offset %d: %v", offset, err)
		}
		if total != 5 {
			t.Fatalf("expected total 5 at offset %d, got %d", offset, total)
		}
		for _, item := range items {
			if seen[item.ID] {
				t.Fatalf("item %d returned twice", item.ID)
			}
			seen[item.ID] = true
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected all 5 items across pages, got %d", len(seen))
	}

	items, total, err := st.ListRankedItems(context.Background(), 2, 100)
	if err != nil {
		t.Fatalf("list ranked past end: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty page past end, got %d items", len(items))
	}
	if total != 5 {
		t.Fatalf("expected total 5 past end, got %d", total)
	}
}

func TestToggleTransitions(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	mustInsertItem(t, st, 1, "Item", 100)
	userID := mustCreateUser(t, st, "alice", "alice@example.com")

	steps := []struct {
		isLike bool
		want   model.ReactionState
	}{
		{true, model.ReactionLiked},
		{true, model.ReactionNone},
		{true, model.ReactionLiked},
		{false, model.ReactionDisliked},
		{false, model.ReactionNone},
		{false, model.ReactionDisliked},
		{true, model.ReactionLiked},
	}
	for i, step := range steps {
		got := mustToggle(t, st, userID, 1, step.isLike)
		if got != step.want {
			t.Fatalf("step %d: expected %s, got %s", i, step.want, got)
		}
	}

	reactions, err := st.GetUserReactions(context.Background(), userID, []int64{1})
	if err != nil {
		t.Fatalf("get reactions: %v", err)
	}
	if len(reactions) != 1 {
		t.Fatalf("expected a single reaction row, got %d", len(reactions))
	}
	if !reactions[1].IsLike {
		t.Fatalf("expected final state to be a like")
	}

	items, _, err := st.ListRankedItems(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list ranked: %v", err)
	}
	if items[0].Likes != 1 || items[0].Dislikes != 0 {
		t.Fatalf("expected counts 1/0, got %d/%d", items[0].Likes, items[0].Dislikes)
	}
}

func TestConcurrentToggles(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	mustInsertItem(t, st, 1, "Item", 100)
	userID := mustCreateUser(t, st, "alice", "alice@example.com")
	mustToggle(t, st, userID, 1, true)

	const callers = 4
	type result struct {
		state model.ReactionState
		err   error
	}
	results := make(chan result, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			state, err := st.ToggleReaction(context.Background(), userID, 1, true)
			results <- result{state, err}
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	// Callers that lose the database lock race may error; the ones that
	// commit must chain serial transitions off the seeded like.
	var states []model.ReactionState
	for r := range results {
		if r.err != nil {
			continue
		}
		states = append(states, r.state)
	}

	// From a like, committed toggles alternate none, liked, none, ...
	wantNone := (len(states) + 1) / 2
	var gotNone, gotLiked int
	for _, s := range states {
		switch s {
		case model.ReactionNone:
			gotNone++
		case model.ReactionLiked:
			gotLiked++
		default:
			t.Fatalf("unexpected state %s", s)
		}
	}
	if gotNone != wantNone || gotLiked != len(states)-wantNone {
		t.Fatalf("expected %d none / %d liked, got %d none / %d liked",
			wantNone, len(states)-wantNone, gotNone, gotLiked)
	}

	reactions, err := st.GetUserReactions(context.Background(), userID, []int64{1})
	if err != nil {
		t.Fatalf("get reactions: %v", err)
	}
	if len(states)%2 == 0 {
		if len(reactions) != 1 || !reactions[1].IsLike {
			t.Fatalf("expected the seeded like to survive, got %+v", reactions)
		}
	} else if len(reactions) != 0 {
		t.Fatalf("expected the like withdrawn, got %+v", reactions)
	}
}

func TestToggleUnknownItem(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	userID := mustCreateUser(t, st, "bob", "bob@example.com")

	_, err := st.ToggleReaction(context.Background(), userID, 999, true)
	if err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserReactionsEmptyInput(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	reactions, err := st.GetUserReactions(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("get reactions: %v", err)
	}
	if len(reactions) != 0 {
		t.Fatalf("expected empty map, got %d entries", len(reactions))
	}
}
