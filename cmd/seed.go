package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newswire-app/newswire/internal/model"
	"github.com/newswire-app/newswire/internal/store"

	"github.com/spf13/cobra"
)

var sampleItems = []model.NewsItem{
	{ID: 45100101, Title: "Show HN: A single-binary feed reader in Go", By: "pkgdev", URL: "https://github.com/example/feedbin", Descendants: 84, Score: 212},
	{ID: 45100102, Title: "SQLite as an application file format, revisited", By: "dbfan", URL: "https://example.com/sqlite-file-format", Descendants: 151, Score: 340},
	{ID: 45100103, Title: "Ask HN: What's your self-hosting stack in 2026?", By: "homelabber", URL: "https://news.ycombinator.com/item?id=45100103", Descendants: 267, Score: 198, Text: "Curious what people run at home these days."},
	{ID: 45100104, Title: "Postgres FILTER clauses are underrated", By: "queryplanner", URL: "https://example.com/postgres-filter", Descendants: 45, Score: 120},
	{ID: 45100105, Title: "The economics of running a small news site", By: "indieweb", URL: "https://example.com/small-news-economics", Descendants: 92, Score: 156},
	{ID: 45100106, Title: "Why our team moved back to server-rendered HTML", By: "fullstackfan", URL: "https://example.com/back-to-ssr", Descendants: 310, Score: 402},
	{ID: 45100107, Title: "A deep dive into HTTP rate limiting strategies", By: "apiops", URL: "https://example.com/rate-limiting", Descendants: 38, Score: 95},
	{ID: 45100108, Title: "OAuth for side projects without losing your mind", By: "authgeek", URL: "https://example.com/oauth-side-projects", Descendants: 73, Score: 134},
}

var sampleUsers = []model.User{
	{Username: "ada", Email: "ada@example.com"},
	{Username: "linus", Email: "linus@example.com"},
	{Username: "grace", Email: "grace@example.com"},
}

// sampleReactions indexes into sampleUsers and sampleItems.
var sampleReactions = []struct {
	user int
	item int
	like bool
}{
	{0, 5, true},
	{0, 1, true},
	{0, 2, true},
	{0, 6, false},
	{1, 5, true},
	{1, 1, true},
	{1, 3, false},
	{2, 5, true},
	{2, 0, true},
	{2, 6, false},
}

// seedCmd loads demo content so a fresh install has something to show.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample items, users, and reactions into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		out := cmd.OutOrStdout()

		now := time.Now()
		inserted := 0
		for i := range sampleItems {
			item := sampleItems[i]
			item.Time = now.Add(-time.Duration(i) * time.Hour).Unix()
			fresh, err := st.InsertNewsItem(ctx, &item)
			if err != nil {
				return fmt.Errorf("insert %q: %w", item.Title, err)
			}
			if fresh {
				inserted++
			}
		}
		fmt.Fprintf(out, "items: %d new, %d already present\n", inserted, len(sampleItems)-inserted)

		userIDs := make([]int64, len(sampleUsers))
		for i := range sampleUsers {
			user := sampleUsers[i]
			id, err := st.CreateUser(ctx, &user)
			if errors.Is(err, store.ErrDuplicateUser) {
				existing, getErr := st.GetUserByEmail(ctx, user.Email)
				if getErr != nil {
					return getErr
				}
				id = existing.ID
			} else if err != nil {
				return fmt.Errorf("create user %s: %w", user.Email, err)
			}
			userIDs[i] = id
		}
		fmt.Fprintf(out, "users: %d ready\n", len(sampleUsers))

		itemIDs := make([]int64, len(sampleItems))
		for i, item := range sampleItems {
			itemIDs[i] = item.ID
		}

		// Existing reactions are skipped so reruns don't toggle them
		// back off.
		existing := make([]map[int64]model.Reaction, len(userIDs))
		for i, userID := range userIDs {
			reactions, err := st.GetUserReactions(ctx, userID, itemIDs)
			if err != nil {
				return err
			}
			existing[i] = reactions
		}

		applied := 0
		for _, r := range sampleReactions {
			itemID := sampleItems[r.item].ID
			if _, ok := existing[r.user][itemID]; ok {
				continue
			}
			if _, err := st.ToggleReaction(ctx, userIDs[r.user], itemID, r.like); err != nil {
				return fmt.Errorf("react on %d: %w", itemID, err)
			}
			applied++
		}
		fmt.Fprintf(out, "reactions: %d applied\n", applied)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
