package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/newswire-app/newswire/internal/hackernews"
	"github.com/newswire-app/newswire/internal/store"
)

const (
	defaultInterval = 30 * time.Minute
	defaultLimit    = 50
)

// Collector polls the Hacker News front page and stores stories it has
// not seen before. Existing rows are never updated, so an item's
// reactions stay attached to the row as first ingested.
type Collector struct {
	Client   *hackernews.Client
	Store    store.NewsStore
	Interval time.Duration
	Limit    int
}

func (w *Collector) Start(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	// initial run
	if _, err := w.Collect(ctx); err != nil {
		slog.Error("collector: initial run failed", "error", err)
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Collect(ctx); err != nil {
				slog.Error("collector: run failed", "error", err)
			}
		}
	}
}

// Collect performs one collection run and reports how many new items
// were stored.
func (w *Collector) Collect(ctx context.Context) (int, error) {
	limit := w.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	items, err := w.Client.TopStories(ctx, limit)
	if err != nil {
		return 0, err
	}
	inserted := 0
	for i := range items {
		ok, err := w.Store.InsertNewsItem(ctx, &items[i])
		if err != nil {
			slog.Error("collector: store error", "id", items[i].ID, "error", err)
			continue
		}
		if ok {
			inserted++
		}
	}
	slog.Info("collector: completed", "fetched", len(items), "new", inserted)
	return inserted, nil
}
