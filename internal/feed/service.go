// Package feed exposes read views over ingested news items: the ranked
// page used by the HTML front page and the recent slice used by the
// JSON feed endpoints.
package feed

import (
	"context"

	"github.com/newswire-app/newswire/internal/model"
	"github.com/newswire-app/newswire/internal/store"
)

const (
	DefaultPageSize    = 10
	DefaultRecentLimit = 30

	maxRecentLimit = 100
)

type Service struct {
	store store.Store
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

// Page is one window of the ranked feed.
type Page struct {
	Items      []model.RankedItem `json:"items"`
	TotalCount int64              `json:"total_count"`
	TotalPages int                `json:"total_pages"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
}

// RankedPage returns one page of items ordered by likes, then dislikes,
// then recency. Page numbers below 1 and non-positive sizes fall back to
// defaults instead of erroring. A page past the end is empty but still
// carries the real total.
func (s *Service) RankedPage(ctx context.Context, page, size int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	items, total, err := s.store.ListRankedItems(ctx, size, (page-1)*size)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []model.RankedItem{}
	}
	return Page{
		Items:      items,
		TotalCount: total,
		TotalPages: PageCount(total, size),
		Page:       page,
		PageSize:   size,
	}, nil
}

// Recent returns the most recently ingested items, newest first,
// without reaction counts.
func (s *Service) Recent(ctx context.Context, limit int) ([]model.NewsItem, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	items, err := s.store.ListRecentItems(ctx, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.NewsItem{}
	}
	return items, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PageCount reports how many pages of pageSize a feed of total items spans.
func PageCount(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	pages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		pages++
	}
	return int(pages)
}
