// Package hackernews is a minimal client for the official Hacker News
// Firebase API. Docs: https://github.com/HackerNews/API
package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newswire-app/newswire/internal/model"
)

type Client struct {
	baseAPI string
	client  *http.Client
}

// NewClient creates a new Hacker News client. baseAPI should be
// something like "https://hacker-news.firebaseio.com/v0". If empty, it
// defaults to the v0 endpoint.
func NewClient(baseAPI string) *Client {
	if strings.TrimSpace(baseAPI) == "" {
		baseAPI = "https://hacker-news.firebaseio.com/v0"
	}
	return &Client{
		baseAPI: strings.TrimRight(baseAPI, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// hnItem mirrors the subset of HN item fields we care about.
type hnItem struct {
	ID          int64  `json:"id"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
	Type        string `json:"type"` // story, job, ask, show, poll, etc.
	By          string `json:"by"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Time        int64  `json:"time"`
	Descendants int    `json:"descendants"`
	Score       int    `json:"score"`
}

// TopStories returns the current top stories, at most limit of them.
// Deleted and dead entries are dropped; individual fetch failures skip
// that item rather than failing the whole batch.
func (c *Client) TopStories(ctx context.Context, limit int) ([]model.NewsItem, error) {
	ids, err := c.fetchIDs(ctx, "topstories")
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return c.itemsByIDs(ctx, ids)
}

// Fetch resolves a single item by ID. Unknown IDs answer with a literal
// null, which decodes as the zero item and is reported as not ok.
func (c *Client) Fetch(ctx context.Context, id int64) (model.NewsItem, bool, error) {
	it, err := c.fetchItem(ctx, id)
	if err != nil {
		return model.NewsItem{}, false, err
	}
	if !usable(it) {
		return model.NewsItem{}, false, nil
	}
	return convertItem(it), true, nil
}

func (c *Client) fetchItem(ctx context.Context, id int64) (hnItem, error) {
	var it hnItem
	endpoint := fmt.Sprintf("%s/item/%d.json", c.baseAPI, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return it, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return it, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return it, fmt.Errorf("hackernews: item %d status %d", id, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&it); err != nil {
		return it, err
	}
	return it, nil
}

// fetchIDs loads a list endpoint such as topstories.
func (c *Client) fetchIDs(ctx context.Context, list string) ([]int64, error) {
	endpoint := fmt.Sprintf("%s/%s.json", c.baseAPI, list)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("hackernews: %s status %d", list, resp.StatusCode)
	}
	var ids []int64
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// itemsByIDs resolves multiple IDs concurrently, preserving list order.
func (c *Client) itemsByIDs(ctx context.Context, ids []int64) ([]model.NewsItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	// bounded concurrency
	const maxWorkers = 8
	type result struct {
		idx  int
		item hnItem
		err  error
	}
	out := make([]result, len(ids))
	sem := make(chan struct{}, maxWorkers)
	done := make(chan result, len(ids))
	for i, id := range ids {
		i, id := i, id
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			// Per-item timeout to avoid hanging
			ictx, cancel := context.WithTimeout(ctx, 8*time.Second)
			defer cancel()
			it, err := c.fetchItem(ictx, id)
			done <- result{idx: i, item: it, err: err}
		}()
	}
	for i := 0; i < len(ids); i++ {
		r := <-done
		if r.err != nil {
			continue
		}
		out[r.idx] = r
	}
	items := make([]model.NewsItem, 0, len(ids))
	for _, r := range out {
		if usable(r.item) {
			items = append(items, convertItem(r.item))
		}
	}
	return items, nil
}

func usable(it hnItem) bool {
	return it.ID != 0 && it.Title != "" && !it.Deleted && !it.Dead
}

// convertItem maps an hnItem to our NewsItem model. Text posts get the
// discussion page as their URL so every row links somewhere.
func convertItem(h hnItem) model.NewsItem {
	urlStr := strings.TrimSpace(h.URL)
	if urlStr == "" {
		urlStr = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", h.ID)
	}
	return model.NewsItem{
		ID:          h.ID,
		Title:       h.Title,
		By:          h.By,
		URL:         urlStr,
		Descendants: h.Descendants,
		Score:       h.Score,
		Time:        h.Time,
		Text:        h.Text,
	}
}
