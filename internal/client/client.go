// Package client provides a Go client for the Newswire API.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const sessionCookie = "newswire_session"

// ErrNotAuthenticated is returned when a write call is made without a
// valid session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Client is a Newswire API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// Session holds the session cookie value for a signed-in reader.
	// Read calls work without it.
	Session string
}

// New creates a new Newswire client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// IsAuthenticated returns true if the client carries a session.
func (c *Client) IsAuthenticated() bool {
	return c.Session != ""
}

// Item is a news item as served by the API.
type Item struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	By          string `json:"by"`
	URL         string `json:"url"`
	Descendants int    `json:"descendants"`
	Score       int    `json:"score"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
}

// RankedItem is an item with its reaction tallies.
type RankedItem struct {
	Item
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
}

// FeedPage is one page of the ranked feed.
type FeedPage struct {
	Items      []RankedItem `json:"items"`
	TotalCount int64        `json:"total_count"`
	TotalPages int          `json:"total_pages"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
}

// ReactionResult reports the state a reaction toggle landed on.
type ReactionResult struct {
	ItemID int64  `json:"item_id"`
	State  string `json:"state"`
}

// doRequest performs an HTTP request with JSON negotiation and the
// session cookie when present.
func (c *Client) doRequest(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Session != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.Session})
	}
	return c.HTTPClient.Do(req)
}

// Feed fetches one page of the ranked feed.
func (c *Client) Feed(page, size int) (*FeedPage, error) {
	path := fmt.Sprintf("/api/feed?page=%d&size=%d", page, size)
	resp, err := c.doRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get feed failed (%d): %s", resp.StatusCode, string(body))
	}

	var result FeedPage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Recent fetches the latest items ordered newest first.
func (c *Client) Recent(limit int) ([]Item, error) {
	path := fmt.Sprintf("/newsfeed?limit=%d", limit)
	resp, err := c.doRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get newsfeed failed (%d): %s", resp.StatusCode, string(body))
	}

	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// Like toggles a like on the item.
func (c *Client) Like(itemID int64) (*ReactionResult, error) {
	return c.react("like", itemID)
}

// Dislike toggles a dislike on the item.
func (c *Client) Dislike(itemID int64) (*ReactionResult, error) {
	return c.react("dislike", itemID)
}

func (c *Client) react(action string, itemID int64) (*ReactionResult, error) {
	resp, err := c.doRequest(http.MethodPost, fmt.Sprintf("/%s/%d", action, itemID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrNotAuthenticated
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s failed (%d): %s", action, resp.StatusCode, string(body))
	}

	var result ReactionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Healthz checks the server health endpoint.
func (c *Client) Healthz() error {
	resp, err := c.doRequest(http.MethodGet, "/api/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("healthz failed (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Version fetches the server version string.
func (c *Client) Version() (string, error) {
	resp, err := c.doRequest(http.MethodGet, "/api/version", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("get version failed (%d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Version, nil
}
