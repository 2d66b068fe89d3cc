package model

// NewsItem is an externally sourced story. IDs are assigned by the
// upstream feed, not locally, and rows are never updated after insert.
type NewsItem struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	By          string `json:"by"`
	URL         string `json:"url"`
	Descendants int    `json:"descendants"`
	Score       int    `json:"score"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
}

// RankedItem is a NewsItem merged with its live reaction tallies.
type RankedItem struct {
	NewsItem
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Admin    bool   `json:"admin"`
}

// Reaction is one user's stance on one news item. At most one row
// exists per (user_id, news_item_id) pair.
type Reaction struct {
	ID         int64 `json:"id"`
	UserID     int64 `json:"user_id"`
	NewsItemID int64 `json:"news_item_id"`
	IsLike     bool  `json:"is_like"`
}

// ReactionState is the per-(user, item) state after a toggle.
type ReactionState string

const (
	ReactionNone     ReactionState = "none"
	ReactionLiked    ReactionState = "liked"
	ReactionDisliked ReactionState = "disliked"
)
