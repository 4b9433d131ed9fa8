package model

import "time"

// Like event types.
const (
	LikeTypeLike   = "LIKE"
	LikeTypeUnlike = "UNLIKE"
)

// NewPostEvent announces a freshly published post. Exactly one of AuthorId
// and ProjectId is set.
type NewPostEvent struct {
	PostId      string    `json:"postId"`
	AuthorId    *string   `json:"authorId,omitempty"`
	ProjectId   *string   `json:"projectId,omitempty"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"publishedAt"`
}

// NewCommentEvent announces a comment written on a post. Unverified comments
// still bump the counter but never enter the cached top comment set.
type NewCommentEvent struct {
	Id        int64     `json:"id"`
	PostId    string    `json:"postId"`
	AuthorId  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Verified  bool      `json:"verified"`
}

// NewLikeEvent announces a like or unlike on a post.
type NewLikeEvent struct {
	PostId    string    `json:"postId"`
	UserId    string    `json:"userId"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// FeedUpdateEvent is emitted once per fan-out batch, chiefly for
// observability and secondary consumers.
type FeedUpdateEvent struct {
	PostId        string   `json:"postId"`
	AuthorId      string   `json:"authorId"`
	SubscriberIds []string `json:"subscriberIds"`
}
