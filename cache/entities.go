package cache

import (
	"sort"
	"time"

	"github.com/jinzhu/copier"

	"github.com/postmux/postmux/model"
	Logger "github.com/postmux/postmux/utils/log"
)

/*

PostEntry is the denormalized, display-ready view of a post kept in the
cache store. It mirrors the post's display fields plus the most recent
verified comments (highest comment ids), so a feed page can be rendered
without touching the relational store.

Entries are created on read-miss, by the fan-out dispatcher and by the cache
warmer. They are overwritten on every relevant mutation event and never
explicitly deleted; expiry is handled by the store TTL.

*/
type PostEntry struct {
	Id            string         `json:"id"`
	AuthorId      *string        `json:"authorId,omitempty"`
	ProjectId     *string        `json:"projectId,omitempty"`
	Content       string         `json:"content"`
	Visibility    string         `json:"visibility"`
	CreatedAt     time.Time      `json:"createdAt"`
	LikesCount    int64          `json:"likesCount"`
	CommentsCount int64          `json:"commentsCount"`
	Comments      []CommentEntry `json:"comments"`
}

type CommentEntry struct {
	Id        int64     `json:"id"`
	AuthorId  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserProfileEntry is the lightweight profile view refreshed by the warmer.
type UserProfileEntry struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	AvatarUrl string `json:"avatarUrl"`
}

// NewPostEntry materializes a cache entry from the authoritative post row
// and its pre-selected top comments.
func NewPostEntry(post *model.Post, comments []model.Comment) *PostEntry {
	entry := &PostEntry{}
	// Display field names line up between the two structs, so a straight
	// copy does the bulk of the translation. The owner ids differ in casing
	// and are carried over by hand.
	if err := copier.Copy(entry, post); err != nil {
		Logger.Log.Errorf("fail to copy post %s into cache entry: %v", post.Id, err)
	}
	entry.AuthorId = post.AuthorID
	entry.ProjectId = post.ProjectID
	entry.Comments = []CommentEntry{}
	for _, c := range comments {
		entry.Comments = append(entry.Comments, NewCommentEntry(&c))
	}
	return entry
}

func NewCommentEntry(comment *model.Comment) CommentEntry {
	return CommentEntry{
		Id:        comment.Id,
		AuthorId:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
	}
}

// MergeComment inserts the comment into the embedded set, keeping it sorted
// by comment id descending and truncated to retain entries. Re-merging an
// already present id overwrites it in place, which keeps event handling
// idempotent under redelivery.
func (e *PostEntry) MergeComment(comment CommentEntry, retain int) {
	for i := range e.Comments {
		if e.Comments[i].Id == comment.Id {
			e.Comments[i] = comment
			return
		}
	}
	e.Comments = append(e.Comments, comment)
	sort.Slice(e.Comments, func(i, j int) bool {
		return e.Comments[i].Id > e.Comments[j].Id
	})
	if len(e.Comments) > retain {
		e.Comments = e.Comments[:retain]
	}
}
