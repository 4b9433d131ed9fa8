// Package store is the gorm query layer over the relational primary store.
// It should not contain feed assembly or caching logic, only bounded reads
// and atomic counter updates.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postmux/postmux/model"
)

// ErrNotFound is returned when a referenced row is missing or soft-deleted.
var ErrNotFound = errors.New("not found")

type PostStore struct {
	db *gorm.DB
}

func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

func (s *PostStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	res := s.db.WithContext(ctx).Where("id = ?", id).First(&post)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "fail to load post %s", id)
	}
	return &post, nil
}

// FeedEligible answers the authoritative eligibility bit with a single
// column read, so cache hits can be cross-checked without materializing the
// whole row. Missing and soft-deleted posts are simply ineligible.
func (s *PostStore) FeedEligible(ctx context.Context, id string) (bool, error) {
	var verified []bool
	res := s.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		Pluck("verified", &verified)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "fail to check eligibility of post %s", id)
	}
	return len(verified) == 1 && verified[0], nil
}

// CreatePostIfAbsent persists the post when no row with the same id exists
// yet. Re-processing the same publish event is therefore a no-op.
func (s *PostStore) CreatePostIfAbsent(ctx context.Context, post *model.Post) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(post)
	return errors.Wrapf(res.Error, "fail to persist post %s", post.Id)
}

// TopComments returns the limit highest-id verified comments of a post,
// most recent first.
func (s *PostStore) TopComments(ctx context.Context, postId string, limit int) ([]model.Comment, error) {
	var comments []model.Comment
	res := s.db.WithContext(ctx).
		Where("post_id = ? AND verified = ?", postId, true).
		Order("id desc").
		Limit(limit).
		Find(&comments)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "fail to load top comments of post %s", postId)
	}
	return comments, nil
}

// RecentEligibleByAuthor returns the author's feed-eligible posts newer than
// since, newest first, capped at limit.
func (s *PostStore) RecentEligibleByAuthor(ctx context.Context, authorId string, since time.Time, limit int) ([]model.Post, error) {
	return s.recentEligible(ctx, "author_id = ?", authorId, since, limit)
}

// RecentEligibleByProject is RecentEligibleByAuthor for project timelines.
func (s *PostStore) RecentEligibleByProject(ctx context.Context, projectId string, since time.Time, limit int) ([]model.Post, error) {
	return s.recentEligible(ctx, "project_id = ?", projectId, since, limit)
}

func (s *PostStore) recentEligible(ctx context.Context, ownerCond string, ownerId string, since time.Time, limit int) ([]model.Post, error) {
	var posts []model.Post
	res := s.db.WithContext(ctx).
		Where(ownerCond, ownerId).
		Where("verified = ? AND created_at > ?", true, since).
		Order("created_at desc").
		Limit(limit).
		Find(&posts)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "fail to load recent posts of %s", ownerId)
	}
	return posts, nil
}

// RecentEligibleForSubscriber returns the most recent feed-eligible posts
// from the authors and projects the user subscribes to. Used to bootstrap a
// cold feed index.
func (s *PostStore) RecentEligibleForSubscriber(ctx context.Context, userId string, limit int) ([]model.Post, error) {
	authorIds := s.db.Model(&model.UserAuthorSubscription{}).
		Select("author_id").
		Where("user_id = ?", userId)
	projectIds := s.db.Model(&model.UserProjectSubscription{}).
		Select("project_id").
		Where("user_id = ?", userId)

	var posts []model.Post
	res := s.db.WithContext(ctx).
		Where("verified = ?", true).
		Where("author_id IN (?) OR project_id IN (?)", authorIds, projectIds).
		Order("created_at desc").
		Limit(limit).
		Find(&posts)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "fail to load timeline posts for user %s", userId)
	}
	return posts, nil
}

// IncrementLikesCount atomically adjusts the like counter, never letting it
// drop below zero.
func (s *PostStore) IncrementLikesCount(ctx context.Context, postId string, delta int64) error {
	res := s.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", postId).
		UpdateColumn("likes_count", gorm.Expr(
			"CASE WHEN likes_count + ? < 0 THEN 0 ELSE likes_count + ? END", delta, delta))
	return errors.Wrapf(res.Error, "fail to bump likes count of post %s", postId)
}

// IncrementCommentsCount atomically adjusts the comment counter.
func (s *PostStore) IncrementCommentsCount(ctx context.Context, postId string, delta int64) error {
	res := s.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", postId).
		UpdateColumn("comments_count", gorm.Expr(
			"CASE WHEN comments_count + ? < 0 THEN 0 ELSE comments_count + ? END", delta, delta))
	return errors.Wrapf(res.Error, "fail to bump comments count of post %s", postId)
}

// ActiveAuthorIDs returns the distinct existing authors with at least one
// feed-eligible post newer than since.
func (s *PostStore) ActiveAuthorIDs(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	res := s.db.WithContext(ctx).Model(&model.Post{}).
		Distinct().
		Joins("JOIN users ON users.id = posts.author_id AND users.deleted_at IS NULL").
		Where("posts.verified = ? AND posts.created_at > ?", true, since).
		Pluck("posts.author_id", &ids)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to list active authors")
	}
	return ids, nil
}

// ActiveProjectIDs is ActiveAuthorIDs for projects.
func (s *PostStore) ActiveProjectIDs(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	res := s.db.WithContext(ctx).Model(&model.Post{}).
		Distinct().
		Joins("JOIN projects ON projects.id = posts.project_id AND projects.deleted_at IS NULL").
		Where("posts.verified = ? AND posts.created_at > ?", true, since).
		Pluck("posts.project_id", &ids)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to list active projects")
	}
	return ids, nil
}

func (s *PostStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	res := s.db.WithContext(ctx).Where("id = ?", id).First(&user)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "fail to load user %s", id)
	}
	return &user, nil
}
