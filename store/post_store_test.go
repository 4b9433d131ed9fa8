package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/postmux/postmux/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Project{},
		&model.Post{},
		&model.Comment{},
		&model.UserAuthorSubscription{},
		&model.UserProjectSubscription{},
	))
	return db
}

func strPtr(s string) *string {
	return &s
}

func createPost(t *testing.T, db *gorm.DB, id string, authorId string, verified bool, createdAt time.Time) {
	t.Helper()
	post := &model.Post{
		Id:        id,
		AuthorID:  strPtr(authorId),
		Content:   "content of " + id,
		Published: true,
		Verified:  verified,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(post).Error)
}

func TestGetPost(t *testing.T) {
	db := newTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	createPost(t, db, "post_1", "author_1", true, time.Now())

	post, err := store.GetPost(ctx, "post_1")
	require.NoError(t, err)
	assert.Equal(t, "post_1", post.Id)
	assert.True(t, post.FeedEligible())

	_, err = store.GetPost(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPost_SoftDeletedIsNotFound(t *testing.T) {
	db := newTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	createPost(t, db, "post_1", "author_1", true, time.Now())
	require.NoError(t, db.Delete(&model.Post{Id: "post_1"}).Error)

	_, err := store.GetPost(ctx, "post_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFeedEligible(t *testing.T) {
	db := newTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	createPost(t, db, "verified", "author_1", true, time.Now())
	createPost(t, db, "unverified", "author_1", false, time.Now())

	eligible, err := store.FeedEligible(ctx, "verified")
	require.NoError(t, err)
	assert.True(t, eligible)

	eligible, err = store.FeedEligible(ctx, "unverified")
	require.NoError(t, err)
	assert.False(t, eligible)

	eligible, err = store.FeedEligible(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, eligible)
}

func TestCreatePostIfAbsent_Idempotent(t *testing.T) {
	db := newTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	post := &model.Post{Id: "post_1", AuthorID: strPtr("author_1"), Content: "v1", Verified: true}
	require.NoError(t, store.CreatePostIfAbsent(ctx, post))

	// Second write with different content must not overwrite the row.
	dup := &model.Post{Id: "post_1", AuthorID: strPtr("author_1"), Content: "v2", Verified: true}
	require.NoError(t, store.CreatePostIfAbsent(ctx, dup))

	got, err := store.GetPost(ctx, "post_1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)
}

func TestTopComments(t *testing.T) {
	db := newTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	createPost(t, db, "post_1", "author_1", true, time.Now())
	for i := 1; i <= 5; i++ {
		require.NoError(t, db.Create(&model.Comment{
			PostID:   "post_1",
			AuthorID: fmt.Sprintf("u%d", i),
			Content:  fmt.Sprintf("c%d", i),
			Verified: i != 4, // comment 4 is unverified
		}).Error)
	}

	comments, err := store.TopComments(ctx, "post_1", 3)
	require.NoError(t, err)
	require.Equal(t, 3, len(comments))
	// Highest verified ids first; the unverified id 4 is skipped.
	assert.Equal(t, int64(5), comments[0].Id)
	assert.Equal(t, int64(3), comments[1].Id)
	assert.Equal(t, int64(2), comments[2].Id)
}

func TestRecentEligibleByAuthor(t *testing.T) {
	db := newTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	now := time.Now()
	createPost(t, db, "new", "author_1", true, now.Add(-time.Hour))
	createPost(t, db, "newer", "author_1", true, now.Add(-time.Minute))
	createPost(t, db, "old", "author_1", true, now.Add(-48*time.Hour))
	createPost(t, db, "unverified", "author_1", false, now.Add(-time.Minute))
	createPost(t, db, "other_author", "author_2", true, now.Add(-time.Minute))

	posts, err := store.RecentEligibleByAuthor(ctx, "author_1", now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Equal(t, 2, len(posts))
	assert.Equal(t, "newer", posts[0].Id)
	assert.Equal(t, "new", posts[1].Id)
}

func TestRecentEligibleForSubscriber(t *testing.T) {
	db := newTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	now := time.Now()
	createPost(t, db, "followed", "author_1", true, now.Add(-time.Hour))
	createPost(t, db, "not_followed", "author_2", true, now.Add(-time.Minute))
	require.NoError(t, db.Create(&model.Post{
		Id:        "project_post",
		ProjectID: strPtr("project_1"),
		Verified:  true,
		CreatedAt: now.Add(-30 * time.Minute),
	}).Error)

	require.NoError(t, db.Create(&model.UserAuthorSubscription{
		UserID: "user_1", AuthorID: "author_1",
	}).Error)
	require.NoError(t, db.Create(&model.UserProjectSubscription{
		UserID: "user_1", ProjectID: "project_1",
	}).Error)

	posts, err := store.RecentEligibleForSubscriber(ctx, "user_1", 10)
	require.NoError(t, err)
	require.Equal(t, 2, len(posts))
	assert.Equal(t, "project_post", posts[0].Id)
	assert.Equal(t, "followed", posts[1].Id)
}

func TestIncrementCounters(t *testing.T) {
	db := newTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	createPost(t, db, "post_1", "author_1", true, time.Now())

	require.NoError(t, store.IncrementLikesCount(ctx, "post_1", 1))
	require.NoError(t, store.IncrementLikesCount(ctx, "post_1", 1))
	require.NoError(t, store.IncrementCommentsCount(ctx, "post_1", 1))

	post, err := store.GetPost(ctx, "post_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), post.LikesCount)
	assert.Equal(t, int64(1), post.CommentsCount)

	// Unlikes never push the counter below zero.
	require.NoError(t, store.IncrementLikesCount(ctx, "post_1", -1))
	require.NoError(t, store.IncrementLikesCount(ctx, "post_1", -1))
	require.NoError(t, store.IncrementLikesCount(ctx, "post_1", -1))

	post, err = store.GetPost(ctx, "post_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), post.LikesCount)
}

func TestActiveAuthorIDs(t *testing.T) {
	db := newTestDB(t)
	store := NewPostStore(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.User{Id: "author_1", Name: "ada"}).Error)
	require.NoError(t, db.Create(&model.User{Id: "author_2", Name: "bob"}).Error)

	now := time.Now()
	createPost(t, db, "p1", "author_1", true, now.Add(-time.Hour))
	createPost(t, db, "p2", "author_1", true, now.Add(-2*time.Hour))
	createPost(t, db, "stale", "author_2", true, now.Add(-100*time.Hour))
	// Author without a user row is ignored.
	createPost(t, db, "ghost", "author_3", true, now.Add(-time.Hour))

	ids, err := store.ActiveAuthorIDs(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"author_1"}, ids)
}

func TestSubscriberDirectory(t *testing.T) {
	db := newTestDB(t)
	directory := NewSubscriberDirectory(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.UserAuthorSubscription{UserID: "u1", AuthorID: "a1"}).Error)
	require.NoError(t, db.Create(&model.UserAuthorSubscription{UserID: "u2", AuthorID: "a1"}).Error)
	require.NoError(t, db.Create(&model.UserProjectSubscription{UserID: "u3", ProjectID: "pr1"}).Error)

	ids, err := directory.AuthorSubscriberIDs(ctx, "a1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, ids)

	ids, err = directory.ProjectSubscriberIDs(ctx, "pr1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, ids)

	ids, err = directory.AuthorSubscriberIDs(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, len(ids))
}
