package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client), mr
}

func samplePostEntry() *PostEntry {
	authorId := "author_1"
	return &PostEntry{
		Id:            "post_1",
		AuthorId:      &authorId,
		Content:       "hello",
		Visibility:    "PUBLIC",
		CreatedAt:     time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC),
		LikesCount:    2,
		CommentsCount: 5,
		Comments: []CommentEntry{
			{Id: 9, AuthorId: "u1", Content: "nice"},
			{Id: 7, AuthorId: "u2", Content: "ok"},
		},
	}
}

func TestPostCache_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	entry := samplePostEntry()
	require.NoError(t, store.SetPost(ctx, entry))

	got, err := store.GetPost(ctx, "post_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, cmp.Diff(entry, got))
}

func TestPostCache_MissReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.GetPost(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostCache_EntryExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetPost(ctx, samplePostEntry()))
	assert.Equal(t, EntryTTL, mr.TTL(postKey("post_1")))

	mr.FastForward(EntryTTL + time.Minute)

	got, err := store.GetPost(ctx, "post_1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserProfileCache_RoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	entry := &UserProfileEntry{Id: "user_1", Name: "ada", AvatarUrl: "http://a/b.png"}
	require.NoError(t, store.SetUserProfile(ctx, entry))
	assert.Equal(t, EntryTTL, mr.TTL(userKey("user_1")))

	got, err := store.GetUserProfile(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	missing, err := store.GetUserProfile(ctx, "user_2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_PingAndSize(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	size, err := store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	require.NoError(t, store.SetPost(ctx, samplePostEntry()))
	size, err = store.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	mr.Close()
	assert.Error(t, store.Ping(ctx))

	_, err = store.Size(ctx)
	assert.Error(t, err)
}
