package warmup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postmux/postmux/cache"
	"github.com/postmux/postmux/model"
)

type fakeWarmupSource struct {
	authors  []string
	projects []string

	authorPosts  map[string][]model.Post
	projectPosts map[string][]model.Post
	users        map[string]*model.User

	activeErr error
}

func (f *fakeWarmupSource) ActiveAuthorIDs(ctx context.Context, since time.Time) ([]string, error) {
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	return f.authors, nil
}

func (f *fakeWarmupSource) ActiveProjectIDs(ctx context.Context, since time.Time) ([]string, error) {
	return f.projects, nil
}

func (f *fakeWarmupSource) RecentEligibleByAuthor(ctx context.Context, authorId string, since time.Time, limit int) ([]model.Post, error) {
	return f.authorPosts[authorId], nil
}

func (f *fakeWarmupSource) RecentEligibleByProject(ctx context.Context, projectId string, since time.Time, limit int) ([]model.Post, error) {
	return f.projectPosts[projectId], nil
}

func (f *fakeWarmupSource) TopComments(ctx context.Context, postId string, limit int) ([]model.Comment, error) {
	return nil, nil
}

func (f *fakeWarmupSource) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.New("user lookup failed")
	}
	return user, nil
}

type fakeDirectory struct {
	authorSubs  map[string][]string
	projectSubs map[string][]string
}

func (f *fakeDirectory) AuthorSubscriberIDs(ctx context.Context, authorId string) ([]string, error) {
	return f.authorSubs[authorId], nil
}

func (f *fakeDirectory) ProjectSubscriberIDs(ctx context.Context, projectId string) ([]string, error) {
	return f.projectSubs[projectId], nil
}

func warmupFixture(t *testing.T) (*fakeWarmupSource, *fakeDirectory, *cache.Store, *cache.FeedIndex) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	authorId := "author_1"
	source := &fakeWarmupSource{
		authors: []string{"author_1"},
		authorPosts: map[string][]model.Post{
			"author_1": {
				{Id: "post_1", AuthorID: &authorId, Verified: true, CreatedAt: time.Unix(2000, 0)},
				{Id: "post_2", AuthorID: &authorId, Verified: true, CreatedAt: time.Unix(1000, 0)},
			},
		},
		projectPosts: map[string][]model.Post{},
		users: map[string]*model.User{
			"author_1": {Id: "author_1", Name: "ada", AvatarUrl: "http://a/b.png"},
		},
	}
	directory := &fakeDirectory{
		authorSubs:  map[string][]string{"author_1": {"user_1", "user_2"}},
		projectSubs: map[string][]string{},
	}
	return source, directory, cache.NewStore(client), cache.NewFeedIndex(client, 500)
}

func TestWarmUp_PopulatesAllThreeCaches(t *testing.T) {
	source, directory, cacheStore, index := warmupFixture(t)
	warmer := NewWarmer(source, directory, cacheStore, index, 24*time.Hour, 100, 3)
	ctx := context.Background()

	require.NoError(t, warmer.WarmUp(ctx))

	// (a) profile cache
	profile, err := cacheStore.GetUserProfile(ctx, "author_1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "ada", profile.Name)

	// (b) post cache
	for _, postId := range []string{"post_1", "post_2"} {
		entry, err := cacheStore.GetPost(ctx, postId)
		require.NoError(t, err)
		require.NotNil(t, entry, "post %s should be cached", postId)
	}

	// (c) subscriber feed indexes
	for _, userId := range []string{"user_1", "user_2"} {
		ids, err := index.Page(ctx, userId, nil, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"post_1", "post_2"}, ids)
	}
}

func TestWarmUp_Idempotent(t *testing.T) {
	source, directory, cacheStore, index := warmupFixture(t)
	warmer := NewWarmer(source, directory, cacheStore, index, 24*time.Hour, 100, 3)
	ctx := context.Background()

	require.NoError(t, warmer.WarmUp(ctx))
	require.NoError(t, warmer.WarmUp(ctx))

	size, err := index.Size(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}

func TestWarmUp_SkipsBadItems(t *testing.T) {
	source, directory, cacheStore, index := warmupFixture(t)
	// author_2 is active but has no user row: profile warm-up must skip it
	// and keep going.
	source.authors = []string{"author_2", "author_1"}
	warmer := NewWarmer(source, directory, cacheStore, index, 24*time.Hour, 100, 3)
	ctx := context.Background()

	require.NoError(t, warmer.WarmUp(ctx))

	profile, err := cacheStore.GetUserProfile(ctx, "author_1")
	require.NoError(t, err)
	assert.NotNil(t, profile)

	missing, err := cacheStore.GetUserProfile(ctx, "author_2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWarmUp_FailsWhenActiveSetUnavailable(t *testing.T) {
	source, directory, cacheStore, index := warmupFixture(t)
	source.activeErr = errors.New("db down")
	warmer := NewWarmer(source, directory, cacheStore, index, 24*time.Hour, 100, 3)

	assert.Error(t, warmer.WarmUp(context.Background()))
}
