// Package warmup bulk-repopulates the cache store and the feed indexes.
package warmup

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/postmux/postmux/cache"
	"github.com/postmux/postmux/model"
	"github.com/postmux/postmux/utils"
	Logger "github.com/postmux/postmux/utils/log"
)

// recentPostLimit bounds how many posts per active author or project the
// warmer touches.
const recentPostLimit = 20

// PostSource is the slice of the primary store the warmer reads.
type PostSource interface {
	ActiveAuthorIDs(ctx context.Context, since time.Time) ([]string, error)
	ActiveProjectIDs(ctx context.Context, since time.Time) ([]string, error)
	RecentEligibleByAuthor(ctx context.Context, authorId string, since time.Time, limit int) ([]model.Post, error)
	RecentEligibleByProject(ctx context.Context, projectId string, since time.Time, limit int) ([]model.Post, error)
	TopComments(ctx context.Context, postId string, limit int) ([]model.Comment, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// SubscriberSource resolves warm-up fan-out targets.
type SubscriberSource interface {
	AuthorSubscriberIDs(ctx context.Context, authorId string) ([]string, error)
	ProjectSubscriberIDs(ctx context.Context, projectId string) ([]string, error)
}

/*

Warmer rebuilds the read side after a cold start or a cache-store recovery:
user profiles, post cache entries and feed index entries for every author
and project active inside the recency window.

WarmUp is idempotent and safe to run concurrently with normal traffic since
every write it performs is an overwrite-by-key or an AddIfAbsent.

*/
type Warmer struct {
	posts       PostSource
	subscribers SubscriberSource
	cache       *cache.Store
	index       *cache.FeedIndex

	window       time.Duration
	batchSize    int
	commentCount int
}

func NewWarmer(
	posts PostSource,
	subscribers SubscriberSource,
	cacheStore *cache.Store,
	index *cache.FeedIndex,
	window time.Duration,
	batchSize int,
	commentCount int,
) *Warmer {
	return &Warmer{
		posts:        posts,
		subscribers:  subscribers,
		cache:        cacheStore,
		index:        index,
		window:       window,
		batchSize:    batchSize,
		commentCount: commentCount,
	}
}

// WarmUp runs the three warm-up units concurrently and waits for all of them.
// Per-item failures are logged and skipped; only failing to determine the
// active sets or a unit-level breakdown surfaces as an error.
func (w *Warmer) WarmUp(ctx context.Context) error {
	since := time.Now().Add(-w.window)

	authors, err := w.posts.ActiveAuthorIDs(ctx, since)
	if err != nil {
		return errors.Wrap(err, "fail to determine active authors")
	}
	projects, err := w.posts.ActiveProjectIDs(ctx, since)
	if err != nil {
		return errors.Wrap(err, "fail to determine active projects")
	}
	Logger.Log.Infof("warm-up starting: %d active authors, %d active projects", len(authors), len(projects))

	var wg sync.WaitGroup
	errCh := make(chan error, 3)
	units := []func(context.Context, []string, []string, time.Time) error{
		w.warmUserProfiles,
		w.warmPostEntries,
		w.warmFeedIndexes,
	}
	for _, unit := range units {
		wg.Add(1)
		go func(run func(context.Context, []string, []string, time.Time) error) {
			defer wg.Done()
			if err := run(ctx, authors, projects, since); err != nil {
				errCh <- err
			}
		}(unit)
	}

	wg.Wait()
	close(errCh)
	if err, ok := <-errCh; ok {
		return err
	}
	Logger.Log.Infoln("warm-up finished")
	return nil
}

// warmUserProfiles refreshes the lightweight profile cache for every active
// author.
func (w *Warmer) warmUserProfiles(ctx context.Context, authors []string, _ []string, _ time.Time) error {
	for _, batch := range utils.BatchStrings(authors, w.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, authorId := range batch {
			user, err := w.posts.GetUser(ctx, authorId)
			if err != nil {
				Logger.Log.Errorf("skip profile warm-up of user %s: %v", authorId, err)
				continue
			}
			entry := &cache.UserProfileEntry{Id: user.Id, Name: user.Name, AvatarUrl: user.AvatarUrl}
			if err := w.cache.SetUserProfile(ctx, entry); err != nil {
				Logger.Log.Errorf("skip profile warm-up of user %s: %v", authorId, err)
			}
		}
	}
	return nil
}

// warmPostEntries refreshes the post cache for the recent eligible posts of
// every active author and project, including their top comment sets.
func (w *Warmer) warmPostEntries(ctx context.Context, authors []string, projects []string, since time.Time) error {
	warm := func(posts []model.Post) {
		for i := range posts {
			post := &posts[i]
			comments, err := w.posts.TopComments(ctx, post.Id, w.commentCount)
			if err != nil {
				Logger.Log.Errorf("skip comment warm-up of post %s: %v", post.Id, err)
				comments = nil
			}
			if err := w.cache.SetPost(ctx, cache.NewPostEntry(post, comments)); err != nil {
				Logger.Log.Errorf("skip cache warm-up of post %s: %v", post.Id, err)
			}
		}
	}

	for _, batch := range utils.BatchStrings(authors, w.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, authorId := range batch {
			posts, err := w.posts.RecentEligibleByAuthor(ctx, authorId, since, recentPostLimit)
			if err != nil {
				Logger.Log.Errorf("skip post warm-up of author %s: %v", authorId, err)
				continue
			}
			warm(posts)
		}
	}
	for _, batch := range utils.BatchStrings(projects, w.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, projectId := range batch {
			posts, err := w.posts.RecentEligibleByProject(ctx, projectId, since, recentPostLimit)
			if err != nil {
				Logger.Log.Errorf("skip post warm-up of project %s: %v", projectId, err)
				continue
			}
			warm(posts)
		}
	}
	return nil
}

// warmFeedIndexes re-pushes recent posts of every active author and project
// into their subscribers' feed indexes.
func (w *Warmer) warmFeedIndexes(ctx context.Context, authors []string, projects []string, since time.Time) error {
	push := func(subscribers []string, posts []model.Post) {
		for _, batch := range utils.BatchStrings(subscribers, w.batchSize) {
			for _, userId := range batch {
				for i := range posts {
					if _, err := w.index.AddIfAbsent(ctx, userId, posts[i].Id, posts[i].CreatedAt.Unix()); err != nil {
						Logger.Log.Errorf("skip index warm-up of user %s post %s: %v", userId, posts[i].Id, err)
					}
				}
			}
		}
	}

	for _, authorId := range authors {
		if err := ctx.Err(); err != nil {
			return err
		}
		subscribers, err := w.subscribers.AuthorSubscriberIDs(ctx, authorId)
		if err != nil {
			Logger.Log.Errorf("skip index warm-up of author %s: %v", authorId, err)
			continue
		}
		posts, err := w.posts.RecentEligibleByAuthor(ctx, authorId, since, recentPostLimit)
		if err != nil {
			Logger.Log.Errorf("skip index warm-up of author %s: %v", authorId, err)
			continue
		}
		push(subscribers, posts)
	}
	for _, projectId := range projects {
		if err := ctx.Err(); err != nil {
			return err
		}
		subscribers, err := w.subscribers.ProjectSubscriberIDs(ctx, projectId)
		if err != nil {
			Logger.Log.Errorf("skip index warm-up of project %s: %v", projectId, err)
			continue
		}
		posts, err := w.posts.RecentEligibleByProject(ctx, projectId, since, recentPostLimit)
		if err != nil {
			Logger.Log.Errorf("skip index warm-up of project %s: %v", projectId, err)
			continue
		}
		push(subscribers, posts)
	}
	return nil
}
