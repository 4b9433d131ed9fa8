// Package feed assembles feed pages from the per-user index, the post cache
// and the primary store.
package feed

import (
	"context"

	"github.com/pkg/errors"

	"github.com/postmux/postmux/cache"
	"github.com/postmux/postmux/model"
	"github.com/postmux/postmux/utils"
	Logger "github.com/postmux/postmux/utils/log"
)

// coldFeedBootstrapLimit bounds how many timeline posts are pulled from the
// primary store when a user's feed index turns out to be empty.
const coldFeedBootstrapLimit = 50

// PostSource is the slice of the primary store the assembler reads.
type PostSource interface {
	GetPost(ctx context.Context, id string) (*model.Post, error)
	FeedEligible(ctx context.Context, id string) (bool, error)
	TopComments(ctx context.Context, postId string, limit int) ([]model.Comment, error)
	RecentEligibleForSubscriber(ctx context.Context, userId string, limit int) ([]model.Post, error)
}

// CacheFailureNotifier receives a signal whenever a cache store read fails,
// so the resilience monitor can probe immediately instead of waiting for its
// next tick.
type CacheFailureNotifier interface {
	NotifyConnectionFailure()
}

// Page is one feed page. Cursor is the id of the last post returned and is
// passed back as the exclusive upper bound of the next page.
type Page struct {
	Posts   []*cache.PostEntry
	HasMore bool
	Cursor  *string
}

type Assembler struct {
	posts PostSource
	cache *cache.Store
	index *cache.FeedIndex

	maxPageSize  int
	commentCount int

	metrics  *utils.Metrics
	notifier CacheFailureNotifier
}

func NewAssembler(
	posts PostSource,
	cacheStore *cache.Store,
	index *cache.FeedIndex,
	maxPageSize int,
	commentCount int,
	metrics *utils.Metrics,
	notifier CacheFailureNotifier,
) *Assembler {
	return &Assembler{
		posts:        posts,
		cache:        cacheStore,
		index:        index,
		maxPageSize:  maxPageSize,
		commentCount: commentCount,
		metrics:      metrics,
		notifier:     notifier,
	}
}

// GetFeed returns one page of userId's feed, newest first. Individual posts
// that fail to resolve are dropped from the page, and an unavailable cache
// store degrades the whole page to a primary store read; only malformed
// pagination, a missing identity or a primary store failure produce errors.
func (a *Assembler) GetFeed(ctx context.Context, userId string, lastPostId *string, pageSize int) (*Page, error) {
	if userId == "" {
		return nil, errors.New("userId must not be empty")
	}
	if pageSize <= 0 {
		return nil, errors.New("pageSize must be > 0")
	}
	pageSize = utils.Min(pageSize, a.maxPageSize)

	ids, err := a.index.Page(ctx, userId, lastPostId, pageSize)
	if err != nil {
		// Index unavailable. Serve the page from the primary store instead of
		// failing the read.
		Logger.Log.Errorf("fail to page feed index for user %s, degrading to primary store: %v", userId, err)
		a.notifyCacheFailure()
		a.metrics.Incr("feed.degraded", nil)
		return a.pageFromPrimaryStore(ctx, userId, lastPostId, pageSize)
	}

	// An empty first page means the index was never populated (or trimmed to
	// nothing): bootstrap it from the user's timeline and retry once. An
	// empty page behind a cursor is just the end of what we have.
	if len(ids) == 0 && lastPostId == nil {
		a.bootstrapColdFeed(ctx, userId)
		ids, err = a.index.Page(ctx, userId, nil, pageSize)
		if err != nil {
			Logger.Log.Errorf("fail to page feed index for user %s after bootstrap, degrading to primary store: %v", userId, err)
			a.notifyCacheFailure()
			a.metrics.Incr("feed.degraded", nil)
			return a.pageFromPrimaryStore(ctx, userId, lastPostId, pageSize)
		}
	}

	posts := []*cache.PostEntry{}
	for _, id := range ids {
		entry := a.resolvePost(ctx, id)
		if entry == nil {
			continue
		}
		posts = append(posts, entry)
	}

	page := &Page{
		Posts:   posts,
		HasMore: len(posts) >= pageSize,
	}
	if len(posts) > 0 {
		page.Cursor = &posts[len(posts)-1].Id
	}
	return page, nil
}

// pageFromPrimaryStore serves a feed page straight from the primary store
// while the cache store is unavailable. It covers the same recency window as
// the cold-feed bootstrap; cursors pointing past that window yield an empty
// page rather than an error.
func (a *Assembler) pageFromPrimaryStore(ctx context.Context, userId string, lastPostId *string, pageSize int) (*Page, error) {
	recent, err := a.posts.RecentEligibleForSubscriber(ctx, userId, coldFeedBootstrapLimit)
	if err != nil {
		return nil, errors.Wrap(err, "fail to page feed from primary store")
	}

	start := 0
	if lastPostId != nil {
		start = len(recent)
		for i := range recent {
			if recent[i].Id == *lastPostId {
				start = i + 1
				break
			}
		}
	}

	posts := []*cache.PostEntry{}
	for i := start; i < len(recent) && len(posts) < pageSize; i++ {
		comments, err := a.posts.TopComments(ctx, recent[i].Id, a.commentCount)
		if err != nil {
			Logger.Log.Errorf("fail to load top comments of post %s: %v", recent[i].Id, err)
			comments = nil
		}
		posts = append(posts, cache.NewPostEntry(&recent[i], comments))
	}

	page := &Page{
		Posts:   posts,
		HasMore: start+len(posts) < len(recent),
	}
	if len(posts) > 0 {
		page.Cursor = &posts[len(posts)-1].Id
	}
	return page, nil
}

func (a *Assembler) notifyCacheFailure() {
	if a.notifier != nil {
		a.notifier.NotifyConnectionFailure()
	}
}

// bootstrapColdFeed pulls the most recent eligible posts of the user's
// subscribed authors and projects into the feed index. Failures are logged
// only; a cold feed that stays cold degrades to an empty page, not an error.
func (a *Assembler) bootstrapColdFeed(ctx context.Context, userId string) {
	posts, err := a.posts.RecentEligibleForSubscriber(ctx, userId, coldFeedBootstrapLimit)
	if err != nil {
		Logger.Log.Errorf("fail to bootstrap cold feed for user %s: %v", userId, err)
		return
	}
	for _, post := range posts {
		if _, err := a.index.AddIfAbsent(ctx, userId, post.Id, post.CreatedAt.Unix()); err != nil {
			Logger.Log.Errorf("fail to index post %s for user %s: %v", post.Id, userId, err)
		}
	}
}

// resolvePost turns a post id into a display entry via cache-aside, or nil
// when the post is gone, ineligible or unresolvable. A cache hit is accepted
// only after cross-checking the authoritative eligibility bit, since cached
// entries can be stale w.r.t. verification and deletion.
func (a *Assembler) resolvePost(ctx context.Context, postId string) *cache.PostEntry {
	entry, err := a.cache.GetPost(ctx, postId)
	if err != nil {
		// Cache store trouble degrades to a primary store read.
		Logger.Log.Errorf("fail to read cache for post %s: %v", postId, err)
		a.notifyCacheFailure()
		entry = nil
	}

	if entry != nil {
		eligible, err := a.posts.FeedEligible(ctx, postId)
		if err != nil || !eligible {
			return nil
		}
		a.metrics.Incr("feed.cache.hit", nil)
		return entry
	}
	a.metrics.Incr("feed.cache.miss", nil)

	post, err := a.posts.GetPost(ctx, postId)
	if err != nil || !post.FeedEligible() {
		return nil
	}

	comments, err := a.posts.TopComments(ctx, postId, a.commentCount)
	if err != nil {
		Logger.Log.Errorf("fail to load top comments of post %s: %v", postId, err)
		comments = nil
	}
	entry = cache.NewPostEntry(post, comments)
	if err := a.cache.SetPost(ctx, entry); err != nil {
		Logger.Log.Errorf("fail to write through post %s: %v", postId, err)
	}
	return entry
}
