// Package fanout consumes post, comment and like events and propagates them
// into the cache store and the per-user feed indexes.
package fanout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/postmux/postmux/cache"
	"github.com/postmux/postmux/model"
	"github.com/postmux/postmux/store"
	"github.com/postmux/postmux/utils"
	Logger "github.com/postmux/postmux/utils/log"
)

// Event topics this service consumes and produces.
const (
	TopicNewPosts    = "new-posts"
	TopicNewComments = "new-comments"
	TopicNewLikes    = "new-likes"
	TopicFeedUpdates = "feed-updates"
)

// PostWriter is the slice of the primary store the dispatcher needs.
type PostWriter interface {
	GetPost(ctx context.Context, id string) (*model.Post, error)
	CreatePostIfAbsent(ctx context.Context, post *model.Post) error
	TopComments(ctx context.Context, postId string, limit int) ([]model.Comment, error)
	IncrementLikesCount(ctx context.Context, postId string, delta int64) error
	IncrementCommentsCount(ctx context.Context, postId string, delta int64) error
}

// SubscriberSource resolves fan-out targets.
type SubscriberSource interface {
	AuthorSubscriberIDs(ctx context.Context, authorId string) ([]string, error)
	ProjectSubscriberIDs(ctx context.Context, projectId string) ([]string, error)
}

/*

Dispatcher handles the write-time fan-out: a published post is pushed into
every subscriber's feed index in bounded batches, trading write
amplification for O(1) read latency. Comment and like events only touch the
cached post entry and its primary-store counters, never the feed index.

Handlers return an error iff the event must be redelivered; all handlers are
safe to re-process.

*/
type Dispatcher struct {
	posts       PostWriter
	subscribers SubscriberSource
	cache       *cache.Store
	index       *cache.FeedIndex
	publisher   message.Publisher

	batchSize    int
	commentCount int

	metrics *utils.Metrics
}

func NewDispatcher(
	posts PostWriter,
	subscribers SubscriberSource,
	cacheStore *cache.Store,
	index *cache.FeedIndex,
	publisher message.Publisher,
	batchSize int,
	commentCount int,
	metrics *utils.Metrics,
) *Dispatcher {
	return &Dispatcher{
		posts:        posts,
		subscribers:  subscribers,
		cache:        cacheStore,
		index:        index,
		publisher:    publisher,
		batchSize:    batchSize,
		commentCount: commentCount,
		metrics:      metrics,
	}
}

// HandleNewPost persists the post if needed, refreshes its cache entry and
// fans it out to every subscriber's feed index in batches. A post that turns
// out not to be feed-eligible is skipped successfully.
func (d *Dispatcher) HandleNewPost(ctx context.Context, ev *model.NewPostEvent) error {
	row := &model.Post{
		Id:         ev.PostId,
		CreatedAt:  ev.PublishedAt,
		AuthorID:   ev.AuthorId,
		ProjectID:  ev.ProjectId,
		Content:    ev.Content,
		Published:  true,
		Verified:   true,
		Visibility: model.VisibilityPublic,
	}
	if err := d.posts.CreatePostIfAbsent(ctx, row); err != nil {
		return errors.Wrap(err, "fail to persist post")
	}

	// Re-read the authoritative row: the post may pre-exist with a different
	// verification or deletion state than the event implies.
	post, err := d.posts.GetPost(ctx, ev.PostId)
	if errors.Is(err, store.ErrNotFound) {
		// A soft-deleted post reads back as not found; nothing to fan out.
		Logger.Log.Infof("post %s gone before fan-out, skipping", ev.PostId)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "fail to reload post")
	}
	if !post.FeedEligible() {
		Logger.Log.Infof("post %s not feed-eligible, skipping fan-out", ev.PostId)
		return nil
	}

	// Fresh entry with zeroed counters and an empty comment set.
	if err := d.cache.SetPost(ctx, cache.NewPostEntry(post, nil)); err != nil {
		Logger.Log.Errorf("fail to cache post %s: %v", post.Id, err)
	}

	subscribers, err := d.resolveSubscribers(ctx, post)
	if err != nil {
		return errors.Wrap(err, "fail to resolve subscribers")
	}

	score := ev.PublishedAt.Unix()
	for _, batch := range utils.BatchStrings(subscribers, d.batchSize) {
		for _, userId := range batch {
			if _, err := d.index.AddIfAbsent(ctx, userId, post.Id, score); err != nil {
				// One subscriber's failure never aborts the batch.
				Logger.Log.Errorf("fail to fan out post %s to user %s: %v", post.Id, userId, err)
			}
		}
		d.metrics.Incr("fanout.batch", nil)
		d.publishFeedUpdate(post, batch)
	}

	// Re-emit for secondary consumers now that the post is persisted. The
	// publisher targets the outbound stream, not the stream this service
	// consumes, so the event cannot loop back into our own handler.
	d.publishEvent(TopicNewPosts, ev)
	return nil
}

// HandleNewComment bumps the comment counter atomically and rewrites the
// cached entry. Verified comments additionally enter the embedded top
// comment set; unverified ones only move the counter.
func (d *Dispatcher) HandleNewComment(ctx context.Context, ev *model.NewCommentEvent) error {
	if err := d.posts.IncrementCommentsCount(ctx, ev.PostId, 1); err != nil {
		return errors.Wrap(err, "fail to bump comment counter")
	}
	return d.refreshPostEntry(ctx, ev.PostId, func(entry *cache.PostEntry, rebuilt bool) {
		if !rebuilt {
			entry.CommentsCount++
		}
		if ev.Verified {
			entry.MergeComment(cache.CommentEntry{
				Id:        ev.Id,
				AuthorId:  ev.AuthorId,
				Content:   ev.Content,
				CreatedAt: ev.CreatedAt,
				UpdatedAt: ev.UpdatedAt,
			}, d.commentCount)
		}
	})
}

// HandleNewLike adjusts the like counter for a LIKE or UNLIKE and rewrites
// the cached entry. Counters are clamped at zero on both sides.
func (d *Dispatcher) HandleNewLike(ctx context.Context, ev *model.NewLikeEvent) error {
	var delta int64 = 1
	if ev.Type == model.LikeTypeUnlike {
		delta = -1
	}
	if err := d.posts.IncrementLikesCount(ctx, ev.PostId, delta); err != nil {
		return errors.Wrap(err, "fail to bump like counter")
	}
	return d.refreshPostEntry(ctx, ev.PostId, func(entry *cache.PostEntry, rebuilt bool) {
		if rebuilt {
			return
		}
		entry.LikesCount += delta
		if entry.LikesCount < 0 {
			entry.LikesCount = 0
		}
	})
}

func (d *Dispatcher) resolveSubscribers(ctx context.Context, post *model.Post) ([]string, error) {
	var authorSubs, projectSubs []string
	var err error
	if post.AuthorID != nil {
		if authorSubs, err = d.subscribers.AuthorSubscriberIDs(ctx, *post.AuthorID); err != nil {
			return nil, err
		}
	}
	if post.ProjectID != nil {
		if projectSubs, err = d.subscribers.ProjectSubscriberIDs(ctx, *post.ProjectID); err != nil {
			return nil, err
		}
	}
	return utils.UniqueStrings(authorSubs, projectSubs), nil
}

// refreshPostEntry applies mutate to the cached entry, rebuilding the entry
// from the primary store on a miss. The rebuilt flag tells mutate whether
// counters are already authoritative. Cache write failures are logged but
// not propagated: redelivering the event would double-apply the counter
// increment, while the next mutation or read-miss rewrites the entry anyway.
func (d *Dispatcher) refreshPostEntry(ctx context.Context, postId string, mutate func(entry *cache.PostEntry, rebuilt bool)) error {
	entry, err := d.cache.GetPost(ctx, postId)
	if err != nil {
		Logger.Log.Errorf("fail to read cache for post %s: %v", postId, err)
		entry = nil
	}

	rebuilt := false
	if entry == nil {
		post, err := d.posts.GetPost(ctx, postId)
		if err != nil || !post.FeedEligible() {
			// Nothing worth caching.
			return nil
		}
		comments, err := d.posts.TopComments(ctx, postId, d.commentCount)
		if err != nil {
			Logger.Log.Errorf("fail to load top comments of post %s: %v", postId, err)
			comments = nil
		}
		entry = cache.NewPostEntry(post, comments)
		rebuilt = true
	}

	mutate(entry, rebuilt)
	if err := d.cache.SetPost(ctx, entry); err != nil {
		Logger.Log.Errorf("fail to rewrite cache entry of post %s: %v", postId, err)
	}
	return nil
}

func (d *Dispatcher) publishFeedUpdate(post *model.Post, batch []string) {
	authorId := ""
	if post.AuthorID != nil {
		authorId = *post.AuthorID
	}
	d.publishEvent(TopicFeedUpdates, &model.FeedUpdateEvent{
		PostId:        post.Id,
		AuthorId:      authorId,
		SubscriberIds: batch,
	})
}

func (d *Dispatcher) publishEvent(topic string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		Logger.Log.Errorf("fail to encode %s event: %v", topic, err)
		return
	}
	msg := message.NewMessage(uuid.New().String(), raw)
	msg.Metadata.Set("publishedAt", time.Now().UTC().Format(time.RFC3339))
	if err := d.publisher.Publish(topic, msg); err != nil {
		Logger.Log.Errorf("fail to publish %s event: %v", topic, err)
	}
}
