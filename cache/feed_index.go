package cache

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

/*

FeedIndex is the per-user bounded feed index: a sorted set per owning user,
member = post id, score = post timestamp in epoch seconds. It answers "give
me the next page of this user's feed" with a score range scan and supports
cursor pagination without an offset counter (offsets drift as new items
arrive, score cursors do not).

Inserts are idempotent and the index is trimmed to the highest maxEntries
scores immediately after every insert. Insert and trim run inside a single
MULTI/EXEC pipeline so concurrent fan-out writers for the same user cannot
lose a trim.

*/
type FeedIndex struct {
	inner      *redis.Client
	maxEntries int64
}

func NewFeedIndex(inner *redis.Client, maxEntries int) *FeedIndex {
	return &FeedIndex{inner: inner, maxEntries: int64(maxEntries)}
}

// AddIfAbsent inserts postId into ownerId's index with the given epoch-second
// score, then trims the lowest-scored tail beyond the index bound. Returns
// whether the post was newly inserted; re-inserting an existing post id is a
// no-op regardless of score.
func (f *FeedIndex) AddIfAbsent(ctx context.Context, ownerId string, postId string, timestamp int64) (bool, error) {
	key := feedKey(ownerId)
	var add *redis.IntCmd
	_, err := f.inner.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		add = pipe.ZAddNX(ctx, key, &redis.Z{Score: float64(timestamp), Member: postId})
		pipe.ZRemRangeByRank(ctx, key, 0, -(f.maxEntries + 1))
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "fail to insert post %s into feed index of %s", postId, ownerId)
	}
	return add.Val() == 1, nil
}

// Page returns up to pageSize post ids by descending score. Without a cursor
// it starts from the top of the index. With a cursor it returns entries whose
// score is strictly below the cursor post's score; an unknown cursor yields
// an empty page, which the caller must not read as end-of-feed.
func (f *FeedIndex) Page(ctx context.Context, ownerId string, cursorPostId *string, pageSize int) ([]string, error) {
	key := feedKey(ownerId)
	if cursorPostId == nil {
		ids, err := f.inner.ZRevRange(ctx, key, 0, int64(pageSize)-1).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "fail to page feed index of %s", ownerId)
		}
		return ids, nil
	}

	score, err := f.inner.ZScore(ctx, key, *cursorPostId).Result()
	if err == redis.Nil {
		// Cursor trimmed away or never indexed. Return an empty page and let
		// the caller decide how to restart.
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fail to resolve cursor %s in feed index of %s", *cursorPostId, ownerId)
	}

	ids, err := f.inner.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatFloat(score, 'f', -1, 64),
		Count: int64(pageSize),
	}).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "fail to page feed index of %s", ownerId)
	}
	return ids, nil
}

// Size returns the cardinality of one owner's index.
func (f *FeedIndex) Size(ctx context.Context, ownerId string) (int64, error) {
	return f.inner.ZCard(ctx, feedKey(ownerId)).Result()
}
