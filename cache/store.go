// Package cache holds the redis-backed read side of the feed subsystem: the
// per-post and per-user value caches and the per-user feed index.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// EntryTTL bounds the lifetime of every value cache entry. Entries are never
// deleted, they expire.
const EntryTTL = 24 * time.Hour

const (
	postKeyPrefix = "post__"
	userKeyPrefix = "user__"
	feedKeyPrefix = "feed__"
)

func postKey(postId string) string {
	return postKeyPrefix + postId
}

func userKey(userId string) string {
	return userKeyPrefix + userId
}

func feedKey(userId string) string {
	return feedKeyPrefix + userId
}

// Store wraps a redis client with the post and user-profile value caches.
// All calls are bounded by the client-level timeouts configured on the inner
// client; the store itself never blocks indefinitely.
type Store struct {
	inner *redis.Client
}

func NewStore(inner *redis.Client) *Store {
	return &Store{inner: inner}
}

// GetPost returns the cached entry, or nil without error on a miss.
func (s *Store) GetPost(ctx context.Context, postId string) (*PostEntry, error) {
	raw, err := s.inner.Get(ctx, postKey(postId)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fail to read post cache entry %s", postId)
	}
	var entry PostEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, errors.Wrapf(err, "corrupted post cache entry %s", postId)
	}
	return &entry, nil
}

func (s *Store) SetPost(ctx context.Context, entry *PostEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrapf(err, "fail to encode post cache entry %s", entry.Id)
	}
	return s.inner.Set(ctx, postKey(entry.Id), raw, EntryTTL).Err()
}

// GetUserProfile returns the cached profile, or nil without error on a miss.
func (s *Store) GetUserProfile(ctx context.Context, userId string) (*UserProfileEntry, error) {
	raw, err := s.inner.Get(ctx, userKey(userId)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fail to read user profile entry %s", userId)
	}
	var entry UserProfileEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, errors.Wrapf(err, "corrupted user profile entry %s", userId)
	}
	return &entry, nil
}

func (s *Store) SetUserProfile(ctx context.Context, entry *UserProfileEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrapf(err, "fail to encode user profile entry %s", entry.Id)
	}
	return s.inner.Set(ctx, userKey(entry.Id), raw, EntryTTL).Err()
}

// Ping probes the cache store. Used by the resilience monitor.
func (s *Store) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx).Err()
}

// Size returns the total number of keys in the cache store. A size of zero
// right after a successful ping means the store came back empty and needs
// warm-up.
func (s *Store) Size(ctx context.Context) (int64, error) {
	n, err := s.inner.DBSize(ctx).Result()
	if err != nil {
		return 0, errors.Wrap(err, "fail to size cache store")
	}
	return n, nil
}
