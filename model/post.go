package model

import (
	"time"

	"gorm.io/gorm"
)

// Post visibility values. Only PUBLIC is interpreted by the feed subsystem
// today, the rest are carried for the owning CRUD application.
const (
	VisibilityPublic  = "PUBLIC"
	VisibilityPrivate = "PRIVATE"
)

/*

Post is a single piece of content authored either by a user or on behalf of
a project. The row is owned by the CRUD application; this service reads it
and atomically bumps its counters.

Id: primary key
CreatedAt: time when entity is created
DeletedAt: time when entity is soft-deleted

AuthorID: author user, mutually exclusive with ProjectID
ProjectID: owning project, mutually exclusive with AuthorID
Content: post's content in plain text
Published: set once the author explicitly publishes the draft
Verified: set by the asynchronous moderation pipeline; gates feed placement
Visibility: PUBLIC etc., independent of feed eligibility
ScheduledAt: optional deferred publication time

LikesCount / CommentsCount: denormalized counters, incremented atomically

*/
type Post struct {
	Id            string `gorm:"primaryKey"`
	CreatedAt     time.Time
	DeletedAt     gorm.DeletedAt
	AuthorID      *string  `gorm:"index"`
	Author        *User    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	ProjectID     *string  `gorm:"index"`
	Project       *Project `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Content       string
	Published     bool
	Verified      bool
	Visibility    string
	ScheduledAt   *time.Time
	LikesCount    int64
	CommentsCount int64
}

// FeedEligible reports whether the post may be placed into subscriber feeds.
// Verification is a distinct gate from public visibility: an unlisted but
// verified post still flows to its subscribers. Soft-deleted rows never reach
// this check since gorm excludes them from queries.
func (p *Post) FeedEligible() bool {
	return p.Verified
}
