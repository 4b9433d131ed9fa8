package model

import "time"

/*

Comment belongs to a single Post. The integer primary key is monotonically
increasing, so "highest id" doubles as "most recent" when selecting the
embedded comment set for the post cache.

Id: auto-increment primary key
PostID: the commented post, "belongs-to" relation
AuthorID: commenting user
Verified: set by the moderation pipeline; only verified comments are
	eligible for the cached top comment set

*/
type Comment struct {
	Id        int64 `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time
	UpdatedAt time.Time
	PostID    string `gorm:"index"`
	Post      *Post  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	AuthorID  string
	Content   string
	Verified  bool
}
