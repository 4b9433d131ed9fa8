package model

import (
	"time"

	"gorm.io/gorm"
)

/*

UserAuthorSubscription is a "many-to-many" relation of a user following an
author's posts

UserID: subscribing user id
AuthorID: followed author id
CreatedAt: time when relation is created
DeletedAt: time when relation is deleted

*/
type UserAuthorSubscription struct {
	UserID    string `gorm:"primaryKey"`
	AuthorID  string `gorm:"primaryKey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt
}

/*

UserProjectSubscription is a "many-to-many" relation of a user following a
project's posts

UserID: subscribing user id
ProjectID: followed project id
CreatedAt: time when relation is created
DeletedAt: time when relation is deleted

*/
type UserProjectSubscription struct {
	UserID    string `gorm:"primaryKey"`
	ProjectID string `gorm:"primaryKey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt
}
