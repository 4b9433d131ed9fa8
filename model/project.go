package model

import (
	"time"

	"gorm.io/gorm"
)

// Project is a shared publishing space posts can belong to instead of a
// single author.
type Project struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt
	Name      string
}
