package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt
	Name      string
	AvatarUrl string
}
