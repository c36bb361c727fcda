package models

import "time"

type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"type:varchar(80);not null;uniqueIndex"`
	Email        string `gorm:"type:varchar(120);not null;uniqueIndex"`
	PasswordHash string `gorm:"type:varchar(255)"`
	IsAdmin      bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
