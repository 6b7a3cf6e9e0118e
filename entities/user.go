package entities

import "time"

type User struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	Username   string    `json:"username" gorm:"type:varchar(50);not null;uniqueIndex"`
	Email      string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Credential string    `json:"-" gorm:"type:varchar(255);not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string {
	return "users"
}
