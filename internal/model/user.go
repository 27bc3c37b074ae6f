package model

import (
	"time"
)

// User 用户模型
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;not null;type:varchar(150)" json:"username"`
	Email        string `gorm:"type:varchar(254)" json:"email"`
	PasswordHash string `gorm:"not null;type:varchar(255)" json:"-"`
	Role         Role   `gorm:"not null;type:varchar(10);default:member" json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
