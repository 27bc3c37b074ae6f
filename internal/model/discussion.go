package model

import "time"

// Discussion is one post in a chapter thread. ParentID nil marks a root.
type Discussion struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	ChapterID uint        `gorm:"not null;index" json:"chapter_id"`
	Chapter   *Chapter    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint        `gorm:"not null;index" json:"user_id"`
	User      *User       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	ParentID  *uint       `gorm:"index" json:"parent_id"`
	Parent    *Discussion `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Discussion) TableName() string {
	return "discussions"
}
