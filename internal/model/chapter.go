package model

import (
	"time"

	"gorm.io/datatypes"
)

type Chapter struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	GroupID  uint           `gorm:"not null;index" json:"group_id"`
	Group    *Group         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title    string         `gorm:"not null;type:varchar(200)" json:"title"`
	Deadline datatypes.Date `gorm:"not null" json:"deadline"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// DeadlineDate returns the deadline as midnight UTC.
func (c *Chapter) DeadlineDate() time.Time {
	y, m, d := time.Time(c.Deadline).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ChapterRead 章节已读标记, (chapter_id, user_id) 联合主键
type ChapterRead struct {
	ChapterID uint     `gorm:"primaryKey;autoIncrement:false" json:"chapter_id"`
	UserID    uint     `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Chapter   *Chapter `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	User      *User    `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	ReadAt time.Time `gorm:"autoCreateTime" json:"read_at"`
}

func (ChapterRead) TableName() string {
	return "chapter_reads"
}
