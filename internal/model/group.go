package model

import "time"

// Group is a reading circle for one book. (BookID, Name) is unique so that
// get-or-create by name is well defined.
type Group struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"not null;type:varchar(200);uniqueIndex:idx_group_book_name,priority:2" json:"name"`
	BookID       uint   `gorm:"not null;uniqueIndex:idx_group_book_name,priority:1" json:"book_id"`
	Book         *Book  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"book,omitempty"`
	ReadingGoals string `gorm:"type:text" json:"reading_goals"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Group) TableName() string {
	return "reading_groups"
}

// GroupMember 群组成员中间表, (group_id, user_id) 联合主键
type GroupMember struct {
	GroupID uint   `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	UserID  uint   `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Group   *Group `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	User    *User  `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
