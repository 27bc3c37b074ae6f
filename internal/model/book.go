package model

// Book is a catalog entry; deleting it removes every group reading it.
type Book struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"not null;type:varchar(200)" json:"title"`
	Author      string `gorm:"not null;type:varchar(100)" json:"author"`
	Genre       string `gorm:"not null;type:varchar(100)" json:"genre"`
	Description string `gorm:"type:text" json:"description"`
}

func (Book) TableName() string {
	return "books"
}
