package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/ReadingRoom/internal/model"
)

// IDiscussionRepository defines the interface for discussion data operations
type IDiscussionRepository interface {
	Create(ctx context.Context, d *model.Discussion) error
	FindInChapter(ctx context.Context, chapterID, id uint) (*model.Discussion, error)
	ListByChapter(ctx context.Context, chapterID uint) ([]*model.Discussion, error)
}

// DiscussionRepository implements IDiscussionRepository interface
type DiscussionRepository struct {
	db *gorm.DB
}

// NewDiscussionRepository creates a new IDiscussionRepository instance
func NewDiscussionRepository(db *gorm.DB) IDiscussionRepository {
	return &DiscussionRepository{db: db}
}

// Create inserts the post and loads its author for serialization
func (r *DiscussionRepository) Create(ctx context.Context, d *model.Discussion) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(d).Error; err != nil {
		return err
	}
	var author model.User
	if err := db.First(&author, d.UserID).Error; err != nil {
		return err
	}
	d.User = &author
	return nil
}

// FindInChapter finds a discussion only if it belongs to chapterID
func (r *DiscussionRepository) FindInChapter(ctx context.Context, chapterID, id uint) (*model.Discussion, error) {
	var d model.Discussion
	err := r.db.WithContext(ctx).
		Where("id = ? AND chapter_id = ?", id, chapterID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByChapter loads every post of the chapter with its author in one pass
func (r *DiscussionRepository) ListByChapter(ctx context.Context, chapterID uint) ([]*model.Discussion, error) {
	posts := []*model.Discussion{}
	err := r.db.WithContext(ctx).Preload("User").
		Where("chapter_id = ?", chapterID).
		Order("created_at, id").
		Find(&posts).Error
	return posts, err
}
