package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/ReadingRoom/internal/model"
)

// IChapterRepository defines the interface for chapter and read-mark operations
type IChapterRepository interface {
	Create(ctx context.Context, chapter *model.Chapter) error
	FindByID(ctx context.Context, id uint) (*model.Chapter, error)
	FindInGroup(ctx context.Context, groupID, chapterID uint) (*model.Chapter, error)
	List(ctx context.Context) ([]*model.Chapter, error)
	ListByGroups(ctx context.Context, groupIDs []uint) ([]*model.Chapter, error)
	Update(ctx context.Context, chapter *model.Chapter) error
	Delete(ctx context.Context, id uint) error

	SetReaders(ctx context.Context, chapterID uint, userIDs []uint) error
	HasReader(ctx context.Context, chapterID, userID uint) (bool, error)
	AddReader(ctx context.Context, chapterID, userID uint) error
	RemoveReader(ctx context.Context, chapterID, userID uint) error
	ListReaders(ctx context.Context, chapterIDs []uint) (map[uint][]*model.User, error)
}

// ChapterRepository implements IChapterRepository interface
type ChapterRepository struct {
	db *gorm.DB
}

// NewChapterRepository creates a new IChapterRepository instance
func NewChapterRepository(db *gorm.DB) IChapterRepository {
	return &ChapterRepository{db: db}
}

func (r *ChapterRepository) Create(ctx context.Context, chapter *model.Chapter) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(chapter).Error
}

func (r *ChapterRepository) FindByID(ctx context.Context, id uint) (*model.Chapter, error) {
	var chapter model.Chapter
	if err := r.db.WithContext(ctx).First(&chapter, id).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

// FindInGroup finds a chapter only if it belongs to groupID
func (r *ChapterRepository) FindInGroup(ctx context.Context, groupID, chapterID uint) (*model.Chapter, error) {
	var chapter model.Chapter
	err := r.db.WithContext(ctx).
		Where("id = ? AND group_id = ?", chapterID, groupID).
		First(&chapter).Error
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (r *ChapterRepository) List(ctx context.Context) ([]*model.Chapter, error) {
	chapters := []*model.Chapter{}
	err := r.db.WithContext(ctx).Order("id").Find(&chapters).Error
	return chapters, err
}

// ListByGroups lists the chapters of the given groups, ordered by id
func (r *ChapterRepository) ListByGroups(ctx context.Context, groupIDs []uint) ([]*model.Chapter, error) {
	chapters := []*model.Chapter{}
	if len(groupIDs) == 0 {
		return chapters, nil
	}
	err := r.db.WithContext(ctx).Where("group_id IN ?", groupIDs).Order("id").Find(&chapters).Error
	return chapters, err
}

func (r *ChapterRepository) Update(ctx context.Context, chapter *model.Chapter) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(chapter).Error
}

// Delete removes the chapter; read marks and discussions cascade.
func (r *ChapterRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Chapter{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetReaders makes userIDs the exact read-set of the chapter
func (r *ChapterRepository) SetReaders(ctx context.Context, chapterID uint, userIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chapter_id = ?", chapterID).Delete(&model.ChapterRead{}).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}
		rows := make([]model.ChapterRead, 0, len(userIDs))
		for _, id := range userIDs {
			rows = append(rows, model.ChapterRead{ChapterID: chapterID, UserID: id})
		}
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

func (r *ChapterRepository) HasReader(ctx context.Context, chapterID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ChapterRead{}).
		Where("chapter_id = ? AND user_id = ?", chapterID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddReader marks the chapter read; marking twice is a no-op
func (r *ChapterRepository) AddReader(ctx context.Context, chapterID, userID uint) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ChapterRead{ChapterID: chapterID, UserID: userID}).Error
}

func (r *ChapterRepository) RemoveReader(ctx context.Context, chapterID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("chapter_id = ? AND user_id = ?", chapterID, userID).
		Delete(&model.ChapterRead{}).Error
}

// ListReaders returns the read-set of each chapter, ordered by user id
func (r *ChapterRepository) ListReaders(ctx context.Context, chapterIDs []uint) (map[uint][]*model.User, error) {
	out := make(map[uint][]*model.User, len(chapterIDs))
	if len(chapterIDs) == 0 {
		return out, nil
	}

	var rows []model.ChapterRead
	err := r.db.WithContext(ctx).Preload("User").
		Where("chapter_id IN ?", chapterIDs).
		Order("user_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.User != nil {
			out[row.ChapterID] = append(out[row.ChapterID], row.User)
		}
	}
	return out, nil
}
