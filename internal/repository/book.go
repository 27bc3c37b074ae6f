package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/ReadingRoom/internal/model"
)

// IBookRepository defines the interface for book data operations
type IBookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	FindByID(ctx context.Context, id uint) (*model.Book, error)
	List(ctx context.Context) ([]*model.Book, error)
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id uint) error
}

// BookRepository implements IBookRepository interface
type BookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new IBookRepository instance
func NewBookRepository(db *gorm.DB) IBookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) Create(ctx context.Context, book *model.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

func (r *BookRepository) FindByID(ctx context.Context, id uint) (*model.Book, error) {
	var book model.Book
	if err := r.db.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *BookRepository) List(ctx context.Context) ([]*model.Book, error) {
	books := []*model.Book{}
	err := r.db.WithContext(ctx).Order("id").Find(&books).Error
	return books, err
}

func (r *BookRepository) Update(ctx context.Context, book *model.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

// Delete removes the book; groups, chapters and discussions go with it via FK cascade.
func (r *BookRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Book{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
