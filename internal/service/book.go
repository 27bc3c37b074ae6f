package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/repository"
)

// BookRequest carries book fields; nil means absent, which matters for PATCH.
type BookRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Genre       *string `json:"genre"`
	Description *string `json:"description"`
}

// IBookService defines the interface for catalog operations
type IBookService interface {
	List(ctx context.Context) ([]*model.Book, error)
	Get(ctx context.Context, id uint) (*model.Book, error)
	Create(ctx context.Context, req *BookRequest) (*model.Book, error)
	Update(ctx context.Context, id uint, req *BookRequest) (*model.Book, error)
	Delete(ctx context.Context, id uint) error
}

// BookService implements the IBookService interface
type BookService struct {
	bookRepo repository.IBookRepository
}

// NewBookService creates a new IBookService instance
func NewBookService(bookRepo repository.IBookRepository) IBookService {
	return &BookService{bookRepo: bookRepo}
}

var bookLimits = map[string]int{"title": 200, "author": 100, "genre": 100}

// validate checks present fields; with partial false every field is required.
func (r *BookRequest) validate(partial bool) error {
	errs := fieldErrors{}
	fields := []struct {
		name  string
		value *string
	}{
		{"title", r.Title},
		{"author", r.Author},
		{"genre", r.Genre},
		{"description", r.Description},
	}
	for _, f := range fields {
		if f.value == nil {
			if !partial {
				errs[f.name] = "This field is required."
			}
			continue
		}
		errs.require(f.name, *f.value)
		if limit, ok := bookLimits[f.name]; ok && utf8.RuneCountInString(*f.value) > limit {
			errs[f.name] = fmt.Sprintf("Ensure this field has no more than %d characters.", limit)
		}
	}
	return errs.err()
}

func (r *BookRequest) apply(book *model.Book) {
	if r.Title != nil {
		book.Title = strings.TrimSpace(*r.Title)
	}
	if r.Author != nil {
		book.Author = strings.TrimSpace(*r.Author)
	}
	if r.Genre != nil {
		book.Genre = strings.TrimSpace(*r.Genre)
	}
	if r.Description != nil {
		book.Description = *r.Description
	}
}

func (s *BookService) List(ctx context.Context) ([]*model.Book, error) {
	books, err := s.bookRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

func (s *BookService) Get(ctx context.Context, id uint) (*model.Book, error) {
	book, err := s.bookRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return book, nil
}

func (s *BookService) Create(ctx context.Context, req *BookRequest) (*model.Book, error) {
	if err := req.validate(false); err != nil {
		return nil, err
	}
	book := &model.Book{}
	req.apply(book)
	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	return book, nil
}

// Update applies only the fields present in req
func (s *BookService) Update(ctx context.Context, id uint, req *BookRequest) (*model.Book, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.validate(true); err != nil {
		return nil, err
	}
	req.apply(book)
	if err := s.bookRepo.Update(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	return book, nil
}

// Delete removes the book and, by cascade, every group reading it
func (s *BookService) Delete(ctx context.Context, id uint) error {
	if err := s.bookRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}
