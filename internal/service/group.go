package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/repository"
	logger "github.com/Gopher0727/ReadingRoom/middleware/log"
	"github.com/Gopher0727/ReadingRoom/pkg/mq"
)

var ErrGroupExists = &ConflictError{Msg: "A group with this name already exists for the book."}

// JoinRequest is the body of the member get-or-create-and-join call
type JoinRequest struct {
	Name         string `json:"name"`
	ReadingGoals string `json:"reading_goals"`
}

type BookRef struct {
	ID uint `json:"id"`
}

type MemberRef struct {
	Username string `json:"username"`
}

// GroupRequest is the admin create/update body. On update any nil field is
// left unchanged and a present members list replaces the member set.
type GroupRequest struct {
	Name         *string      `json:"name"`
	ReadingGoals *string      `json:"reading_goals"`
	Book         *BookRef     `json:"book"`
	Members      *[]MemberRef `json:"members"`
}

// IGroupService defines the interface for reading group operations
type IGroupService interface {
	Join(ctx context.Context, userID, bookID uint, req *JoinRequest) (*JoinResponse, error)
	Get(ctx context.Context, id uint) (*GroupResponse, error)
	List(ctx context.Context) ([]*GroupResponse, error)
	ListByBook(ctx context.Context, bookID uint) ([]*GroupResponse, error)
	ListByMember(ctx context.Context, userID uint) ([]*GroupResponse, error)
	Create(ctx context.Context, req *GroupRequest) (*GroupResponse, error)
	Update(ctx context.Context, id uint, req *GroupRequest) (*GroupResponse, error)
	Delete(ctx context.Context, id uint) error
}

// GroupService implements the IGroupService interface
type GroupService struct {
	groupRepo repository.IGroupRepository
	bookRepo  repository.IBookRepository
	userRepo  repository.IUserRepository
	events    activity
	log       *logger.Logger
}

// NewGroupService creates a new IGroupService instance
func NewGroupService(
	groupRepo repository.IGroupRepository,
	bookRepo repository.IBookRepository,
	userRepo repository.IUserRepository,
	pub mq.Publisher,
	log *logger.Logger,
) IGroupService {
	events := newActivity(pub, log)
	return &GroupService{
		groupRepo: groupRepo,
		bookRepo:  bookRepo,
		userRepo:  userRepo,
		events:    events,
		log:       events.log,
	}
}

func (s *GroupService) findBook(ctx context.Context, id uint) (*model.Book, error) {
	book, err := s.bookRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return book, nil
}

// Join adds the user to the group named req.Name for the book, creating the
// group first when no such group exists. Concurrent joins for the same name
// converge on one group.
func (s *GroupService) Join(ctx context.Context, userID, bookID uint, req *JoinRequest) (*JoinResponse, error) {
	book, err := s.findBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrGroupNameRequired
	}

	group, created, err := s.groupRepo.JoinOrCreate(ctx, book.ID, name, req.ReadingGoals, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberExists) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to join group: %w", err)
	}
	group.Book = book

	if created {
		s.log.InfoContext(ctx, "group created",
			zap.Uint("group_id", group.ID),
			zap.Uint("book_id", book.ID),
			zap.Uint("user_id", userID),
		)
		s.events.emit(ctx, mq.Event{Type: mq.EventGroupCreated, GroupID: group.ID, UserID: userID})
	}
	s.log.InfoContext(ctx, "member joined group",
		zap.Uint("group_id", group.ID),
		zap.Uint("user_id", userID),
	)
	s.events.emit(ctx, mq.Event{Type: mq.EventGroupJoined, GroupID: group.ID, UserID: userID})

	resp, err := s.respond(ctx, group)
	if err != nil {
		return nil, err
	}
	return &JoinResponse{Group: resp, Created: created}, nil
}

func (s *GroupService) Get(ctx context.Context, id uint) (*GroupResponse, error) {
	group, err := s.groupRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	return s.respond(ctx, group)
}

func (s *GroupService) List(ctx context.Context) ([]*GroupResponse, error) {
	groups, err := s.groupRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return s.respondAll(ctx, groups)
}

func (s *GroupService) ListByBook(ctx context.Context, bookID uint) ([]*GroupResponse, error) {
	if bookID == 0 {
		return nil, ErrBookIDRequired
	}
	if _, err := s.findBook(ctx, bookID); err != nil {
		return nil, err
	}
	groups, err := s.groupRepo.ListByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return s.respondAll(ctx, groups)
}

// ListByMember lists the groups the user belongs to; empty when none
func (s *GroupService) ListByMember(ctx context.Context, userID uint) ([]*GroupResponse, error) {
	groups, err := s.groupRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return s.respondAll(ctx, groups)
}

// resolveMembers maps usernames to users, creating accounts for unknown names
func (s *GroupService) resolveMembers(ctx context.Context, refs []MemberRef) ([]uint, error) {
	ids := make([]uint, 0, len(refs))
	for _, ref := range refs {
		name := strings.TrimSpace(ref.Username)
		if name == "" {
			return nil, ErrMemberNameRequired
		}
		user, err := s.userRepo.FindOrCreateByUsername(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve member %q: %w", name, err)
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}

// Create is the admin path: the group is created with exactly the listed members
func (s *GroupService) Create(ctx context.Context, req *GroupRequest) (*GroupResponse, error) {
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, ErrGroupNameRequired
	}
	if req.Book == nil || req.Book.ID == 0 {
		return nil, Invalid("Book ID is required.")
	}
	book, err := s.findBook(ctx, req.Book.ID)
	if err != nil {
		return nil, err
	}

	var memberIDs []uint
	if req.Members != nil {
		if memberIDs, err = s.resolveMembers(ctx, *req.Members); err != nil {
			return nil, err
		}
	}

	group := &model.Group{Name: strings.TrimSpace(*req.Name), BookID: book.ID}
	if req.ReadingGoals != nil {
		group.ReadingGoals = *req.ReadingGoals
	}
	if err := s.groupRepo.Create(ctx, group, memberIDs); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrGroupExists
		}
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	group.Book = book

	s.log.InfoContext(ctx, "group created by admin",
		zap.Uint("group_id", group.ID),
		zap.Int("members", len(memberIDs)),
	)
	return s.respond(ctx, group)
}

func (s *GroupService) Update(ctx context.Context, id uint, req *GroupRequest) (*GroupResponse, error) {
	group, err := s.groupRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrGroupNameRequired
		}
		group.Name = name
	}
	if req.Book != nil && req.Book.ID != 0 {
		book, err := s.findBook(ctx, req.Book.ID)
		if err != nil {
			return nil, err
		}
		group.BookID = book.ID
		group.Book = book
	}
	if req.ReadingGoals != nil {
		group.ReadingGoals = *req.ReadingGoals
	}

	if req.Members != nil {
		memberIDs, err := s.resolveMembers(ctx, *req.Members)
		if err != nil {
			return nil, err
		}
		err = s.groupRepo.UpdateWithMembers(ctx, group, memberIDs)
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrGroupExists
			}
			return nil, fmt.Errorf("failed to update group: %w", err)
		}
		return s.respond(ctx, group)
	}

	if err := s.groupRepo.Update(ctx, group); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrGroupExists
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	return s.respond(ctx, group)
}

// Delete removes the group with its members, chapters and discussions
func (s *GroupService) Delete(ctx context.Context, id uint) error {
	if err := s.groupRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("failed to delete group: %w", err)
	}
	s.log.InfoContext(ctx, "group deleted", zap.Uint("group_id", id))
	return nil
}

func (s *GroupService) respond(ctx context.Context, group *model.Group) (*GroupResponse, error) {
	out, err := s.respondAll(ctx, []*model.Group{group})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *GroupService) respondAll(ctx context.Context, groups []*model.Group) ([]*GroupResponse, error) {
	ids := make([]uint, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	members, err := s.groupRepo.ListMembers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	out := make([]*GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, newGroupResponse(g, members[g.ID]))
	}
	return out, nil
}
