package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/repository"
	logger "github.com/Gopher0727/ReadingRoom/middleware/log"
	"github.com/Gopher0727/ReadingRoom/pkg/mq"
)

// ChapterRequest is the admin create/update body; nil fields are absent.
type ChapterRequest struct {
	Group    *uint   `json:"group"`
	Title    *string `json:"title"`
	Deadline *string `json:"deadline"`
	IsRead   *[]uint `json:"is_read"`
}

// ToggleResponse is returned by the read-toggle endpoint
type ToggleResponse struct {
	Message string           `json:"message"`
	Chapter *ChapterResponse `json:"chapter"`
}

// IChapterService defines the interface for chapter operations
type IChapterService interface {
	Toggle(ctx context.Context, userID, groupID, chapterID uint) (*ToggleResponse, error)
	ListForGroup(ctx context.Context, userID, groupID uint) ([]*ChapterResponse, error)
	GetInGroup(ctx context.Context, groupID, chapterID uint) (*ChapterResponse, error)

	List(ctx context.Context) ([]*ChapterResponse, error)
	Get(ctx context.Context, id uint) (*ChapterResponse, error)
	Create(ctx context.Context, req *ChapterRequest) (*ChapterResponse, error)
	Update(ctx context.Context, id uint, req *ChapterRequest) (*ChapterResponse, error)
	Delete(ctx context.Context, id uint) error
}

// ChapterService implements the IChapterService interface
type ChapterService struct {
	chapterRepo repository.IChapterRepository
	groupRepo   repository.IGroupRepository
	userRepo    repository.IUserRepository
	events      activity
	log         *logger.Logger
}

// NewChapterService creates a new IChapterService instance
func NewChapterService(
	chapterRepo repository.IChapterRepository,
	groupRepo repository.IGroupRepository,
	userRepo repository.IUserRepository,
	pub mq.Publisher,
	log *logger.Logger,
) IChapterService {
	events := newActivity(pub, log)
	return &ChapterService{
		chapterRepo: chapterRepo,
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		events:      events,
		log:         events.log,
	}
}

// memberGroup loads the group and checks that userID belongs to it. missing
// is returned when the group does not exist.
func (s *ChapterService) memberGroup(ctx context.Context, userID, groupID uint, missing error) (*model.Group, error) {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, missing
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	ok, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !ok {
		return nil, ErrNotGroupMember
	}
	return group, nil
}

// Toggle flips the user's read mark on a chapter of one of their groups
func (s *ChapterService) Toggle(ctx context.Context, userID, groupID, chapterID uint) (*ToggleResponse, error) {
	if _, err := s.memberGroup(ctx, userID, groupID, ErrNoSuchGroup); err != nil {
		return nil, err
	}
	chapter, err := s.chapterRepo.FindInGroup(ctx, groupID, chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChapterNotInGroup
		}
		return nil, fmt.Errorf("failed to find chapter: %w", err)
	}

	read, err := s.chapterRepo.HasReader(ctx, chapter.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check read mark: %w", err)
	}

	action, eventType := "read", mq.EventChapterRead
	if read {
		action, eventType = "unread", mq.EventChapterUnread
		err = s.chapterRepo.RemoveReader(ctx, chapter.ID, userID)
	} else {
		err = s.chapterRepo.AddReader(ctx, chapter.ID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark chapter %s: %w", action, err)
	}

	s.log.InfoContext(ctx, "chapter toggled",
		zap.Uint("chapter_id", chapter.ID),
		zap.Uint("user_id", userID),
		zap.String("action", action),
	)
	s.events.emit(ctx, mq.Event{Type: eventType, GroupID: groupID, UserID: userID, ChapterID: chapter.ID})

	resp, err := s.respond(ctx, chapter)
	if err != nil {
		return nil, err
	}
	return &ToggleResponse{
		Message: fmt.Sprintf("Chapter successfully marked as %s.", action),
		Chapter: resp,
	}, nil
}

func (s *ChapterService) ListForGroup(ctx context.Context, userID, groupID uint) ([]*ChapterResponse, error) {
	if _, err := s.memberGroup(ctx, userID, groupID, ErrGroupNotFound); err != nil {
		return nil, err
	}
	chapters, err := s.chapterRepo.ListByGroups(ctx, []uint{groupID})
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return s.respondAll(ctx, chapters)
}

func (s *ChapterService) GetInGroup(ctx context.Context, groupID, chapterID uint) (*ChapterResponse, error) {
	chapter, err := s.chapterRepo.FindInGroup(ctx, groupID, chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChapterNotFound
		}
		return nil, fmt.Errorf("failed to find chapter: %w", err)
	}
	return s.respond(ctx, chapter)
}

func (s *ChapterService) List(ctx context.Context) ([]*ChapterResponse, error) {
	chapters, err := s.chapterRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return s.respondAll(ctx, chapters)
}

func (s *ChapterService) Get(ctx context.Context, id uint) (*ChapterResponse, error) {
	chapter, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, chapter)
}

func (s *ChapterService) find(ctx context.Context, id uint) (*model.Chapter, error) {
	chapter, err := s.chapterRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChapterNotFound
		}
		return nil, fmt.Errorf("failed to find chapter: %w", err)
	}
	return chapter, nil
}

// ParseDeadline parses a calendar date as midnight UTC
func ParseDeadline(raw string) (datatypes.Date, error) {
	t, err := time.ParseInLocation(DeadlineLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return datatypes.Date{}, err
	}
	return datatypes.Date(t), nil
}

// apply validates the present fields and copies them onto chapter
func (s *ChapterService) apply(ctx context.Context, chapter *model.Chapter, req *ChapterRequest, partial bool) error {
	errs := fieldErrors{}

	switch {
	case req.Group != nil:
		if _, err := s.groupRepo.FindByID(ctx, *req.Group); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to find group: %w", err)
			}
			errs["group"] = fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *req.Group)
		} else {
			chapter.GroupID = *req.Group
		}
	case !partial:
		errs["group"] = "This field is required."
	}

	switch {
	case req.Title != nil:
		title := strings.TrimSpace(*req.Title)
		switch {
		case title == "":
			errs["title"] = "This field may not be blank."
		case utf8.RuneCountInString(title) > 200:
			errs["title"] = "Ensure this field has no more than 200 characters."
		default:
			chapter.Title = title
		}
	case !partial:
		errs["title"] = "This field is required."
	}

	switch {
	case req.Deadline != nil:
		d, err := ParseDeadline(*req.Deadline)
		if err != nil {
			errs["deadline"] = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
		} else {
			chapter.Deadline = d
		}
	case !partial:
		errs["deadline"] = "This field is required."
	}

	return errs.err()
}

// Create writes the chapter and then its read-set. The read-set is taken as
// given, restricted only to existing users.
func (s *ChapterService) Create(ctx context.Context, req *ChapterRequest) (*ChapterResponse, error) {
	chapter := &model.Chapter{}
	if err := s.apply(ctx, chapter, req, false); err != nil {
		return nil, err
	}
	if err := s.chapterRepo.Create(ctx, chapter); err != nil {
		return nil, fmt.Errorf("failed to create chapter: %w", err)
	}

	if req.IsRead != nil {
		users, err := s.userRepo.FindByIDs(ctx, *req.IsRead)
		if err != nil {
			return nil, fmt.Errorf("failed to find readers: %w", err)
		}
		if err := s.chapterRepo.SetReaders(ctx, chapter.ID, ids(users)); err != nil {
			return nil, fmt.Errorf("failed to set readers: %w", err)
		}
	}

	s.log.InfoContext(ctx, "chapter created",
		zap.Uint("chapter_id", chapter.ID),
		zap.Uint("group_id", chapter.GroupID),
	)
	return s.respond(ctx, chapter)
}

// Update applies the present fields. A present is_read replaces the read-set
// with those listed users who are members of the chapter's group.
func (s *ChapterService) Update(ctx context.Context, id uint, req *ChapterRequest) (*ChapterResponse, error) {
	chapter, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, chapter, req, true); err != nil {
		return nil, err
	}
	if err := s.chapterRepo.Update(ctx, chapter); err != nil {
		return nil, fmt.Errorf("failed to update chapter: %w", err)
	}

	if req.IsRead != nil {
		members, err := s.groupRepo.ListMembers(ctx, []uint{chapter.GroupID})
		if err != nil {
			return nil, fmt.Errorf("failed to list members: %w", err)
		}
		wanted := make(map[uint]bool, len(*req.IsRead))
		for _, uid := range *req.IsRead {
			wanted[uid] = true
		}
		readers := []uint{}
		for _, m := range members[chapter.GroupID] {
			if wanted[m.ID] {
				readers = append(readers, m.ID)
			}
		}
		if err := s.chapterRepo.SetReaders(ctx, chapter.ID, readers); err != nil {
			return nil, fmt.Errorf("failed to set readers: %w", err)
		}
	}
	return s.respond(ctx, chapter)
}

func (s *ChapterService) Delete(ctx context.Context, id uint) error {
	if err := s.chapterRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChapterNotFound
		}
		return fmt.Errorf("failed to delete chapter: %w", err)
	}
	return nil
}

func (s *ChapterService) respond(ctx context.Context, chapter *model.Chapter) (*ChapterResponse, error) {
	out, err := s.respondAll(ctx, []*model.Chapter{chapter})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *ChapterService) respondAll(ctx context.Context, chapters []*model.Chapter) ([]*ChapterResponse, error) {
	chapterIDs := make([]uint, 0, len(chapters))
	for _, c := range chapters {
		chapterIDs = append(chapterIDs, c.ID)
	}
	readers, err := s.chapterRepo.ListReaders(ctx, chapterIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	out := make([]*ChapterResponse, 0, len(chapters))
	for _, c := range chapters {
		out = append(out, newChapterResponse(c, readers[c.ID]))
	}
	return out, nil
}

func ids(users []*model.User) []uint {
	out := make([]uint, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}
