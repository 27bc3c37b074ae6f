package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/repository"
	"github.com/Gopher0727/ReadingRoom/internal/thread"
	logger "github.com/Gopher0727/ReadingRoom/middleware/log"
	"github.com/Gopher0727/ReadingRoom/pkg/mq"
)

// PostRequest is the body of a new discussion post
type PostRequest struct {
	ChapterID uint   `json:"chapter_id"`
	Content   string `json:"content"`
	ParentID  *uint  `json:"parent_id"`
}

// IDiscussionService defines the interface for chapter discussion threads
type IDiscussionService interface {
	Post(ctx context.Context, userID, groupID uint, req *PostRequest) (*thread.Post, error)
	Fetch(ctx context.Context, groupID, chapterID uint, lastFetchedAt string) ([]*thread.Post, error)
}

// DiscussionService implements the IDiscussionService interface
type DiscussionService struct {
	discussionRepo repository.IDiscussionRepository
	chapterRepo    repository.IChapterRepository
	groupRepo      repository.IGroupRepository
	events         activity
	log            *logger.Logger
}

// NewDiscussionService creates a new IDiscussionService instance
func NewDiscussionService(
	discussionRepo repository.IDiscussionRepository,
	chapterRepo repository.IChapterRepository,
	groupRepo repository.IGroupRepository,
	pub mq.Publisher,
	log *logger.Logger,
) IDiscussionService {
	events := newActivity(pub, log)
	return &DiscussionService{
		discussionRepo: discussionRepo,
		chapterRepo:    chapterRepo,
		groupRepo:      groupRepo,
		events:         events,
		log:            events.log,
	}
}

func (s *DiscussionService) findGroup(ctx context.Context, groupID uint) error {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoSuchGroup
		}
		return fmt.Errorf("failed to find group: %w", err)
	}
	return nil
}

func (s *DiscussionService) findChapter(ctx context.Context, groupID, chapterID uint) (*model.Chapter, error) {
	chapter, err := s.chapterRepo.FindInGroup(ctx, groupID, chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSuchChapter
		}
		return nil, fmt.Errorf("failed to find chapter: %w", err)
	}
	return chapter, nil
}

// Post adds a root post or, with ParentID, a reply to a post of the same chapter
func (s *DiscussionService) Post(ctx context.Context, userID, groupID uint, req *PostRequest) (*thread.Post, error) {
	if err := s.findGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if req.ChapterID == 0 {
		return nil, ErrChapterIDRequired
	}
	if req.Content == "" {
		return nil, ErrContentRequired
	}
	chapter, err := s.findChapter(ctx, groupID, req.ChapterID)
	if err != nil {
		return nil, err
	}

	var parentID *uint
	if req.ParentID != nil && *req.ParentID != 0 {
		parent, err := s.discussionRepo.FindInChapter(ctx, chapter.ID, *req.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, fmt.Errorf("failed to find parent discussion: %w", err)
		}
		parentID = &parent.ID
	}

	d := &model.Discussion{
		ChapterID: chapter.ID,
		UserID:    userID,
		Content:   req.Content,
		ParentID:  parentID,
	}
	if err := s.discussionRepo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create discussion: %w", err)
	}

	s.log.InfoContext(ctx, "discussion posted",
		zap.Uint("discussion_id", d.ID),
		zap.Uint("chapter_id", chapter.ID),
		zap.Uint("user_id", userID),
		zap.Bool("reply", parentID != nil),
	)
	s.events.emit(ctx, mq.Event{
		Type:         mq.EventDiscussionCreated,
		GroupID:      groupID,
		UserID:       userID,
		ChapterID:    chapter.ID,
		DiscussionID: d.ID,
	})

	p := toPost(d)
	p.Replies = []*thread.Post{}
	return p, nil
}

// Fetch returns the chapter's threads. With lastFetchedAt only roots created
// after it are returned, each still carrying its full reply tree.
func (s *DiscussionService) Fetch(ctx context.Context, groupID, chapterID uint, lastFetchedAt string) ([]*thread.Post, error) {
	if err := s.findGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if chapterID == 0 {
		return nil, ErrChapterIDRequired
	}
	chapter, err := s.findChapter(ctx, groupID, chapterID)
	if err != nil {
		return nil, err
	}

	var since time.Time
	if lastFetchedAt != "" {
		if since, err = thread.ParseSince(lastFetchedAt); err != nil {
			return nil, ErrInvalidTimestamp
		}
	}

	rows, err := s.discussionRepo.ListByChapter(ctx, chapter.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list discussions: %w", err)
	}
	posts := make([]*thread.Post, 0, len(rows))
	for _, d := range rows {
		posts = append(posts, toPost(d))
	}
	roots := thread.Forest(posts, since)

	var emitted, depth int
	thread.Walk(roots, func(_ *thread.Post, d int) {
		emitted++
		depth = max(depth, d)
	})
	s.log.DebugContext(ctx, "discussions fetched",
		zap.Uint("chapter_id", chapter.ID),
		zap.Int("roots", len(roots)),
		zap.Int("posts", emitted),
		zap.Int("max_depth", depth),
		zap.Int("unreachable", len(posts)-emitted),
	)
	return roots, nil
}

func toPost(d *model.Discussion) *thread.Post {
	p := &thread.Post{
		ID:        d.ID,
		ChapterID: d.ChapterID,
		Author:    thread.Author{ID: d.UserID},
		Content:   d.Content,
		ParentID:  d.ParentID,
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.User != nil {
		p.Author.Username = d.User.Username
	}
	return p
}
