package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/repository"
)

type ChapterProgress struct {
	ChapterID      uint          `json:"chapter_id"`
	Title          string        `json:"title"`
	Deadline       string        `json:"deadline"`
	ReadPercentage float64       `json:"read_percentage"`
	ReadUsers      []UserSummary `json:"read_users"`
	NotReadUsers   []UserSummary `json:"not_read_users"`
}

type GroupProgress struct {
	GroupID      uint              `json:"group_id"`
	GroupName    string            `json:"group_name"`
	TotalMembers int               `json:"total_members"`
	Chapters     []ChapterProgress `json:"chapters"`
}

type DeadlineNotification struct {
	GroupName    string `json:"group_name"`
	ChapterID    uint   `json:"chapter_id"`
	ChapterTitle string `json:"chapter_title"`
	DaysOverdue  int    `json:"days_overdue"`
	Notification string `json:"notification"`
}

// IProgressService defines the interface for reading progress reports
type IProgressService interface {
	Progress(ctx context.Context, userID uint) ([]GroupProgress, error)
	DeadlineNotifications(ctx context.Context, userID uint) ([]DeadlineNotification, error)
}

// ProgressService implements the IProgressService interface
type ProgressService struct {
	groupRepo   repository.IGroupRepository
	chapterRepo repository.IChapterRepository
	now         func() time.Time
}

// NewProgressService creates a new IProgressService instance
func NewProgressService(groupRepo repository.IGroupRepository, chapterRepo repository.IChapterRepository) IProgressService {
	return &ProgressService{
		groupRepo:   groupRepo,
		chapterRepo: chapterRepo,
		now:         time.Now,
	}
}

// ReadPercentage is the share of members who read a chapter, capped at 100.
// The read count may include users outside the group.
func ReadPercentage(readCount, totalMembers int) float64 {
	if totalMembers <= 0 {
		return 0
	}
	return min(float64(readCount)/float64(totalMembers)*100, 100)
}

// snapshot is everything a report needs about the user's groups
type snapshot struct {
	groups   []*model.Group
	members  map[uint][]*model.User
	chapters map[uint][]*model.Chapter
	readers  map[uint][]*model.User
}

func (s *ProgressService) load(ctx context.Context, userID uint, withMembers bool) (*snapshot, error) {
	groups, err := s.groupRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	if len(groups) == 0 {
		return nil, ErrNoGroups
	}

	groupIDs := make([]uint, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}
	snap := &snapshot{groups: groups, chapters: make(map[uint][]*model.Chapter, len(groups))}

	if withMembers {
		if snap.members, err = s.groupRepo.ListMembers(ctx, groupIDs); err != nil {
			return nil, fmt.Errorf("failed to list members: %w", err)
		}
	}

	chapters, err := s.chapterRepo.ListByGroups(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	chapterIDs := make([]uint, 0, len(chapters))
	for _, c := range chapters {
		snap.chapters[c.GroupID] = append(snap.chapters[c.GroupID], c)
		chapterIDs = append(chapterIDs, c.ID)
	}
	if snap.readers, err = s.chapterRepo.ListReaders(ctx, chapterIDs); err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	return snap, nil
}

// Progress reports per-chapter completion for every group of the user.
// Groups without chapters are left out.
func (s *ProgressService) Progress(ctx context.Context, userID uint) ([]GroupProgress, error) {
	snap, err := s.load(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	return BuildProgress(snap.groups, snap.members, snap.chapters, snap.readers), nil
}

// BuildProgress assembles the report. members and chapters are keyed by
// group id, readers by chapter id.
func BuildProgress(
	groups []*model.Group,
	members map[uint][]*model.User,
	chapters map[uint][]*model.Chapter,
	readers map[uint][]*model.User,
) []GroupProgress {
	out := []GroupProgress{}
	for _, g := range groups {
		if len(chapters[g.ID]) == 0 {
			continue
		}
		groupMembers := members[g.ID]
		gp := GroupProgress{
			GroupID:      g.ID,
			GroupName:    g.Name,
			TotalMembers: len(groupMembers),
			Chapters:     make([]ChapterProgress, 0, len(chapters[g.ID])),
		}
		for _, c := range chapters[g.ID] {
			read := readers[c.ID]
			seen := make(map[uint]bool, len(read))
			for _, u := range read {
				seen[u.ID] = true
			}
			var notRead []*model.User
			for _, m := range groupMembers {
				if !seen[m.ID] {
					notRead = append(notRead, m)
				}
			}
			gp.Chapters = append(gp.Chapters, ChapterProgress{
				ChapterID:      c.ID,
				Title:          c.Title,
				Deadline:       c.DeadlineDate().Format(DeadlineLayout),
				ReadPercentage: ReadPercentage(len(read), len(groupMembers)),
				ReadUsers:      summarize(read),
				NotReadUsers:   summarize(notRead),
			})
		}
		out = append(out, gp)
	}
	return out
}

// DeadlineNotifications lists the chapters of the user's groups whose
// deadline is before today (UTC) and which the user has not read.
func (s *ProgressService) DeadlineNotifications(ctx context.Context, userID uint) ([]DeadlineNotification, error) {
	snap, err := s.load(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	return BuildDeadlineNotifications(userID, snap.groups, snap.chapters, snap.readers, s.now()), nil
}

// BuildDeadlineNotifications computes overdue chapters as of now's UTC date
func BuildDeadlineNotifications(
	userID uint,
	groups []*model.Group,
	chapters map[uint][]*model.Chapter,
	readers map[uint][]*model.User,
	now time.Time,
) []DeadlineNotification {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	out := []DeadlineNotification{}
	for _, g := range groups {
		for _, c := range chapters[g.ID] {
			days := daysBetween(c.DeadlineDate(), today)
			if days <= 0 || hasUser(readers[c.ID], userID) {
				continue
			}
			out = append(out, DeadlineNotification{
				GroupName:    g.Name,
				ChapterID:    c.ID,
				ChapterTitle: c.Title,
				DaysOverdue:  days,
				Notification: fmt.Sprintf("The deadline for chapter '%s' has passed %d days ago!", c.Title, days),
			})
		}
	}
	return out
}

func hasUser(users []*model.User, id uint) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

const secondsPerDay = 24 * 60 * 60

// daysBetween counts whole days between two UTC midnights. Unix seconds do not
// saturate the way time.Duration does past ~292 years.
func daysBetween(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / secondsPerDay)
}
