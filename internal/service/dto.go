package service

import (
	"github.com/Gopher0727/ReadingRoom/internal/model"
)

// DeadlineLayout is how chapter deadlines travel over the wire.
const DeadlineLayout = "2006-01-02"

type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

func summarize(users []*model.User) []UserSummary {
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{ID: u.ID, Username: u.Username})
	}
	return out
}

type UserResponse struct {
	ID       uint       `json:"id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

type GroupResponse struct {
	ID           uint          `json:"id"`
	Name         string        `json:"name"`
	ReadingGoals string        `json:"reading_goals"`
	Book         *model.Book   `json:"book"`
	Members      []UserSummary `json:"members"`
}

func newGroupResponse(g *model.Group, members []*model.User) *GroupResponse {
	return &GroupResponse{
		ID:           g.ID,
		Name:         g.Name,
		ReadingGoals: g.ReadingGoals,
		Book:         g.Book,
		Members:      summarize(members),
	}
}

// JoinResponse is returned by the group join endpoint.
type JoinResponse struct {
	Group   *GroupResponse `json:"group"`
	Created bool           `json:"created"`
}

type ChapterResponse struct {
	ID       uint          `json:"id"`
	Group    uint          `json:"group"`
	Title    string        `json:"title"`
	Deadline string        `json:"deadline"`
	IsRead   []UserSummary `json:"is_read"`
}

func newChapterResponse(c *model.Chapter, readers []*model.User) *ChapterResponse {
	return &ChapterResponse{
		ID:       c.ID,
		Group:    c.GroupID,
		Title:    c.Title,
		Deadline: c.DeadlineDate().Format(DeadlineLayout),
		IsRead:   summarize(readers),
	}
}
