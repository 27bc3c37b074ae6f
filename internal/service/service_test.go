package service

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/Gopher0727/ReadingRoom/internal/repository"
	"github.com/Gopher0727/ReadingRoom/internal/testutil"
	"github.com/Gopher0727/ReadingRoom/middleware/jwt"
	logger "github.com/Gopher0727/ReadingRoom/middleware/log"
	"github.com/Gopher0727/ReadingRoom/pkg/mq"
)

// recorder is an in-memory mq.Publisher
type recorder struct {
	mu     sync.Mutex
	events []mq.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev mq.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db     *gorm.DB
	events *recorder
	tokens *jwt.TokenManager

	users    repository.IUserRepository
	auth     IAuthService
	books    IBookService
	groups   IGroupService
	chapters IChapterService
	posts    IDiscussionService
	progress *ProgressService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	log := logger.NewNopLogger()
	events := &recorder{}
	tokens := jwt.NewTokenManager("test-secret", 15, 24)

	userRepo := repository.NewUserRepository(db, nil)
	bookRepo := repository.NewBookRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)

	return &fixture{
		db:       db,
		events:   events,
		tokens:   tokens,
		users:    userRepo,
		auth:     NewAuthService(userRepo, tokens, log),
		books:    NewBookService(bookRepo),
		groups:   NewGroupService(groupRepo, bookRepo, userRepo, events, log),
		chapters: NewChapterService(chapterRepo, groupRepo, userRepo, events, log),
		posts:    NewDiscussionService(discussionRepo, chapterRepo, groupRepo, events, log),
		progress: NewProgressService(groupRepo, chapterRepo).(*ProgressService),
	}
}

func ptr[T any](v T) *T { return &v }

func summaryIDs(users []UserSummary) []uint {
	out := make([]uint, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}
