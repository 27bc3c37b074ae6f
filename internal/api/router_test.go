package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Gopher0727/ReadingRoom/config"
	"github.com/Gopher0727/ReadingRoom/internal/handler"
	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/repository"
	"github.com/Gopher0727/ReadingRoom/internal/service"
	"github.com/Gopher0727/ReadingRoom/internal/testutil"
	"github.com/Gopher0727/ReadingRoom/internal/thread"
	"github.com/Gopher0727/ReadingRoom/middleware/jwt"
	logger "github.com/Gopher0727/ReadingRoom/middleware/log"
	"github.com/Gopher0727/ReadingRoom/pkg/mq"
	"github.com/Gopher0727/ReadingRoom/utils/ratelimit"
)

const testPassword = "correct-horse-9"

type server struct {
	engine *gin.Engine
	db     *gorm.DB
	mr     *miniredis.Miniredis
	users  repository.IUserRepository
}

func newServer(t *testing.T, authPerMinute int) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	mr, rdb := testutil.NewRedis(t)
	log := logger.NewNopLogger()
	tokens := jwt.NewTokenManager("router-test-secret", 15, 24)
	pub := mq.NopPublisher{}

	userRepo := repository.NewUserRepository(db, rdb)
	bookRepo := repository.NewBookRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)

	authService := service.NewAuthService(userRepo, tokens, log)

	mw := NewMiddlewareManager(
		authService,
		ratelimit.NewFixedWindowLimiter(rdb, log.Logger, true),
		log,
		&config.RateLimitConfig{AuthPerMinute: authPerMinute},
	)

	r := gin.New()
	RegisterRoutes(r, mw, Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Book:       handler.NewBookHandler(service.NewBookService(bookRepo)),
		Group:      handler.NewGroupHandler(service.NewGroupService(groupRepo, bookRepo, userRepo, pub, log)),
		Chapter:    handler.NewChapterHandler(service.NewChapterService(chapterRepo, groupRepo, userRepo, pub, log)),
		Discussion: handler.NewDiscussionHandler(service.NewDiscussionService(discussionRepo, chapterRepo, groupRepo, pub, log)),
		Progress:   handler.NewProgressHandler(service.NewProgressService(groupRepo, chapterRepo)),
	})

	return &server{engine: r, db: db, mr: mr, users: userRepo}
}

func (s *server) do(t *testing.T, method, target string, body any, opts ...testutil.RequestOption) (int, map[string]any) {
	t.Helper()
	rec := testutil.Do(t, s.engine, method, target, body, opts...)
	if rec.Body.Len() == 0 {
		return rec.Code, nil
	}
	var out map[string]any
	if rec.Body.Bytes()[0] == '{' {
		out = testutil.Decode[map[string]any](t, rec)
	}
	return rec.Code, out
}

// signup registers and logs in a user, returning its access token
func (s *server) signup(t *testing.T, username string, role model.Role) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/register/", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, code, body)

	code, body = s.do(t, http.MethodPost, "/api/login/", gin.H{"username": username, "password": testPassword})
	require.Equal(t, http.StatusOK, code, body)
	return body["access"].(string)
}

func TestHealth(t *testing.T) {
	s := newServer(t, 0)

	code, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body["status"])
}

func TestTraceIDEchoed(t *testing.T) {
	s := newServer(t, 0)

	rec := testutil.Do(t, s.engine, http.MethodGet, "/health", nil, testutil.WithHeader(logger.TraceIDHeader, "req-42"))
	assert.Equal(t, "req-42", rec.Header().Get(logger.TraceIDHeader))

	rec = testutil.Do(t, s.engine, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get(logger.TraceIDHeader))
}

func TestIdentityEndpoints(t *testing.T) {
	s := newServer(t, 0)
	admin := s.signup(t, "alice", model.RoleAdmin)
	member := s.signup(t, "bob", model.RoleMember)

	code, body := s.do(t, http.MethodGet, "/api/user-info/", nil, testutil.Bearer(admin))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "admin", body["role"])

	code, body = s.do(t, http.MethodGet, "/api/user-id/", nil, testutil.Bearer(member))
	assert.Equal(t, http.StatusOK, code)
	assert.NotZero(t, body["userId"])

	code, body = s.do(t, http.MethodGet, "/api/admin-view/", nil, testutil.Bearer(admin))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Hello, Admin!", body["message"])

	code, body = s.do(t, http.MethodGet, "/api/member-view/", nil, testutil.Bearer(member))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Hello, Member!", body["message"])

	t.Run("role gating", func(t *testing.T) {
		code, body := s.do(t, http.MethodGet, "/api/admin-view/", nil, testutil.Bearer(member))
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, msgNoPermission, body["detail"])

		code, _ = s.do(t, http.MethodGet, "/api/member-view/", nil, testutil.Bearer(admin))
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("missing or malformed credentials", func(t *testing.T) {
		code, body := s.do(t, http.MethodGet, "/api/user-info/", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, msgNoCredentials, body["detail"])

		code, _ = s.do(t, http.MethodGet, "/api/user-info/", nil, testutil.WithHeader("Authorization", "Token abc"))
		assert.Equal(t, http.StatusUnauthorized, code)

		code, _ = s.do(t, http.MethodGet, "/api/user-info/", nil, testutil.Bearer("not-a-jwt"))
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("refresh", func(t *testing.T) {
		code, body := s.do(t, http.MethodPost, "/api/login/", gin.H{"username": "bob", "password": testPassword})
		require.Equal(t, http.StatusOK, code)

		code, refreshed := s.do(t, http.MethodPost, "/api/token/refresh/", gin.H{"refresh": body["refresh"]})
		assert.Equal(t, http.StatusOK, code)
		assert.NotEmpty(t, refreshed["access"])

		code, _ = s.do(t, http.MethodPost, "/api/token/refresh/", gin.H{"refresh": body["access"]})
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("deleted user loses access", func(t *testing.T) {
		token := s.signup(t, "carol", model.RoleMember)
		code, body := s.do(t, http.MethodGet, "/api/user-id/", nil, testutil.Bearer(token))
		require.Equal(t, http.StatusOK, code)

		require.NoError(t, s.users.Delete(context.Background(), uint(body["userId"].(float64))))

		code, _ = s.do(t, http.MethodGet, "/api/user-id/", nil, testutil.Bearer(token))
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("bad login", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPost, "/api/login/", gin.H{"username": "bob", "password": "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestRegisterValidation(t *testing.T) {
	s := newServer(t, 0)

	code, body := s.do(t, http.MethodPost, "/api/register/", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	for _, field := range []string{"username", "email", "password", "role"} {
		assert.Contains(t, body, field)
	}

	s.signup(t, "dave", model.RoleMember)
	code, body = s.do(t, http.MethodPost, "/api/register/", gin.H{
		"username": "dave", "email": "dave2@example.com", "password": testPassword, "role": "member",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, service.ErrUsernameTaken.Error(), body["error"])
}

func TestAuthRateLimit(t *testing.T) {
	s := newServer(t, 2)
	creds := gin.H{"username": "nobody", "password": testPassword}

	for i := 0; i < 2; i++ {
		code, _ := s.do(t, http.MethodPost, "/api/login/", creds)
		assert.Equal(t, http.StatusUnauthorized, code)
	}

	rec := testutil.Do(t, s.engine, http.MethodPost, "/api/login/", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other routes have their own bucket
	code, _ := s.do(t, http.MethodPost, "/api/token/refresh/", gin.H{"refresh": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)

	s.mr.FlushAll()
	code, _ = s.do(t, http.MethodPost, "/api/login/", creds)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestReadingFlow(t *testing.T) {
	s := newServer(t, 0)
	admin := s.signup(t, "admin", model.RoleAdmin)
	alice := s.signup(t, "alice", model.RoleMember)
	bob := s.signup(t, "bob", model.RoleMember)

	code, book := s.do(t, http.MethodPost, "/api/books/create/", gin.H{
		"title": "Dune", "author": "Frank Herbert", "genre": "SF", "description": "Spice",
	}, testutil.Bearer(admin))
	require.Equal(t, http.StatusCreated, code, book)
	bookID := uint(book["id"].(float64))

	joinURL := fmt.Sprintf("/api/books/%d/groups/", bookID)
	join := gin.H{"name": "Bookworms", "reading_goals": "one chapter a week"}

	code, first := s.do(t, http.MethodPost, joinURL, join, testutil.Bearer(alice))
	require.Equal(t, http.StatusCreated, code, first)
	assert.Equal(t, true, first["created"])

	code, second := s.do(t, http.MethodPost, joinURL, join, testutil.Bearer(bob))
	require.Equal(t, http.StatusOK, code, second)
	assert.Equal(t, false, second["created"])

	group := second["group"].(map[string]any)
	groupID := uint(group["id"].(float64))
	assert.Len(t, group["members"], 2)

	code, body := s.do(t, http.MethodPost, joinURL, join, testutil.Bearer(bob))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "You are already part of the selected group.", body["error"])

	code, _ = s.do(t, http.MethodPost, "/api/books/999/groups/", join, testutil.Bearer(bob))
	assert.Equal(t, http.StatusNotFound, code)

	code, chapter := s.do(t, http.MethodPost, "/api/chapter/create/", gin.H{
		"group": groupID, "title": "Book One", "deadline": "2025-02-01", "is_read": []uint{},
	}, testutil.Bearer(admin))
	require.Equal(t, http.StatusCreated, code, chapter)
	chapterID := uint(chapter["id"].(float64))
	assert.Equal(t, "2025-02-01", chapter["deadline"])

	t.Run("members list chapters", func(t *testing.T) {
		rec := testutil.Do(t, s.engine, http.MethodGet, fmt.Sprintf("/api/groups/%d/chapters/", groupID), nil, testutil.Bearer(alice))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, testutil.Decode[[]service.ChapterResponse](t, rec), 1)

		outsider := s.signup(t, "eve", model.RoleMember)
		code, body := s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/chapters/", groupID), nil, testutil.Bearer(outsider))
		assert.Equal(t, http.StatusForbidden, code)
		assert.NotEmpty(t, body["detail"])
	})

	toggleURL := fmt.Sprintf("/api/groups/%d/chapter/%d/", groupID, chapterID)

	t.Run("toggle", func(t *testing.T) {
		code, body := s.do(t, http.MethodPut, toggleURL, nil, testutil.Bearer(alice))
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, "Chapter successfully marked as read.", body["message"])

		code, body = s.do(t, http.MethodPut, toggleURL, nil, testutil.Bearer(alice))
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Chapter successfully marked as unread.", body["message"])

		code, _ = s.do(t, http.MethodPut, toggleURL, nil, testutil.Bearer(alice))
		require.Equal(t, http.StatusOK, code)
	})

	t.Run("progress", func(t *testing.T) {
		rec := testutil.Do(t, s.engine, http.MethodGet, "/api/progress/", nil, testutil.Bearer(bob))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		progress := testutil.Decode[[]service.GroupProgress](t, rec)
		require.Len(t, progress, 1)
		assert.Equal(t, 2, progress[0].TotalMembers)
		require.Len(t, progress[0].Chapters, 1)
		assert.Equal(t, 50.0, progress[0].Chapters[0].ReadPercentage)
	})

	t.Run("deadline notifications", func(t *testing.T) {
		rec := testutil.Do(t, s.engine, http.MethodGet, "/api/chapter-deadline-notifications/", nil, testutil.Bearer(bob))
		require.Equal(t, http.StatusOK, rec.Code)
		notes := testutil.Decode[[]service.DeadlineNotification](t, rec)
		require.Len(t, notes, 1)
		assert.Equal(t, chapterID, notes[0].ChapterID)

		rec = testutil.Do(t, s.engine, http.MethodGet, "/api/chapter-deadline-notifications/", nil, testutil.Bearer(alice))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, testutil.Decode[[]service.DeadlineNotification](t, rec))
	})

	t.Run("discussions", func(t *testing.T) {
		postURL := fmt.Sprintf("/api/groups/%d/discussions_by_chapter/post/", groupID)

		code, root := s.do(t, http.MethodPost, postURL, gin.H{"chapter_id": chapterID, "content": "Thoughts?"}, testutil.Bearer(alice))
		require.Equal(t, http.StatusCreated, code, root)
		rootID := uint(root["id"].(float64))

		code, _ = s.do(t, http.MethodPost, postURL, gin.H{
			"chapter_id": chapterID, "content": "Loved it", "parent_id": rootID,
		}, testutil.Bearer(bob))
		require.Equal(t, http.StatusCreated, code)

		code, body := s.do(t, http.MethodPost, postURL, gin.H{
			"chapter_id": chapterID, "content": "orphan", "parent_id": 9999,
		}, testutil.Bearer(bob))
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Parent discussion does not exist.", body["error"])

		fetchURL := fmt.Sprintf("/api/groups/%d/discussions_by_chapter/?chapter_id=%d", groupID, chapterID)
		rec := testutil.Do(t, s.engine, http.MethodGet, fetchURL, nil, testutil.Bearer(admin))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		posts := testutil.Decode[[]*thread.Post](t, rec)
		require.Len(t, posts, 1)
		assert.Equal(t, rootID, posts[0].ID)
		require.Len(t, posts[0].Replies, 1)
		assert.Equal(t, "bob", posts[0].Replies[0].Author.Username)

		code, _ = s.do(t, http.MethodGet, fetchURL+"&last_fetched_at=yesterday", nil, testutil.Bearer(admin))
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("my groups", func(t *testing.T) {
		rec := testutil.Do(t, s.engine, http.MethodGet, "/api/member/groups/", nil, testutil.Bearer(alice))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, testutil.Decode[[]service.GroupResponse](t, rec), 1)

		loner := s.signup(t, "frank", model.RoleMember)
		code, body := s.do(t, http.MethodGet, "/api/member/groups/", nil, testutil.Bearer(loner))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "You are not part of any group.", body["message"])
	})

	t.Run("admin deletes cascade", func(t *testing.T) {
		code, _ := s.do(t, http.MethodDelete, fmt.Sprintf("/api/books/%d/delete/", bookID), nil, testutil.Bearer(admin))
		require.Equal(t, http.StatusNoContent, code)

		code, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/", groupID), nil, testutil.Bearer(alice))
		assert.Equal(t, http.StatusNotFound, code)

		code, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/chapter/%d/", chapterID), nil, testutil.Bearer(admin))
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestGroupByBookQuery(t *testing.T) {
	s := newServer(t, 0)
	member := s.signup(t, "gina", model.RoleMember)

	code, body := s.do(t, http.MethodGet, "/api/group-by-book/", nil, testutil.Bearer(member))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Book ID is required", body["error"])

	code, _ = s.do(t, http.MethodGet, "/api/group-by-book/?book=404", nil, testutil.Bearer(member))
	assert.Equal(t, http.StatusNotFound, code)

	book := testutil.CreateBook(t, s.db, "Emma")
	rec := testutil.Do(t, s.engine, http.MethodGet, fmt.Sprintf("/api/group-by-book/?book=%d", book.ID), nil, testutil.Bearer(member))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, testutil.Decode[[]service.GroupResponse](t, rec))
}
