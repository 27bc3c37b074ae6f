package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ReadingRoom/internal/handler"
	"github.com/Gopher0727/ReadingRoom/internal/model"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth       *handler.AuthHandler
	Book       *handler.BookHandler
	Group      *handler.GroupHandler
	Chapter    *handler.ChapterHandler
	Discussion *handler.DiscussionHandler
	Progress   *handler.ProgressHandler
}

// RegisterRoutes registers all API routes
func RegisterRoutes(r *gin.Engine, mw *MiddlewareManager, h Handlers) {
	r.Use(mw.Recovery(), mw.TraceID(), mw.Logger(), mw.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	api := r.Group("/api")

	// Public routes
	public := api.Group("/", mw.AuthRateLimit())
	{
		public.POST("/register/", h.Auth.Register)
		public.POST("/login/", h.Auth.Login)
		public.POST("/token/refresh/", h.Auth.Refresh)
	}

	// Any authenticated user
	authed := api.Group("/", mw.JWTAuth())
	{
		authed.GET("/user-info/", h.Auth.UserInfo)
		authed.GET("/user-id/", h.Auth.UserID)
		authed.GET("/groups/:group_id/discussions_by_chapter/", h.Discussion.Fetch)
	}

	// Member routes
	member := api.Group("/", mw.JWTAuth(), mw.RequireCapability(model.CapParticipate))
	{
		member.GET("/member-view/", h.Auth.MemberView)

		member.GET("/books/", h.Book.List)
		member.GET("/books/:book_id/", h.Book.Get)
		member.POST("/books/:book_id/groups/", h.Group.Join)

		member.GET("/groups/", h.Group.List)
		member.GET("/groups/:group_id/", h.Group.Get)
		member.GET("/group-by-book/", h.Group.ListByBook)
		member.GET("/member/groups/", h.Group.ListMine)

		member.GET("/groups/:group_id/chapters/", h.Chapter.ListForGroup)
		member.PUT("/groups/:group_id/chapter/:chapter_id/", h.Chapter.Toggle)
		member.GET("/groupchapter/:group_id/chapter/:chapter_id/", h.Chapter.GetInGroup)

		member.POST("/groups/:group_id/discussions_by_chapter/post/", h.Discussion.Post)

		member.GET("/progress/", h.Progress.Progress)
		member.GET("/chapter-deadline-notifications/", h.Progress.DeadlineNotifications)
	}

	// Admin routes
	admin := api.Group("/", mw.JWTAuth(), mw.RequireCapability(model.CapManageCatalog))
	{
		admin.GET("/admin-view/", h.Auth.AdminView)
		admin.GET("/users/", h.Auth.ListMembers)

		admin.GET("/books-admin/", h.Book.List)
		admin.POST("/books/create/", h.Book.Create)
		admin.PATCH("/books/:book_id/update/", h.Book.Update)
		admin.DELETE("/books/:book_id/delete/", h.Book.Delete)

		admin.GET("/groups-admin/", h.Group.List)
		admin.POST("/groups/create/", h.Group.Create)
		admin.PATCH("/groups/:group_id/update/", h.Group.Update)
		admin.DELETE("/groups/:group_id/delete/", h.Group.Delete)

		admin.GET("/chapter/", h.Chapter.List)
		admin.POST("/chapter/create/", h.Chapter.Create)
		admin.GET("/chapter/:chapter_id/", h.Chapter.Get)
		admin.PATCH("/chapter/:chapter_id/update/", h.Chapter.Update)
		admin.DELETE("/chapter/:chapter_id/delete/", h.Chapter.Delete)
	}
}
