package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ReadingRoom/internal/service"
)

type DiscussionHandler struct {
	discussionService service.IDiscussionService
}

func NewDiscussionHandler(discussionService service.IDiscussionService) *DiscussionHandler {
	return &DiscussionHandler{discussionService: discussionService}
}

// Post adds a discussion post or reply to a chapter of the group
func (h *DiscussionHandler) Post(c *gin.Context) {
	var req service.PostRequest
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyError, err)
		return
	}
	post, err := h.discussionService.Post(c.Request.Context(), CurrentUser(c).ID, idParam(c, "group_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// Fetch returns the chapter's threads, optionally only roots newer than
// last_fetched_at
func (h *DiscussionHandler) Fetch(c *gin.Context) {
	groupID := idParam(c, "group_id")
	chapterID := uint(0)
	if raw := c.Query("chapter_id"); raw != "" {
		if chapterID = parseID(raw); chapterID == 0 {
			respondError(c, service.ErrNoSuchChapter)
			return
		}
	}

	posts, err := h.discussionService.Fetch(c.Request.Context(), groupID, chapterID, c.Query("last_fetched_at"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}
