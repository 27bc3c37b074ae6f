package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ReadingRoom/internal/service"
)

type ProgressHandler struct {
	progressService service.IProgressService
}

func NewProgressHandler(progressService service.IProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// Progress reports chapter completion across the caller's groups
func (h *ProgressHandler) Progress(c *gin.Context) {
	report, err := h.progressService.Progress(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DeadlineNotifications lists the caller's overdue unread chapters
func (h *ProgressHandler) DeadlineNotifications(c *gin.Context) {
	notes, err := h.progressService.DeadlineNotifications(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}
