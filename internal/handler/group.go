package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ReadingRoom/internal/service"
)

type GroupHandler struct {
	groupService service.IGroupService
}

func NewGroupHandler(groupService service.IGroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

// Join creates or joins the named group of a book
func (h *GroupHandler) Join(c *gin.Context) {
	var req service.JoinRequest
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyError, err)
		return
	}

	resp, err := h.groupService.Join(c.Request.Context(), CurrentUser(c).ID, idParam(c, "book_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// List serves both the member and the admin group listing
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groupService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.groupService.Get(c.Request.Context(), idParam(c, "group_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// ListByBook handles GET /api/group-by-book/?book=<id>
func (h *GroupHandler) ListByBook(c *gin.Context) {
	raw := c.Query("book")
	if raw == "" {
		respondError(c, service.ErrBookIDRequired)
		return
	}
	bookID := parseID(raw)
	if bookID == 0 {
		respondError(c, service.ErrBookNotFound)
		return
	}

	groups, err := h.groupService.ListByBook(c.Request.Context(), bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// ListMine lists the caller's groups
func (h *GroupHandler) ListMine(c *gin.Context) {
	groups, err := h.groupService.ListByMember(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(groups) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "You are not part of any group."})
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req service.GroupRequest
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyDetail, err)
		return
	}
	group, err := h.groupService.Create(c.Request.Context(), &req)
	if err != nil {
		respondDetail(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *GroupHandler) Update(c *gin.Context) {
	var req service.GroupRequest
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyDetail, err)
		return
	}
	group, err := h.groupService.Update(c.Request.Context(), idParam(c, "group_id"), &req)
	if err != nil {
		respondDetail(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.groupService.Delete(c.Request.Context(), idParam(c, "group_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
