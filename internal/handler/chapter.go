package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ReadingRoom/internal/service"
)

type ChapterHandler struct {
	chapterService service.IChapterService
}

func NewChapterHandler(chapterService service.IChapterService) *ChapterHandler {
	return &ChapterHandler{chapterService: chapterService}
}

// Toggle marks the chapter read for the caller, or unread if it already was
func (h *ChapterHandler) Toggle(c *gin.Context) {
	resp, err := h.chapterService.Toggle(c.Request.Context(), CurrentUser(c).ID, idParam(c, "group_id"), idParam(c, "chapter_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListForGroup lists a group's chapters for one of its members
func (h *ChapterHandler) ListForGroup(c *gin.Context) {
	chapters, err := h.chapterService.ListForGroup(c.Request.Context(), CurrentUser(c).ID, idParam(c, "group_id"))
	if err != nil {
		respondDetail(c, err)
		return
	}
	c.JSON(http.StatusOK, chapters)
}

func (h *ChapterHandler) GetInGroup(c *gin.Context) {
	chapter, err := h.chapterService.GetInGroup(c.Request.Context(), idParam(c, "group_id"), idParam(c, "chapter_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

func (h *ChapterHandler) List(c *gin.Context) {
	chapters, err := h.chapterService.List(c.Request.Context())
	if err != nil {
		respondDetail(c, err)
		return
	}
	c.JSON(http.StatusOK, chapters)
}

func (h *ChapterHandler) Get(c *gin.Context) {
	chapter, err := h.chapterService.Get(c.Request.Context(), idParam(c, "chapter_id"))
	if err != nil {
		respondDetail(c, err)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

func (h *ChapterHandler) Create(c *gin.Context) {
	var req service.ChapterRequest
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyDetail, err)
		return
	}
	chapter, err := h.chapterService.Create(c.Request.Context(), &req)
	if err != nil {
		respondDetail(c, err)
		return
	}
	c.JSON(http.StatusCreated, chapter)
}

func (h *ChapterHandler) Update(c *gin.Context) {
	var req service.ChapterRequest
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyDetail, err)
		return
	}
	chapter, err := h.chapterService.Update(c.Request.Context(), idParam(c, "chapter_id"), &req)
	if err != nil {
		respondDetail(c, err)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

func (h *ChapterHandler) Delete(c *gin.Context) {
	if err := h.chapterService.Delete(c.Request.Context(), idParam(c, "chapter_id")); err != nil {
		respondDetail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
