package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ReadingRoom/internal/service"
)

type BookHandler struct {
	bookService service.IBookService
}

func NewBookHandler(bookService service.IBookService) *BookHandler {
	return &BookHandler{bookService: bookService}
}

// List serves both the member and the admin book listing
func (h *BookHandler) List(c *gin.Context) {
	books, err := h.bookService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *BookHandler) Get(c *gin.Context) {
	book, err := h.bookService.Get(c.Request.Context(), idParam(c, "book_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) Create(c *gin.Context) {
	var req service.BookRequest
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyError, err)
		return
	}
	book, err := h.bookService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *BookHandler) Update(c *gin.Context) {
	var req service.BookRequest
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyError, err)
		return
	}
	book, err := h.bookService.Update(c.Request.Context(), idParam(c, "book_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) Delete(c *gin.Context) {
	if err := h.bookService.Delete(c.Request.Context(), idParam(c, "book_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
