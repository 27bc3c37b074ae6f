package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ReadingRoom/internal/service"
)

type AuthHandler struct {
	authService service.IAuthService
}

func NewAuthHandler(authService service.IAuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles account creation
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyDetail, err)
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login exchanges credentials for an access/refresh pair
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyDetail, err)
		return
	}

	pair, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondDetail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Refresh issues a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := bindJSON(c, &req); err != nil {
		badJSON(c, keyDetail, err)
		return
	}

	access, err := h.authService.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		respondDetail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": access})
}

func (h *AuthHandler) UserInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"role": CurrentUser(c).Role})
}

func (h *AuthHandler) UserID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"userId": CurrentUser(c).ID})
}

func (h *AuthHandler) AdminView(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello, Admin!"})
}

func (h *AuthHandler) MemberView(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello, Member!"})
}

// ListMembers lists all accounts with the member role
func (h *AuthHandler) ListMembers(c *gin.Context) {
	users, err := h.authService.ListMembers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
