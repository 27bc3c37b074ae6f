package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/service"
)

// Response body keys. Member endpoints answer with "error", the admin
// group/chapter surface with "detail".
const (
	keyError  = "error"
	keyDetail = "detail"
)

const currentUserKey = "user"

// SetCurrentUser stores the authenticated user on the request
func SetCurrentUser(c *gin.Context, user *model.User) {
	c.Set(currentUserKey, user)
	c.Set("user_id", user.ID)
}

// CurrentUser returns the user stored by the auth middleware
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(currentUserKey); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}

// StatusOf maps a service error to its HTTP status
func StatusOf(err error) int {
	var (
		notFound  *service.NotFoundError
		forbidden *service.ForbiddenError
		conflict  *service.ConflictError
		unauth    *service.UnauthenticatedError
		invalid   *service.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &conflict), errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &unauth):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respond writes err under key. Per-field validation errors are written as
// the field map itself; unexpected errors are recorded on the context for the
// request logger.
func respond(c *gin.Context, key string, err error) {
	status := StatusOf(err)

	var invalid *service.ValidationError
	if errors.As(err, &invalid) && invalid.Msg == "" && len(invalid.Fields) > 0 {
		c.JSON(status, invalid.Fields)
		return
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{key: "An error occurred: " + err.Error()})
		return
	}
	c.JSON(status, gin.H{key: err.Error()})
}

func respondError(c *gin.Context, err error) { respond(c, keyError, err) }

func respondDetail(c *gin.Context, err error) { respond(c, keyDetail, err) }

// bindJSON decodes the body; an empty body leaves obj at its zero value so
// missing fields are reported by validation.
func bindJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// badJSON answers a body that could not be decoded
func badJSON(c *gin.Context, key string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{key: "JSON parse error - " + err.Error()})
}

// idParam reads a numeric path parameter; anything else reads as 0, which
// matches no row.
func idParam(c *gin.Context, name string) uint {
	return parseID(c.Param(name))
}

func parseID(raw string) uint {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}
