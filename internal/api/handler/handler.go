package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/shortlink/internal/api/models"
	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/jon4hz/shortlink/internal/gravatar"
	"github.com/jon4hz/shortlink/internal/users"
)

// UserKey is the gin context key of the authenticated *database.User.
const UserKey = "user"

type Handler struct {
	svc     *users.Service
	config  *config.Config
	avatars *gravatar.Resolver
}

func New(svc *users.Service, cfg *config.Config, avatars *gravatar.Resolver) *Handler {
	return &Handler{
		svc:     svc,
		config:  cfg,
		avatars: avatars,
	}
}

// CurrentUser returns the authenticated user of the request.
func CurrentUser(c *gin.Context) *database.User {
	user, _ := c.MustGet(UserKey).(*database.User)
	return user
}

func parseUintParam(param string) (uint, error) {
	id, err := strconv.ParseUint(param, 10, 0)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func (h *Handler) paramID(c *gin.Context) (uint, bool) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return 0, false
	}
	return id, true
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
