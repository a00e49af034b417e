package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/shortlink/internal/api/models"
	"github.com/jon4hz/shortlink/internal/users"
)

// Me returns the identity of the current user.
func (h *Handler) Me(c *gin.Context) {
	identity, err := h.svc.Me(c.Request.Context(), CurrentUser(c))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

// ListUsers returns a page of users filtered by the search query.
func (h *Handler) ListUsers(c *gin.Context) {
	params := users.ParseListParams(c.Query("limit"), c.Query("skip"), c.Query("search"), h.config.Pagination)

	res, err := h.svc.List(c.Request.Context(), CurrentUser(c), params)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToUserList(res, h.avatars))
}

// CreateUser creates a new user and returns its identity.
func (h *Handler) CreateUser(c *gin.Context) {
	var in users.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.svc.Create(c.Request.Context(), CurrentUser(c), in)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, users.NewIdentity(user))
}

// EditUser applies a partial update to the user in the path.
func (h *Handler) EditUser(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}

	var in users.EditInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	if _, err := h.svc.Edit(c.Request.Context(), CurrentUser(c), id, in); err != nil {
		WriteError(c, err)
		return
	}
	c.String(http.StatusOK, "OK")
}

// DeleteUser removes the user in the path.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteByID(c.Request.Context(), CurrentUser(c), id); err != nil {
		WriteError(c, err)
		return
	}
	c.String(http.StatusOK, "OK")
}

// DeleteSelf removes the current user.
func (h *Handler) DeleteSelf(c *gin.Context) {
	if err := h.svc.DeleteSelf(c.Request.Context(), CurrentUser(c)); err != nil {
		WriteError(c, err)
		return
	}
	c.String(http.StatusOK, "OK")
}
