package auth

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/shortlink/internal/api/handler"
	"github.com/jon4hz/shortlink/internal/api/models"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/jon4hz/shortlink/internal/users"
)

// APIKeyHeader carries the apikey of programmatic clients.
const APIKeyHeader = "X-API-Key"

const sessionUserID = "user_id"

// Provider authenticates requests by apikey or session cookie.
type Provider struct {
	svc *users.Service
}

// New creates a new auth provider.
func New(svc *users.Service) *Provider {
	return &Provider{svc: svc}
}

// RequireAuth resolves the current user and rejects anonymous and banned users.
func (p *Provider) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := p.resolve(c)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
				return
			}
			handler.WriteError(c, err)
			return
		}
		if user.Banned {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: users.ErrBanned.Error()})
			return
		}

		c.Set(sessionUserID, user.ID)
		c.Set(handler.UserKey, user)
		c.Next()
	}
}

func (p *Provider) resolve(c *gin.Context) (*database.User, error) {
	ctx := c.Request.Context()
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return p.svc.Repository().Find(ctx, users.Criteria{APIKey: key})
	}

	id, ok := sessions.Default(c).Get(sessionUserID).(uint)
	if !ok || id == 0 {
		return nil, users.ErrNotFound
	}
	return p.svc.Repository().Find(ctx, users.Criteria{ID: id})
}

// RequireAdmin rejects users without admin privileges. It must run after RequireAuth.
func (p *Provider) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !p.svc.IsAdmin(handler.CurrentUser(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: "forbidden"})
			return
		}
		c.Next()
	}
}

// Login checks the credentials and starts a session.
func (p *Provider) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "email and password are required"})
		return
	}

	user, err := p.svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		log.Debug("Login failed", "email", req.Email, "error", err)
		handler.WriteError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserID, user.ID)
	if err := session.Save(); err != nil {
		handler.WriteError(c, err)
		return
	}

	log.Info("User logged in", "id", user.ID, "email", user.Email)
	c.JSON(http.StatusOK, users.NewIdentity(user))
}

// Logout ends the session.
func (p *Provider) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		handler.WriteError(c, err)
		return
	}
	c.String(http.StatusOK, "OK")
}
