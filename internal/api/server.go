package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/shortlink/internal/api/auth"
	"github.com/jon4hz/shortlink/internal/api/handler"
	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/gravatar"
	"github.com/jon4hz/shortlink/internal/users"
)

type Server struct {
	cfg          *config.Config
	ginEngine    *gin.Engine
	svc          *users.Service
	authProvider *auth.Provider
	avatars      *gravatar.Resolver
}

// New creates the HTTP server and registers all routes.
func New(cfg *config.Config, svc *users.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := gravatar.Validate(cfg.Gravatar); err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		cfg:          cfg,
		ginEngine:    engine,
		svc:          svc,
		authProvider: auth.New(svc),
		avatars:      gravatar.New(cfg.Gravatar),
	}
	s.setupSession()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions("shortlink_session", store))
}

func (s *Server) setupRoutes() {
	h := handler.New(s.svc, s.cfg, s.avatars)

	s.ginEngine.GET("/healthz", h.Health)

	api := s.ginEngine.Group("/api/v2")
	api.Use(gzip.Gzip(gzip.DefaultCompression))

	api.POST("/auth/login", s.authProvider.Login)
	api.POST("/auth/logout", s.authProvider.Logout)

	protected := api.Group("/")
	protected.Use(s.authProvider.RequireAuth())
	protected.GET("/users", h.Me)
	protected.POST("/users/delete", h.DeleteSelf)

	admin := protected.Group("/")
	admin.Use(s.authProvider.RequireAdmin())
	admin.GET("/users/all", h.ListUsers)
	admin.POST("/users/create", h.CreateUser)
	admin.PATCH("/users/:id", h.EditUser)
	admin.DELETE("/users/delete/:id", h.DeleteUser)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "listen", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
