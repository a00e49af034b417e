package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/jon4hz/shortlink/internal/policy"
	"github.com/samber/lo"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Notifier informs users about changes to their account.
type Notifier interface {
	NotifyWelcome(ctx context.Context, user *database.User) error
	NotifyBanned(ctx context.Context, user *database.User) error
}

// Service orchestrates the repository and the authorization policy.
type Service struct {
	repo     *Repository
	cfg      *config.Config
	policy   *policy.Engine
	notifier Notifier
	validate *validator.Validate
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNotifier sets the account notifier.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithPolicyEngine replaces the default policy engine.
func WithPolicyEngine(e *policy.Engine) ServiceOption {
	return func(s *Service) {
		s.policy = e
	}
}

// NewService creates a new user service.
func NewService(repo *Repository, cfg *config.Config, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		cfg:      cfg,
		policy:   policy.NewDefaultEngine(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying repository.
func (s *Service) Repository() *Repository {
	return s.repo
}

// IsAdmin reports whether the user has the admin role or is listed in admin_emails.
func (s *Service) IsAdmin(u *database.User) bool {
	if u == nil {
		return false
	}
	if u.Role == database.RoleAdmin {
		return true
	}
	return s.cfg != nil && s.cfg.IsAdminEmail(u.Email)
}

func (s *Service) requireAdmin(actor *database.User) error {
	if !s.IsAdmin(actor) {
		return ErrForbidden
	}
	return nil
}

// ListParams is a parsed listing request.
type ListParams struct {
	Limit  int
	Skip   int
	Search string
}

// ParseListParams parses raw query values. The limit falls back to the
// configured default and is clamped to [1, max]. Negative skips become 0.
func ParseListParams(limit, skip, search string, p *config.PaginationConfig) ListParams {
	defaultLimit, maxLimit := 10, 100
	if p != nil {
		defaultLimit, maxLimit = p.DefaultLimit, p.MaxLimit
	}

	params := ListParams{
		Limit:  defaultLimit,
		Search: strings.TrimSpace(search),
	}
	if n, ok := parseInt(limit); ok {
		params.Limit = n
	}
	params.Limit = max(1, min(params.Limit, maxLimit))

	if n, ok := parseInt(skip); ok && n > 0 {
		params.Skip = n
	}
	return params
}

func parseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n64, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	n, err := safecast.ToInt(n64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ListResult is a page of users.
type ListResult struct {
	Users []database.User
	Total int64
	Limit int
	Skip  int
}

// List returns a page of users. Only admins may list.
func (s *Service) List(ctx context.Context, actor *database.User, params ListParams) (*ListResult, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}

	users, total, err := s.repo.List(ctx, Filter{Search: params.Search}, Page{Limit: params.Limit, Skip: params.Skip})
	if err != nil {
		return nil, err
	}

	for i := range users {
		users[i].Role = lo.Ternary(s.IsAdmin(&users[i]), database.RoleAdmin, database.RoleUser)
	}

	return &ListResult{
		Users: users,
		Total: total,
		Limit: params.Limit,
		Skip:  params.Skip,
	}, nil
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Create validates the input and stores a new user. Only admins may create users.
func (s *Service) Create(ctx context.Context, actor *database.User, in CreateInput) (*database.User, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.Role != "" && !policy.ValidRole(in.Role) {
		return nil, ErrInvalidRole
	}

	user, err := s.repo.Create(ctx, NewUser{
		Email:    in.Email,
		Password: in.Password,
		Role:     database.Role(in.Role),
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyWelcome(ctx, user); err != nil {
			log.Warn("failed to send welcome email", "email", user.Email, "error", err)
		}
	}
	return user, nil
}

// EditInput is the body of an edit request. Nil fields are left untouched.
type EditInput struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Banned   *bool   `json:"banned,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// Edit changes the user with the given id. Only admins may edit users and
// nobody may ban, unban or re-role itself.
func (s *Service) Edit(ctx context.Context, actor *database.User, id uint, in EditInput) (*database.User, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}

	target, err := s.repo.Find(ctx, Criteria{ID: id})
	if err != nil {
		return nil, err
	}

	decision := s.policy.Authorize(actor, target, policy.Change{Banned: in.Banned, Role: in.Role})
	if err := decision.Err(); err != nil {
		log.Debug("edit denied", "actor", actor.ID, "target", target.ID, "rule", decision.Rule)
		return nil, err
	}

	if in.Email != nil {
		if err := s.validateEmail(*in.Email); err != nil {
			return nil, err
		}
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
	}

	patch := Patch{
		Email:    in.Email,
		Password: in.Password,
		Banned:   in.Banned,
	}
	if in.Role != nil {
		patch.Role = lo.ToPtr(database.Role(*in.Role))
	}
	if in.Banned != nil && *in.Banned {
		patch.BannedByID = lo.ToPtr(actor.ID)
	}

	updated, err := s.repo.Update(ctx, Criteria{ID: target.ID}, patch)
	if err != nil {
		if !errors.Is(err, ErrCacheInvalidation) || updated == nil {
			return nil, err
		}
		log.Warn("user updated but cache is stale", "id", target.ID, "error", err)
	}

	if in.Banned != nil && *in.Banned && !target.Banned && s.notifier != nil {
		if err := s.notifier.NotifyBanned(ctx, updated); err != nil {
			log.Warn("failed to send ban notification", "email", updated.Email, "error", err)
		}
	}
	return updated, nil
}

// DeleteSelf removes the actor's own account.
func (s *Service) DeleteSelf(ctx context.Context, actor *database.User) error {
	if actor == nil {
		return ErrForbidden
	}
	return s.remove(ctx, actor)
}

// DeleteByID removes another user. Only admins may delete users and nobody may delete itself this way.
func (s *Service) DeleteByID(ctx context.Context, actor *database.User, id uint) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}

	if err := s.policy.Authorize(actor, &database.User{ID: id}, policy.Change{Deletion: true}).Err(); err != nil {
		return err
	}

	target, err := s.repo.Find(ctx, Criteria{ID: id})
	if err != nil {
		return err
	}
	return s.remove(ctx, target)
}

func (s *Service) remove(ctx context.Context, user *database.User) error {
	err := s.repo.Remove(ctx, user)
	if errors.Is(err, ErrCacheInvalidation) {
		log.Warn("user removed but cache is stale", "id", user.ID, "error", err)
		return nil
	}
	return err
}

// Identity is what a user gets to see about itself.
type Identity struct {
	APIKey  string   `json:"apikey"`
	Email   string   `json:"email"`
	Domains []string `json:"domains"`
}

// Me returns the identity of the actor.
func (s *Service) Me(_ context.Context, actor *database.User) (*Identity, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	return NewIdentity(actor), nil
}

// NewIdentity builds the identity payload of a user.
func NewIdentity(u *database.User) *Identity {
	return &Identity{
		APIKey:  u.APIKey,
		Email:   u.Email,
		Domains: []string{},
	}
}

// Authenticate checks the credentials of a login attempt.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*database.User, error) {
	user, err := s.repo.Find(ctx, Criteria{Email: email})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(user, password) {
		return nil, ErrInvalidCredentials
	}
	if user.Banned {
		return nil, ErrBanned
	}
	return user, nil
}

func (s *Service) validateEmail(email string) error {
	if err := s.validate.Var(strings.TrimSpace(email), "required,email"); err != nil {
		return fmt.Errorf("%w: email is not valid", ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	return nil
}
