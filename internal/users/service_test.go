package users

import (
	"context"
	"testing"
	"time"

	"github.com/jon4hz/shortlink/internal/cache"
	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/jon4hz/shortlink/internal/database/mock"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type recordingNotifier struct {
	welcomed []string
	banned   []string
}

func (n *recordingNotifier) NotifyWelcome(_ context.Context, u *database.User) error {
	n.welcomed = append(n.welcomed, u.Email)
	return nil
}

func (n *recordingNotifier) NotifyBanned(_ context.Context, u *database.User) error {
	n.banned = append(n.banned, u.Email)
	return nil
}

type ServiceTestSuite struct {
	suite.Suite
	db       *mock.MockDB
	svc      *Service
	notifier *recordingNotifier
	admin    *database.User
	ctx      context.Context
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = mock.NewMockDB()
	s.notifier = &recordingNotifier{}
	cfg := &config.Config{
		AdminEmails: []string{"root@x.com"},
		Pagination:  &config.PaginationConfig{DefaultLimit: 10, MaxLimit: 100},
	}
	repo := NewRepository(s.db, cache.NewUserCache(&config.CacheConfig{Type: config.CacheTypeMemory, TTL: time.Hour}),
		WithHashCost(bcrypt.MinCost), WithRetryDelay(time.Millisecond))
	s.svc = NewService(repo, cfg, WithNotifier(s.notifier))

	admin, err := repo.Create(s.ctx, NewUser{Email: "admin@x.com", Password: "adminpass", Role: database.RoleAdmin})
	s.Require().NoError(err)
	s.admin = admin
}

func (s *ServiceTestSuite) createUser(email string) *database.User {
	u, err := s.svc.Create(s.ctx, s.admin, CreateInput{Email: email, Password: "longenough1"})
	s.Require().NoError(err)
	return u
}

func (s *ServiceTestSuite) TestScenario() {
	b := s.createUser("b@x.com")
	s.Equal([]string{"b@x.com"}, s.notifier.welcomed)

	res, err := s.svc.List(s.ctx, s.admin, ListParams{Limit: 10, Search: "b@"})
	s.Require().NoError(err)
	s.Require().Len(res.Users, 1)
	s.Equal(b.ID, res.Users[0].ID)
	s.Equal(int64(0), res.Users[0].Links)
	s.Equal(int64(1), res.Total)

	_, err = s.svc.Edit(s.ctx, s.admin, b.ID, EditInput{Banned: lo.ToPtr(true)})
	s.Require().NoError(err)
	s.Equal([]string{"b@x.com"}, s.notifier.banned)

	got, err := s.svc.Repository().Find(s.ctx, Criteria{ID: b.ID})
	s.Require().NoError(err)
	s.True(got.Banned)
	s.Require().NotNil(got.BannedByID)
	s.Equal(s.admin.ID, *got.BannedByID)

	err = s.svc.DeleteByID(s.ctx, s.admin, s.admin.ID)
	s.ErrorIs(err, ErrSelfProtection)
}

func (s *ServiceTestSuite) TestNonAdminForbidden() {
	user := s.createUser("plain@x.com")

	_, err := s.svc.List(s.ctx, user, ListParams{Limit: 10})
	s.ErrorIs(err, ErrForbidden)
	_, err = s.svc.Create(s.ctx, user, CreateInput{Email: "n@x.com", Password: "longenough1"})
	s.ErrorIs(err, ErrForbidden)
	_, err = s.svc.Edit(s.ctx, user, s.admin.ID, EditInput{Banned: lo.ToPtr(true)})
	s.ErrorIs(err, ErrForbidden)
	s.ErrorIs(s.svc.DeleteByID(s.ctx, user, s.admin.ID), ErrForbidden)
	_, err = s.svc.List(s.ctx, nil, ListParams{Limit: 10})
	s.ErrorIs(err, ErrForbidden)
}

func (s *ServiceTestSuite) TestAdminEmailGrantsAdmin() {
	root, err := s.svc.Create(s.ctx, s.admin, CreateInput{Email: "ROOT@x.com", Password: "longenough1"})
	s.Require().NoError(err)
	s.Equal(database.RoleUser, root.Role)
	s.True(s.svc.IsAdmin(root))

	res, err := s.svc.List(s.ctx, root, ListParams{Limit: 10, Search: "root"})
	s.Require().NoError(err)
	s.Require().Len(res.Users, 1)
	s.Equal(database.RoleAdmin, res.Users[0].Role)
}

func (s *ServiceTestSuite) TestCreate_Validation() {
	tests := []struct {
		name string
		in   CreateInput
		err  error
	}{
		{"bad email", CreateInput{Email: "not-an-email", Password: "longenough1"}, ErrValidation},
		{"empty email", CreateInput{Email: "", Password: "longenough1"}, ErrValidation},
		{"short password", CreateInput{Email: "a@x.com", Password: "short"}, ErrValidation},
		{"invalid role", CreateInput{Email: "a@x.com", Password: "longenough1", Role: "owner"}, ErrInvalidRole},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.Create(s.ctx, s.admin, tt.in)
			s.ErrorIs(err, tt.err)
		})
	}

	s.createUser("a@x.com")
	_, err := s.svc.Create(s.ctx, s.admin, CreateInput{Email: "a@x.com", Password: "longenough1"})
	s.ErrorIs(err, ErrDuplicateEmail)
}

func (s *ServiceTestSuite) TestEdit_SelfProtection() {
	tests := []struct {
		name string
		in   EditInput
	}{
		{"ban self", EditInput{Banned: lo.ToPtr(true)}},
		{"unban self", EditInput{Banned: lo.ToPtr(false)}},
		{"demote self", EditInput{Role: lo.ToPtr("user")}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.Edit(s.ctx, s.admin, s.admin.ID, tt.in)
			s.ErrorIs(err, ErrSelfProtection)
		})
	}

	// editing own email is fine
	updated, err := s.svc.Edit(s.ctx, s.admin, s.admin.ID, EditInput{Email: lo.ToPtr("boss@x.com")})
	s.Require().NoError(err)
	s.Equal("boss@x.com", updated.Email)
}

func (s *ServiceTestSuite) TestEdit() {
	u := s.createUser("u@x.com")

	_, err := s.svc.Edit(s.ctx, s.admin, 999, EditInput{Banned: lo.ToPtr(true)})
	s.ErrorIs(err, ErrNotFound)

	_, err = s.svc.Edit(s.ctx, s.admin, u.ID, EditInput{Role: lo.ToPtr("root")})
	s.ErrorIs(err, ErrInvalidRole)

	_, err = s.svc.Edit(s.ctx, s.admin, u.ID, EditInput{Email: lo.ToPtr("nope")})
	s.ErrorIs(err, ErrValidation)

	_, err = s.svc.Edit(s.ctx, s.admin, u.ID, EditInput{Password: lo.ToPtr("short")})
	s.ErrorIs(err, ErrValidation)

	updated, err := s.svc.Edit(s.ctx, s.admin, u.ID, EditInput{Role: lo.ToPtr("admin"), Password: lo.ToPtr("newpassword")})
	s.Require().NoError(err)
	s.Equal(database.RoleAdmin, updated.Role)
	s.True(CheckPassword(updated, "newpassword"))

	_, err = s.svc.Edit(s.ctx, s.admin, u.ID, EditInput{Banned: lo.ToPtr(true)})
	s.Require().NoError(err)
	// banning an already banned user sends no second mail
	_, err = s.svc.Edit(s.ctx, s.admin, u.ID, EditInput{Banned: lo.ToPtr(true)})
	s.Require().NoError(err)
	s.Equal([]string{"u@x.com"}, s.notifier.banned)

	updated, err = s.svc.Edit(s.ctx, s.admin, u.ID, EditInput{Banned: lo.ToPtr(false)})
	s.Require().NoError(err)
	s.False(updated.Banned)
	s.Nil(updated.BannedByID)
}

func (s *ServiceTestSuite) TestDelete() {
	u := s.createUser("u@x.com")
	s.Require().NoError(s.svc.DeleteByID(s.ctx, s.admin, u.ID))
	s.ErrorIs(s.svc.DeleteByID(s.ctx, s.admin, u.ID), ErrNotFound)

	self := s.createUser("self@x.com")
	s.Require().NoError(s.svc.DeleteSelf(s.ctx, self))
	_, err := s.svc.Repository().Find(s.ctx, Criteria{ID: self.ID})
	s.ErrorIs(err, ErrNotFound)

	s.ErrorIs(s.svc.DeleteSelf(s.ctx, nil), ErrForbidden)
}

func (s *ServiceTestSuite) TestMe() {
	id, err := s.svc.Me(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Equal(s.admin.APIKey, id.APIKey)
	s.Equal("admin@x.com", id.Email)
	s.NotNil(id.Domains)
	s.Empty(id.Domains)

	_, err = s.svc.Me(s.ctx, nil)
	s.ErrorIs(err, ErrForbidden)
}

func (s *ServiceTestSuite) TestAuthenticate() {
	u := s.createUser("login@x.com")

	got, err := s.svc.Authenticate(s.ctx, "LOGIN@x.com", "longenough1")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	_, err = s.svc.Authenticate(s.ctx, "login@x.com", "wrongpassword")
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.svc.Authenticate(s.ctx, "nobody@x.com", "longenough1")
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.svc.Edit(s.ctx, s.admin, u.ID, EditInput{Banned: lo.ToPtr(true)})
	s.Require().NoError(err)
	_, err = s.svc.Authenticate(s.ctx, "login@x.com", "longenough1")
	s.ErrorIs(err, ErrBanned)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func TestParseListParams(t *testing.T) {
	p := &config.PaginationConfig{DefaultLimit: 10, MaxLimit: 100}

	tests := []struct {
		name                string
		limit, skip, search string
		want                ListParams
	}{
		{"defaults", "", "", "", ListParams{Limit: 10}},
		{"explicit", "25", "50", " alice ", ListParams{Limit: 25, Skip: 50, Search: "alice"}},
		{"limit clamped high", "1000", "0", "", ListParams{Limit: 100}},
		{"limit clamped low", "0", "", "", ListParams{Limit: 1}},
		{"negative limit", "-5", "", "", ListParams{Limit: 1}},
		{"negative skip", "10", "-3", "", ListParams{Limit: 10}},
		{"garbage", "abc", "xyz", "", ListParams{Limit: 10}},
		{"overflow", "99999999999999999999", "", "", ListParams{Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseListParams(tt.limit, tt.skip, tt.search, p))
		})
	}

	assert.Equal(t, ListParams{Limit: 10}, ParseListParams("", "", "", nil))
}
