package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jon4hz/shortlink/internal/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type UserStoreTestSuite struct {
	suite.Suite
	db  *Client
	ctx context.Context
}

func (s *UserStoreTestSuite) SetupTest() {
	db, err := New(&config.DatabaseConfig{
		Type: config.DatabaseTypeSQLite,
		Path: filepath.Join(s.T().TempDir(), "test.db"),
	})
	s.Require().NoError(err)
	s.db = db
	s.ctx = context.Background()
}

func (s *UserStoreTestSuite) TearDownTest() {
	_ = s.db.Close()
}

func (s *UserStoreTestSuite) createUser(email string) *User {
	u := &User{Email: email, Password: "hash", APIKey: "key-" + email, Role: RoleUser}
	s.Require().NoError(s.db.CreateUser(s.ctx, u))
	return u
}

func (s *UserStoreTestSuite) TestCreateUser_NormalizesEmail() {
	u := s.createUser("  Alice@Example.COM ")
	s.Equal("alice@example.com", u.Email)

	found, err := s.db.FindUser(s.ctx, UserMatch{Email: "ALICE@example.com"})
	s.Require().NoError(err)
	s.Equal(u.ID, found.ID)
}

func (s *UserStoreTestSuite) TestCreateUser_Duplicate() {
	s.createUser("dup@example.com")
	err := s.db.CreateUser(s.ctx, &User{Email: "DUP@example.com", Password: "x", APIKey: "other"})
	s.ErrorIs(err, ErrDuplicate)
}

func (s *UserStoreTestSuite) TestFindUser_NotFound() {
	_, err := s.db.FindUser(s.ctx, UserMatch{ID: 42})
	s.ErrorIs(err, gorm.ErrRecordNotFound)

	_, err = s.db.FindUser(s.ctx, UserMatch{})
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *UserStoreTestSuite) TestListAndCount_Search() {
	for _, e := range []string{"alice@x.com", "bob@x.com", "malice@y.com", "carol@x.com"} {
		s.createUser(e)
	}

	users, err := s.db.ListUsers(s.ctx, "ALICE", 10, 0)
	s.Require().NoError(err)
	s.Equal([]string{"alice@x.com", "malice@y.com"}, lo.Map(users, func(u User, _ int) string { return u.Email }))

	total, err := s.db.CountUsers(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(2), total)

	page, err := s.db.ListUsers(s.ctx, "", 2, 1)
	s.Require().NoError(err)
	s.Equal([]string{"bob@x.com", "malice@y.com"}, lo.Map(page, func(u User, _ int) string { return u.Email }))

	total, err = s.db.CountUsers(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(int64(4), total)
}

func (s *UserStoreTestSuite) TestCountLinksByUser() {
	a := s.createUser("a@x.com")
	b := s.createUser("b@x.com")
	c := s.createUser("c@x.com")

	for i, owner := range []uint{a.ID, a.ID, b.ID} {
		s.Require().NoError(s.db.CreateLink(s.ctx, &Link{
			Address: "addr" + string(rune('a'+i)),
			Target:  "https://example.com",
			UserID:  lo.ToPtr(owner),
		}))
	}

	counts, err := s.db.CountLinksByUser(s.ctx, []uint{a.ID, b.ID, c.ID})
	s.Require().NoError(err)
	s.Equal(int64(2), counts[a.ID])
	s.Equal(int64(1), counts[b.ID])
	s.Equal(int64(0), counts[c.ID])

	empty, err := s.db.CountLinksByUser(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *UserStoreTestSuite) TestUpdateUser_BanAndUnban() {
	admin := s.createUser("admin@x.com")
	target := s.createUser("target@x.com")
	before := target.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	updated, err := s.db.UpdateUser(s.ctx, target.ID, UserPatch{Banned: lo.ToPtr(true), BannedByID: lo.ToPtr(admin.ID)})
	s.Require().NoError(err)
	s.True(updated.Banned)
	s.Require().NotNil(updated.BannedByID)
	s.Equal(admin.ID, *updated.BannedByID)
	s.True(updated.UpdatedAt.After(before))

	updated, err = s.db.UpdateUser(s.ctx, target.ID, UserPatch{Banned: lo.ToPtr(false), BannedByID: lo.ToPtr(admin.ID)})
	s.Require().NoError(err)
	s.False(updated.Banned)
	s.Nil(updated.BannedByID)
}

func (s *UserStoreTestSuite) TestUpdateUser_Errors() {
	s.createUser("one@x.com")
	two := s.createUser("two@x.com")

	_, err := s.db.UpdateUser(s.ctx, two.ID, UserPatch{Email: lo.ToPtr("ONE@x.com")})
	s.ErrorIs(err, ErrDuplicate)

	_, err = s.db.UpdateUser(s.ctx, 999, UserPatch{Role: lo.ToPtr(RoleAdmin)})
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *UserStoreTestSuite) TestDeleteUser_RemovesLinks() {
	u := s.createUser("gone@x.com")
	s.Require().NoError(s.db.CreateLink(s.ctx, &Link{Address: "gone", Target: "https://x.com", UserID: lo.ToPtr(u.ID)}))

	deleted, err := s.db.DeleteUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.True(deleted)

	counts, err := s.db.CountLinksByUser(s.ctx, []uint{u.ID})
	s.Require().NoError(err)
	s.Zero(counts[u.ID])

	deleted, err = s.db.DeleteUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.False(deleted)
}

func (s *UserStoreTestSuite) TestClearExpiredVerifications() {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	expired := &User{Email: "exp@x.com", Password: "x", APIKey: "k1", VerificationToken: lo.ToPtr("t1"), VerificationExpires: &past}
	pending := &User{Email: "pend@x.com", Password: "x", APIKey: "k2", VerificationToken: lo.ToPtr("t2"), VerificationExpires: &future}
	verified := &User{Email: "ver@x.com", Password: "x", APIKey: "k3", Verified: true, VerificationToken: lo.ToPtr("t3"), VerificationExpires: &past}
	for _, u := range []*User{expired, pending, verified} {
		s.Require().NoError(s.db.CreateUser(s.ctx, u))
	}

	n, err := s.db.ClearExpiredVerifications(s.ctx, time.Now())
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	got, err := s.db.FindUser(s.ctx, UserMatch{ID: expired.ID})
	s.Require().NoError(err)
	s.Nil(got.VerificationToken)
}

func (s *UserStoreTestSuite) TestGetUserStats() {
	s.createUser("a@x.com")
	admin := &User{Email: "root@x.com", Password: "x", APIKey: "root", Role: RoleAdmin}
	s.Require().NoError(s.db.CreateUser(s.ctx, admin))
	banned := &User{Email: "bad@x.com", Password: "x", APIKey: "bad", Banned: true}
	s.Require().NoError(s.db.CreateUser(s.ctx, banned))

	stats, err := s.db.GetUserStats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), stats.TotalUsers)
	s.Equal(int64(1), stats.AdminUsers)
	s.Equal(int64(1), stats.BannedUsers)
	s.Equal(int64(0), stats.TotalLinks)
}

func TestUserStoreTestSuite(t *testing.T) {
	suite.Run(t, new(UserStoreTestSuite))
}

func TestUserPatch_Fields(t *testing.T) {
	adminID := uint(7)

	fields := UserPatch{}.Fields()
	assert.Empty(t, fields)

	fields = UserPatch{Email: lo.ToPtr(" New@X.com"), Banned: lo.ToPtr(true), BannedByID: &adminID}.Fields()
	assert.Equal(t, "new@x.com", fields["email"])
	assert.Equal(t, true, fields["banned"])
	assert.Equal(t, &adminID, fields["banned_by_id"])

	fields = UserPatch{Banned: lo.ToPtr(false), BannedByID: &adminID}.Fields()
	v, ok := fields["banned_by_id"]
	require.True(t, ok)
	assert.Nil(t, v)
}
