package mock

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jon4hz/shortlink/internal/database"
	"gorm.io/gorm"
)

var _ database.DB = (*MockDB)(nil)

// MockDB is a mock implementation of database.DB for testing.
type MockDB struct {
	mu sync.RWMutex

	// User storage
	users      map[uint]*database.User
	nextUserID uint

	// Link storage
	links      map[uint]*database.Link
	nextLinkID uint

	// Call counters
	FindUserCalls int

	// Error simulation
	FindUserError         error
	ListUsersError        error
	CountUsersError       error
	CreateUserError       error
	UpdateUserError       error
	DeleteUserError       error
	CountLinksByUserError error
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	return &MockDB{
		users:      make(map[uint]*database.User),
		nextUserID: 1,
		links:      make(map[uint]*database.Link),
		nextLinkID: 1,
	}
}

// Reset clears all data and errors from the mock database.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = make(map[uint]*database.User)
	m.nextUserID = 1
	m.links = make(map[uint]*database.Link)
	m.nextLinkID = 1
	m.FindUserCalls = 0

	m.FindUserError = nil
	m.ListUsersError = nil
	m.CountUsersError = nil
	m.CreateUserError = nil
	m.UpdateUserError = nil
	m.DeleteUserError = nil
	m.CountLinksByUserError = nil
}

// User operations

func (m *MockDB) FindUser(ctx context.Context, match database.UserMatch) (*database.User, error) {
	m.mu.Lock()
	m.FindUserCalls++
	m.mu.Unlock()

	if m.FindUserError != nil {
		return nil, m.FindUserError
	}
	if match.IsZero() {
		return nil, gorm.ErrRecordNotFound
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if match.ID != 0 && u.ID != match.ID {
			continue
		}
		if match.Email != "" && u.Email != database.NormalizeEmail(match.Email) {
			continue
		}
		if match.APIKey != "" && u.APIKey != match.APIKey {
			continue
		}
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockDB) filtered(search string) []database.User {
	search = strings.ToLower(search)
	result := make([]database.User, 0, len(m.users))
	for _, u := range m.users {
		if search == "" || strings.Contains(strings.ToLower(u.Email), search) {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *MockDB) ListUsers(ctx context.Context, search string, limit, offset int) ([]database.User, error) {
	if m.ListUsersError != nil {
		return nil, m.ListUsersError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.filtered(search)
	if offset >= len(all) {
		return []database.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MockDB) CountUsers(ctx context.Context, search string) (int64, error) {
	if m.CountUsersError != nil {
		return 0, m.CountUsersError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.filtered(search))), nil
}

func (m *MockDB) CreateUser(ctx context.Context, user *database.User) error {
	if m.CreateUserError != nil {
		return m.CreateUserError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = database.NormalizeEmail(user.Email)
	for _, u := range m.users {
		if u.Email == user.Email || (user.APIKey != "" && u.APIKey == user.APIKey) {
			return database.ErrDuplicate
		}
	}
	if user.Role == "" {
		user.Role = database.RoleUser
	}

	now := time.Now()
	user.ID = m.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	m.nextUserID++

	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockDB) UpdateUser(ctx context.Context, id uint, patch database.UserPatch) (*database.User, error) {
	if m.UpdateUserError != nil {
		return nil, m.UpdateUserError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}

	if patch.Email != nil {
		email := database.NormalizeEmail(*patch.Email)
		for _, other := range m.users {
			if other.ID != id && other.Email == email {
				return nil, database.ErrDuplicate
			}
		}
		u.Email = email
	}
	if patch.Password != nil {
		u.Password = *patch.Password
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Banned != nil {
		u.Banned = *patch.Banned
		if *patch.Banned {
			u.BannedByID = patch.BannedByID
		} else {
			u.BannedByID = nil
		}
	}
	u.UpdatedAt = time.Now()

	cp := *u
	return &cp, nil
}

func (m *MockDB) DeleteUser(ctx context.Context, id uint) (bool, error) {
	if m.DeleteUserError != nil {
		return false, m.DeleteUserError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	for lid, l := range m.links {
		if l.UserID != nil && *l.UserID == id {
			delete(m.links, lid)
		}
	}
	return true, nil
}

func (m *MockDB) ClearExpiredVerifications(ctx context.Context, asOf time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, u := range m.users {
		if !u.Verified && u.VerificationToken != nil && u.VerificationExpires != nil && u.VerificationExpires.Before(asOf) {
			u.VerificationToken = nil
			u.VerificationExpires = nil
			n++
		}
	}
	return n, nil
}

func (m *MockDB) GetUserStats(ctx context.Context) (*database.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &database.UserStats{
		TotalUsers: int64(len(m.users)),
		TotalLinks: int64(len(m.links)),
	}
	for _, u := range m.users {
		if u.Role == database.RoleAdmin {
			stats.AdminUsers++
		}
		if u.Banned {
			stats.BannedUsers++
		}
	}
	return stats, nil
}

// Link operations

func (m *MockDB) CreateLink(ctx context.Context, link *database.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.links {
		if l.Address == link.Address {
			return database.ErrDuplicate
		}
	}
	link.ID = m.nextLinkID
	m.nextLinkID++
	cp := *link
	m.links[link.ID] = &cp
	return nil
}

func (m *MockDB) CountLinksByUser(ctx context.Context, userIDs []uint) (map[uint]int64, error) {
	if m.CountLinksByUserError != nil {
		return nil, m.CountLinksByUserError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	counts := make(map[uint]int64)
	for _, l := range m.links {
		if l.UserID != nil && wanted[*l.UserID] {
			counts[*l.UserID]++
		}
	}
	return counts, nil
}

func (m *MockDB) Close() error {
	return nil
}

// Helpers for tests

// AddUser inserts a user as-is, bypassing normalization and duplicate checks.
func (m *MockDB) AddUser(user database.User) *database.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.ID == 0 {
		user.ID = m.nextUserID
	}
	if user.ID >= m.nextUserID {
		m.nextUserID = user.ID + 1
	}
	m.users[user.ID] = &user
	cp := user
	return &cp
}

// ErrSimulated is a generic error tests can use for error simulation.
var ErrSimulated = errors.New("simulated database error")
