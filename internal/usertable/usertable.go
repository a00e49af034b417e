// Package usertable holds the state of the admin user table: the page window,
// the fetched users, row selection and per-row operations. Every change goes
// through a named transition so the selection rules hold regardless of the
// frontend rendering it.
package usertable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ccoveille/go-safecast"
	"github.com/go-playground/validator/v10"
	"github.com/jon4hz/shortlink/pkg/shortlink"
	"github.com/samber/lo"
)

// LimitOptions are the page sizes offered to the user.
var LimitOptions = []int{10, 25, 50}

var (
	// ErrRowBusy is returned when an operation on the row is already in flight.
	ErrRowBusy = errors.New("an operation on this user is already running")
	// ErrRowNotFound is returned for ids that are not on the current page.
	ErrRowNotFound = errors.New("user is not on the current page")
	// ErrInvalidForm is returned when the create form fails validation.
	ErrInvalidForm = errors.New("invalid form")
)

// UsersAPI is the part of the shortlink API the table talks to.
type UsersAPI interface {
	ListUsers(ctx context.Context, opts shortlink.ListOptions) (*shortlink.UserList, error)
	CreateUser(ctx context.Context, req shortlink.CreateUserRequest) (*shortlink.Identity, error)
	EditUser(ctx context.Context, id uint, req shortlink.EditUserRequest) error
	DeleteUser(ctx context.Context, id uint) error
}

// Row is a snapshot of one table row.
type Row struct {
	User     shortlink.User
	Selected bool
	IsSelf   bool
	Loading  bool
	Message  string
}

type rowState struct {
	loading bool
	message string
}

// Model is the user table view model. It is safe for concurrent use; API
// calls run without holding the lock so rows can be worked on in parallel.
type Model struct {
	api       UsersAPI
	selfEmail string
	validate  *validator.Validate

	mu        sync.Mutex
	limit     int
	skip      int
	search    string
	users     []shortlink.User
	total     int64
	selected  map[uint]bool
	selectAll bool
	loading   bool
	message   string
	rows      map[uint]*rowState
}

// New creates a table for the actor with the given email.
func New(api UsersAPI, selfEmail string) *Model {
	return &Model{
		api:       api,
		selfEmail: normalize(selfEmail),
		validate:  validator.New(),
		limit:     LimitOptions[0],
		selected:  make(map[uint]bool),
		rows:      make(map[uint]*rowState),
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *Model) isSelf(u shortlink.User) bool {
	return m.selfEmail != "" && normalize(u.Email) == m.selfEmail
}

// Fetch loads the current page. On failure the previous rows are kept and
// the error is shown as the table message.
func (m *Model) Fetch(ctx context.Context) error {
	m.mu.Lock()
	m.loading = true
	opts := shortlink.ListOptions{Limit: m.limit, Skip: m.skip, Search: m.search}
	m.mu.Unlock()

	list, err := m.api.ListUsers(ctx, opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = false
	if err != nil {
		m.message = fmt.Sprintf("failed to load users: %v", err)
		return err
	}

	m.users = list.Data
	m.total = list.Total
	m.message = ""

	// keep the selection of rows that are still on the page
	ids := lo.SliceToMap(m.users, func(u shortlink.User) (uint, bool) { return u.ID, true })
	m.selected = lo.PickBy(m.selected, func(id uint, sel bool) bool { return sel && ids[id] })
	m.recomputeSelectAll()
	return nil
}

// SetSearch changes the search term, resets to the first page and refetches.
func (m *Model) SetSearch(ctx context.Context, search string) error {
	m.mu.Lock()
	m.search = strings.TrimSpace(search)
	m.skip = 0
	m.mu.Unlock()
	return m.Fetch(ctx)
}

// SetLimit changes the page size, resets to the first page and refetches.
func (m *Model) SetLimit(ctx context.Context, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidForm)
	}
	m.mu.Lock()
	m.limit = limit
	m.skip = 0
	m.mu.Unlock()
	return m.Fetch(ctx)
}

// NextPage moves one page forward. It is a no-op on the last page.
func (m *Model) NextPage(ctx context.Context) error {
	m.mu.Lock()
	if !m.hasNext() {
		m.mu.Unlock()
		return nil
	}
	m.skip += m.limit
	m.mu.Unlock()
	return m.Fetch(ctx)
}

// PrevPage moves one page back. It is a no-op on the first page.
func (m *Model) PrevPage(ctx context.Context) error {
	m.mu.Lock()
	if m.skip == 0 {
		m.mu.Unlock()
		return nil
	}
	m.skip = max(0, m.skip-m.limit)
	m.mu.Unlock()
	return m.Fetch(ctx)
}

func (m *Model) hasNext() bool {
	return int64(m.skip+m.limit) < m.total
}

// HasNext reports whether there is a page after the current one.
func (m *Model) HasNext() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasNext()
}

// HasPrev reports whether there is a page before the current one.
func (m *Model) HasPrev() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.skip > 0
}

// Page returns the 1-based current page and the number of pages.
func (m *Model) Page() (current, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total, err := safecast.ToInt(m.total)
	if err != nil || total == 0 {
		return 1, 1
	}
	return m.skip/m.limit + 1, (total + m.limit - 1) / m.limit
}

// Window returns the limit, skip and search of the current page.
func (m *Model) Window() (limit, skip int, search string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limit, m.skip, m.search
}

// Total returns the number of users matching the search.
func (m *Model) Total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Loading reports whether a fetch is running.
func (m *Model) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Message returns the table level message.
func (m *Model) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.message
}

// SelectAll reports the state of the select all toggle.
func (m *Model) SelectAll() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectAll
}

// Rows returns a snapshot of the current page.
func (m *Model) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Map(m.users, func(u shortlink.User, _ int) Row {
		r := Row{User: u, Selected: m.selected[u.ID], IsSelf: m.isSelf(u)}
		if st, ok := m.rows[u.ID]; ok {
			r.Loading = st.loading
			r.Message = st.message
		}
		return r
	})
}

func (m *Model) selectable() []shortlink.User {
	return lo.Reject(m.users, func(u shortlink.User, _ int) bool { return m.isSelf(u) })
}

func (m *Model) recomputeSelectAll() {
	rows := m.selectable()
	m.selectAll = len(rows) > 0 && lo.EveryBy(rows, func(u shortlink.User) bool { return m.selected[u.ID] })
}

// ToggleSelectAll flips the select all toggle and applies it to every row but the actor's own.
func (m *Model) ToggleSelectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectAll = !m.selectAll
	for _, u := range m.selectable() {
		if m.selectAll {
			m.selected[u.ID] = true
		} else {
			delete(m.selected, u.ID)
		}
	}
}

// ToggleRow flips the selection of a row. The actor's own row can't be selected.
func (m *Model) ToggleRow(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := lo.Find(m.users, func(u shortlink.User) bool { return u.ID == id })
	if !ok {
		return ErrRowNotFound
	}
	if m.isSelf(u) {
		return nil
	}
	if m.selected[id] {
		delete(m.selected, id)
	} else {
		m.selected[id] = true
	}
	m.recomputeSelectAll()
	return nil
}

// Selected returns the selected users in page order.
func (m *Model) Selected() []shortlink.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Filter(m.selectable(), func(u shortlink.User, _ int) bool { return m.selected[u.ID] })
}

// DeleteSelected deletes the selected users one after another. It stops at
// the first failure and reports it. The page is refetched in any case.
func (m *Model) DeleteSelected(ctx context.Context) (int, error) {
	var (
		deleted int
		failure error
	)
	for _, u := range m.Selected() {
		if err := m.api.DeleteUser(ctx, u.ID); err != nil {
			failure = fmt.Errorf("failed to delete %s: %w", u.Email, err)
			break
		}
		deleted++
	}

	fetchErr := m.Fetch(ctx)

	m.mu.Lock()
	if failure != nil {
		m.message = fmt.Sprintf("%v (%d deleted)", failure, deleted)
	} else if fetchErr == nil {
		m.message = fmt.Sprintf("%d users deleted", deleted)
	}
	m.mu.Unlock()

	if failure != nil {
		return deleted, failure
	}
	return deleted, fetchErr
}

// beginRow marks the row as in flight. It fails if it already is.
func (m *Model) beginRow(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !lo.ContainsBy(m.users, func(u shortlink.User) bool { return u.ID == id }) {
		return ErrRowNotFound
	}
	st, ok := m.rows[id]
	if !ok {
		st = &rowState{}
		m.rows[id] = st
	}
	if st.loading {
		return ErrRowBusy
	}
	st.loading = true
	st.message = ""
	return nil
}

func (m *Model) endRow(id uint, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.rows[id]; ok {
		st.loading = false
		st.message = msg
	}
}

// rowOp runs op for the row and refetches the page when it succeeds.
func (m *Model) rowOp(ctx context.Context, id uint, success string, op func() error) error {
	if err := m.beginRow(id); err != nil {
		return err
	}
	if err := op(); err != nil {
		m.endRow(id, err.Error())
		return err
	}
	m.endRow(id, success)
	return m.Fetch(ctx)
}

// Edit applies the changes to the user.
func (m *Model) Edit(ctx context.Context, id uint, req shortlink.EditUserRequest) error {
	return m.rowOp(ctx, id, "saved", func() error {
		return m.api.EditUser(ctx, id, req)
	})
}

// Ban bans the user.
func (m *Model) Ban(ctx context.Context, id uint) error {
	return m.rowOp(ctx, id, "banned", func() error {
		return m.api.EditUser(ctx, id, shortlink.EditUserRequest{Banned: lo.ToPtr(true)})
	})
}

// Unban lifts the ban of the user.
func (m *Model) Unban(ctx context.Context, id uint) error {
	return m.rowOp(ctx, id, "unbanned", func() error {
		return m.api.EditUser(ctx, id, shortlink.EditUserRequest{Banned: lo.ToPtr(false)})
	})
}

// Delete removes the user.
func (m *Model) Delete(ctx context.Context, id uint) error {
	err := m.rowOp(ctx, id, "deleted", func() error {
		return m.api.DeleteUser(ctx, id)
	})
	if err == nil {
		m.mu.Lock()
		delete(m.rows, id)
		delete(m.selected, id)
		m.mu.Unlock()
	}
	return err
}

// CreateForm is the input of the create dialog.
type CreateForm struct {
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
}

// Validate checks the form the same way the server will.
func (m *Model) Validate(form CreateForm) error {
	email := strings.TrimSpace(form.Email)
	switch {
	case email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidForm)
	case m.validate.Var(email, "email") != nil:
		return fmt.Errorf("%w: email is not valid", ErrInvalidForm)
	case form.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidForm)
	case form.Password != form.ConfirmPassword:
		return fmt.Errorf("%w: passwords do not match", ErrInvalidForm)
	case len(form.Password) < 8:
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidForm)
	}
	return nil
}

// Create validates the form, creates the user and refetches the page.
func (m *Model) Create(ctx context.Context, form CreateForm) (*shortlink.Identity, error) {
	if err := m.Validate(form); err != nil {
		return nil, err
	}

	identity, err := m.api.CreateUser(ctx, shortlink.CreateUserRequest{
		Email:    strings.TrimSpace(form.Email),
		Password: form.Password,
		Role:     form.Role,
	})
	if err != nil {
		m.mu.Lock()
		m.message = fmt.Sprintf("failed to create user: %v", err)
		m.mu.Unlock()
		return nil, err
	}

	if err := m.Fetch(ctx); err != nil {
		return identity, err
	}
	return identity, nil
}
