package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jon4hz/shortlink/internal/cache"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// DefaultHashCost is the bcrypt cost used for new passwords.
const DefaultHashCost = 12

// verificationTTL is how long a fresh verification token stays valid.
const verificationTTL = 60 * time.Minute

// Cache is the key value store shadowing user rows.
type Cache interface {
	Get(ctx context.Context, identity string) (*database.User, error)
	Set(ctx context.Context, identity string, user *database.User) error
	Delete(ctx context.Context, identity string) error
}

// Criteria selects a single user. Zero values are ignored.
type Criteria struct {
	ID     uint
	Email  string
	APIKey string
}

func (c Criteria) match() database.UserMatch {
	return database.UserMatch{ID: c.ID, Email: c.Email, APIKey: c.APIKey}
}

// matches reports whether a cached user satisfies every set field.
func (c Criteria) matches(u *database.User) bool {
	if c.ID != 0 && u.ID != c.ID {
		return false
	}
	if c.Email != "" && u.Email != database.NormalizeEmail(c.Email) {
		return false
	}
	if c.APIKey != "" && u.APIKey != c.APIKey {
		return false
	}
	return true
}

func (c Criteria) cacheKeys() []string {
	keys := make([]string, 0, 2)
	if c.Email != "" {
		keys = append(keys, database.NormalizeEmail(c.Email))
	}
	if c.APIKey != "" {
		keys = append(keys, c.APIKey)
	}
	return keys
}

// Filter narrows a listing.
type Filter struct {
	Search string
}

// Page is an offset based window.
type Page struct {
	Limit int
	Skip  int
}

// NewUser is the input for Create.
type NewUser struct {
	Email    string
	Password string
	Role     database.Role
}

// Patch holds the fields of an update. Password is plain text and hashed before storing.
type Patch struct {
	Email      *string
	Password   *string
	Role       *database.Role
	Banned     *bool
	BannedByID *uint
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) RepositoryOption {
	return func(r *Repository) {
		r.hashCost = cost
	}
}

// WithRetryDelay sets the pause before a failed cache invalidation is retried.
func WithRetryDelay(d time.Duration) RepositoryOption {
	return func(r *Repository) {
		r.retryDelay = d
	}
}

// Repository reads and writes users, keeping the cache coherent with the database.
type Repository struct {
	db         database.DB
	cache      Cache
	hashCost   int
	retryDelay time.Duration
}

// NewRepository creates a new user repository.
func NewRepository(db database.DB, c Cache, opts ...RepositoryOption) *Repository {
	r := &Repository{
		db:         db,
		cache:      c,
		hashCost:   DefaultHashCost,
		retryDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func storeError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, database.ErrDuplicate) {
		return ErrDuplicateEmail
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Find returns the user matching the criteria.
// Lookups by email or apikey are served from the cache when possible.
func (r *Repository) Find(ctx context.Context, criteria Criteria) (*database.User, error) {
	for _, key := range criteria.cacheKeys() {
		user, err := r.cache.Get(ctx, key)
		if err != nil {
			if !cache.IsMiss(err) {
				log.Warn("failed to read user from cache", "error", err)
			}
			continue
		}
		if criteria.matches(user) {
			return user, nil
		}
	}

	user, err := r.db.FindUser(ctx, criteria.match())
	if err != nil {
		return nil, storeError(err)
	}

	r.populate(ctx, user)
	return user, nil
}

// populate caches the user under its email and apikey.
func (r *Repository) populate(ctx context.Context, user *database.User) {
	for _, key := range identities(user) {
		if err := r.cache.Set(ctx, key, user); err != nil {
			log.Warn("failed to cache user", "id", user.ID, "error", err)
		}
	}
}

func identities(user *database.User) []string {
	return lo.Compact([]string{user.Email, user.APIKey})
}

// List returns a page of users and the total under the same filter.
// Every user carries its live link count.
func (r *Repository) List(ctx context.Context, filter Filter, page Page) ([]database.User, int64, error) {
	search := strings.TrimSpace(filter.Search)

	var (
		users []database.User
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = r.db.ListUsers(gctx, search, page.Limit, page.Skip)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = r.db.CountUsers(gctx, search)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, storeError(err)
	}

	if len(users) == 0 {
		return []database.User{}, total, nil
	}

	counts, err := r.db.CountLinksByUser(ctx, lo.Map(users, func(u database.User, _ int) uint { return u.ID }))
	if err != nil {
		return nil, 0, storeError(err)
	}
	for i := range users {
		users[i].Links = counts[users[i].ID]
	}
	return users, total, nil
}

// Create hashes the password and stores a new user with a fresh apikey.
func (r *Repository) Create(ctx context.Context, input NewUser) (*database.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), r.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := input.Role
	if role == "" {
		role = database.RoleUser
	}
	expires := time.Now().Add(verificationTTL)
	user := &database.User{
		Email:               database.NormalizeEmail(input.Email),
		Password:            string(hash),
		APIKey:              generateAPIKey(),
		Role:                role,
		Verified:            true,
		VerificationToken:   lo.ToPtr(uuid.NewString()),
		VerificationExpires: &expires,
	}

	if err := r.db.CreateUser(ctx, user); err != nil {
		return nil, storeError(err)
	}
	log.Info("Created user", "id", user.ID, "email", user.Email, "role", user.Role)
	return user, nil
}

// Update applies the patch to the matching user and drops the cache entries of
// the old email and apikey. If the cache cannot be cleared the updated user is
// still returned together with an error wrapping ErrCacheInvalidation.
func (r *Repository) Update(ctx context.Context, criteria Criteria, patch Patch) (*database.User, error) {
	old, err := r.db.FindUser(ctx, criteria.match())
	if err != nil {
		return nil, storeError(err)
	}

	dbPatch := database.UserPatch{
		Email:      patch.Email,
		Role:       patch.Role,
		Banned:     patch.Banned,
		BannedByID: patch.BannedByID,
	}
	if patch.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), r.hashCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		dbPatch.Password = lo.ToPtr(string(hash))
	}

	updated, err := r.db.UpdateUser(ctx, old.ID, dbPatch)
	if err != nil {
		return nil, storeError(err)
	}

	if err := r.invalidate(ctx, old); err != nil {
		return updated, err
	}
	return updated, nil
}

// Remove deletes the user and its links and drops its cache entries.
func (r *Repository) Remove(ctx context.Context, user *database.User) error {
	deleted, err := r.db.DeleteUser(ctx, user.ID)
	if err != nil {
		return storeError(err)
	}
	if !deleted {
		return ErrNotFound
	}
	log.Info("Removed user", "id", user.ID, "email", user.Email)
	return r.invalidate(ctx, user)
}

// invalidate deletes the cache entries of the user, retrying once on failure.
func (r *Repository) invalidate(ctx context.Context, user *database.User) error {
	var errs []error
	for _, key := range identities(user) {
		op := func() error {
			return r.cache.Delete(ctx, key)
		}
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryDelay), 1), ctx)
		err := backoff.RetryNotify(op, b, func(err error, d time.Duration) {
			log.Warn("failed to invalidate cached user, retrying", "id", user.ID, "retry_in", d, "error", err)
		})
		if err != nil {
			log.Error("failed to invalidate cached user", "id", user.ID, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrCacheInvalidation, errors.Join(errs...))
	}
	return nil
}

// CheckPassword compares a plain text password with the stored hash.
func CheckPassword(user *database.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

func generateAPIKey() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
