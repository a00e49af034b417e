package gravatar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jon4hz/shortlink/internal/config"
	"github.com/jon4hz/shortlink/internal/database"
	"github.com/samber/lo"
)

const baseURL = "https://www.gravatar.com/avatar/"

var (
	defaultImages = []string{"404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank"}
	ratings       = []string{"g", "pg", "r", "x"}
)

// Resolver builds avatar URLs for users.
type Resolver struct {
	cfg *config.GravatarConfig
}

// New returns a resolver. A nil or disabled config yields empty URLs.
func New(cfg *config.GravatarConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Enabled reports whether avatar URLs are generated.
func (r *Resolver) Enabled() bool {
	return r != nil && r.cfg != nil && r.cfg.Enabled
}

// URL returns the avatar URL of the email address, or "" if disabled.
func (r *Resolver) URL(email string) string {
	email = database.NormalizeEmail(email)
	if !r.Enabled() || email == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(email))
	u := baseURL + hex.EncodeToString(sum[:])

	params := url.Values{}
	if r.cfg.DefaultImage != "" {
		params.Add("d", r.cfg.DefaultImage)
	}
	if r.cfg.Rating != "" {
		params.Add("r", r.cfg.Rating)
	}
	if r.cfg.Size > 0 {
		params.Add("s", strconv.Itoa(r.cfg.Size))
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Validate checks the options of an enabled config.
func Validate(cfg *config.GravatarConfig) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if cfg.DefaultImage != "" && !lo.Contains(defaultImages, cfg.DefaultImage) {
		return fmt.Errorf("invalid gravatar default image %q", cfg.DefaultImage)
	}
	if cfg.Rating != "" && !lo.Contains(ratings, cfg.Rating) {
		return fmt.Errorf("invalid gravatar rating %q", cfg.Rating)
	}
	if cfg.Size != 0 && (cfg.Size < 1 || cfg.Size > 2048) {
		return fmt.Errorf("gravatar size must be between 1 and 2048, got %d", cfg.Size)
	}
	return nil
}
