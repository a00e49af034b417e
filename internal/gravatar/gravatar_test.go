package gravatar

import (
	"testing"

	"github.com/jon4hz/shortlink/internal/config"
	"github.com/stretchr/testify/assert"
)

const testHash = "973dfe463ec85785f5f95af5ba3906eedb2d931c24e69824a89ea65dba4e813b"

func TestResolver_URL(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		config   *config.GravatarConfig
		expected string
	}{
		{
			name:   "disabled",
			email:  "test@example.com",
			config: &config.GravatarConfig{Enabled: false},
		},
		{
			name:  "nil config",
			email: "test@example.com",
		},
		{
			name:   "empty email",
			email:  "  ",
			config: &config.GravatarConfig{Enabled: true},
		},
		{
			name:     "plain",
			email:    "test@example.com",
			config:   &config.GravatarConfig{Enabled: true},
			expected: baseURL + testHash,
		},
		{
			name:  "all options and normalization",
			email: " TEST@EXAMPLE.COM ",
			config: &config.GravatarConfig{
				Enabled:      true,
				DefaultImage: "identicon",
				Rating:       "pg",
				Size:         120,
			},
			expected: baseURL + testHash + "?d=identicon&r=pg&s=120",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.config).URL(tt.email))
		})
	}

	var r *Resolver
	assert.Empty(t, r.URL("test@example.com"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.GravatarConfig
		wantErr bool
	}{
		{"nil", nil, false},
		{"disabled ignores garbage", &config.GravatarConfig{Rating: "nc17"}, false},
		{"valid", &config.GravatarConfig{Enabled: true, DefaultImage: "mp", Rating: "g", Size: 80}, false},
		{"bad image", &config.GravatarConfig{Enabled: true, DefaultImage: "MP"}, true},
		{"bad rating", &config.GravatarConfig{Enabled: true, Rating: "PG"}, true},
		{"too large", &config.GravatarConfig{Enabled: true, Size: 2049}, true},
		{"negative", &config.GravatarConfig{Enabled: true, Size: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
