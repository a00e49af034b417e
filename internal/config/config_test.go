package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `session_key: "secret"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Listen)
	assert.Equal(t, DatabaseTypeSQLite, cfg.Database.Type)
	assert.Equal(t, "./data/shortlink.db", cfg.Database.Path)
	assert.Equal(t, CacheTypeMemory, cfg.Cache.Type)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 10, cfg.Pagination.DefaultLimit)
	assert.Equal(t, 100, cfg.Pagination.MaxLimit)
	assert.False(t, cfg.Email.Enabled)
}

func TestLoad_SanitizesAdminEmails(t *testing.T) {
	path := writeConfig(t, `
session_key: "secret"
listen: " 127.0.0.1:8080/ "
admin_emails:
  - " Admin@Example.com "
  - ""
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, []string{"admin@example.com"}, cfg.AdminEmails)
	assert.True(t, cfg.IsAdminEmail("ADMIN@example.com"))
	assert.False(t, cfg.IsAdminEmail("user@example.com"))
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SessionKey: "secret",
			Database:   &DatabaseConfig{Type: DatabaseTypeSQLite, Path: "db"},
			Cache:      &CacheConfig{Type: CacheTypeMemory, TTL: time.Hour},
			Pagination: &PaginationConfig{DefaultLimit: 10, MaxLimit: 100},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing session key", mutate: func(c *Config) { c.SessionKey = "" }, wantErr: true},
		{name: "bad cron", mutate: func(c *Config) { c.VerificationCleanupSchedule = "* *" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Database.Type = DatabaseTypePostgres }, wantErr: true},
		{name: "unknown database", mutate: func(c *Config) { c.Database.Type = "oracle" }, wantErr: true},
		{name: "redis without url", mutate: func(c *Config) { c.Cache.Type = CacheTypeRedis }, wantErr: true},
		{name: "nil cache falls back to memory", mutate: func(c *Config) { c.Cache = nil }},
		{name: "default limit above max", mutate: func(c *Config) { c.Pagination.DefaultLimit = 500 }, wantErr: true},
		{name: "email without host", mutate: func(c *Config) { c.Email = &EmailConfig{Enabled: true} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := validateConfig(c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c.Cache)
		})
	}
}
