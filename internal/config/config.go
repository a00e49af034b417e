package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

type DatabaseType string

const (
	DatabaseTypeSQLite   DatabaseType = "sqlite"
	DatabaseTypePostgres DatabaseType = "postgres"
)

// Config holds the configuration for the shortlink server and its dependencies.
type Config struct {
	// Listen is the address the server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the public base URL of the server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// SessionKey is the key used to sign session cookies.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// AdminEmails lists accounts that are always treated as admins, regardless of their stored role.
	AdminEmails []string `yaml:"admin_emails" mapstructure:"admin_emails"`
	// VerificationCleanupSchedule is the cron schedule for clearing expired verification tokens.
	VerificationCleanupSchedule string `yaml:"verification_cleanup_schedule" mapstructure:"verification_cleanup_schedule"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Cache holds the cache engine configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Pagination holds the limits for list endpoints.
	Pagination *PaginationConfig `yaml:"pagination" mapstructure:"pagination"`
	// Email holds the email notification configuration.
	Email *EmailConfig `yaml:"email" mapstructure:"email"`
	// Gravatar holds the configuration for Gravatar profile pictures.
	Gravatar *GravatarConfig `yaml:"gravatar" mapstructure:"gravatar"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Type selects the driver ("sqlite" or "postgres").
	Type DatabaseType `yaml:"type" mapstructure:"type"`
	// Path is the path to the database file (sqlite only).
	Path string `yaml:"path" mapstructure:"path"`
	// DSN is the connection string (postgres only).
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the address of the Redis server if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// TTL bounds how long a cached user may lag behind the database.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// PaginationConfig holds the defaults for paginated listings.
type PaginationConfig struct {
	// DefaultLimit is used when a request doesn't specify a limit.
	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit"`
	// MaxLimit is the upper bound for a requested limit.
	MaxLimit int `yaml:"max_limit" mapstructure:"max_limit"`
}

// EmailConfig holds the email notification configuration.
type EmailConfig struct {
	// Enabled indicates whether email notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// SMTPHost is the SMTP server host.
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host"`
	// SMTPPort is the SMTP server port.
	SMTPPort int `yaml:"smtp_port" mapstructure:"smtp_port"`
	// Username is the SMTP username.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the SMTP password.
	Password string `yaml:"password" mapstructure:"password"`
	// FromEmail is the sender address.
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
	// FromName is the sender display name.
	FromName string `yaml:"from_name" mapstructure:"from_name"`
	// UseTLS enables STARTTLS.
	UseTLS bool `yaml:"use_tls" mapstructure:"use_tls"`
	// UseSSL enables implicit TLS.
	UseSSL bool `yaml:"use_ssl" mapstructure:"use_ssl"`
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// GravatarConfig holds the configuration for Gravatar profile pictures.
type GravatarConfig struct {
	// Enabled indicates whether Gravatar support is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultImage is the default image to use when no Gravatar is found.
	DefaultImage string `yaml:"default_image" mapstructure:"default_image"`
	// Rating is the maximum rating for Gravatar images.
	Rating string `yaml:"rating" mapstructure:"rating"`
	// Size is the size of the Gravatar image in pixels (1-2048).
	Size int `yaml:"size" mapstructure:"size"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("SHORTLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.shortlink")
		v.AddConfigPath("/etc/shortlink")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:3000")
	v.SetDefault("server_url", "http://localhost:3000")
	v.SetDefault("session_max_age", 172800) // 48 hour
	v.SetDefault("session_key", "")
	v.SetDefault("admin_emails", []string{})
	v.SetDefault("verification_cleanup_schedule", "0 * * * *")

	// Database defaults
	v.SetDefault("database.type", DatabaseTypeSQLite)
	v.SetDefault("database.path", "./data/shortlink.db")
	v.SetDefault("database.dsn", "")

	// Cache defaults
	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", time.Hour)

	// Pagination defaults
	v.SetDefault("pagination.default_limit", 10)
	v.SetDefault("pagination.max_limit", 100)

	// Email defaults
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_email", "")
	v.SetDefault("email.from_name", "Shortlink")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.insecure_skip_verify", false)

	// Gravatar defaults
	v.SetDefault("gravatar.enabled", false)
	v.SetDefault("gravatar.default_image", "identicon")
	v.SetDefault("gravatar.rating", "g")
	v.SetDefault("gravatar.size", 80)
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing shortlink config")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}

	if c.VerificationCleanupSchedule != "" && len(strings.Fields(c.VerificationCleanupSchedule)) != 5 {
		return fmt.Errorf("verification cleanup schedule must be a valid cron expression with 5 fields (minute hour day month weekday)")
	}

	if c.Database == nil {
		return fmt.Errorf("missing database config")
	}
	switch c.Database.Type {
	case DatabaseTypeSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required when using sqlite")
		}
	case DatabaseTypePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required when using postgres")
		}
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required when cache is enabled")
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
		if c.Cache.TTL <= 0 {
			c.Cache.TTL = time.Hour
		}
	} else {
		c.Cache = &CacheConfig{
			Type: CacheTypeMemory,
			TTL:  time.Hour,
		}
	}

	if c.Pagination == nil {
		c.Pagination = &PaginationConfig{DefaultLimit: 10, MaxLimit: 100}
	}
	if c.Pagination.MaxLimit <= 0 {
		return fmt.Errorf("pagination max limit must be greater than 0")
	}
	if c.Pagination.DefaultLimit <= 0 || c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		return fmt.Errorf("pagination default limit must be between 1 and %d", c.Pagination.MaxLimit)
	}

	if c.Email != nil && c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required when email is enabled") //nolint:staticcheck
		}
		if c.Email.FromEmail == "" {
			return fmt.Errorf("from email is required when email is enabled")
		}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)

	if c.ServerURL != "" {
		c.ServerURL = urlSanitize(c.ServerURL)
	}

	emails := make([]string, 0, len(c.AdminEmails))
	for _, e := range c.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails = append(emails, e)
		}
	}
	c.AdminEmails = emails
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// IsAdminEmail reports whether the email is listed in admin_emails.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}
