package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Review   ReviewConfig   `mapstructure:"review"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port"                     validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level"                validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// Driver selects the Card Store adapter; URL is a PostgreSQL connection string
// or an SQLite file DSN.
type DatabaseConfig struct {
	Driver                 string `mapstructure:"driver"                    validate:"required,oneof=postgres sqlite"`
	URL                    string `mapstructure:"url"                       validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"            validate:"gt=0"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"            validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gt=0"`
}

// AuthConfig contains bearer-token verification settings. Tokens are issued by
// the platform's identity service; an empty secret disables verification.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}

// Enabled reports whether requests must carry a valid bearer token.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// ReviewConfig holds due-queue limits and scheduler overrides.
type ReviewConfig struct {
	DefaultDueLimit      int     `mapstructure:"default_due_limit"      validate:"gt=0"`
	MaxDueLimit          int     `mapstructure:"max_due_limit"          validate:"gtefield=DefaultDueLimit"`
	MinEaseFactor        float64 `mapstructure:"min_ease_factor"        validate:"gt=0"`
	MaxEaseFactor        float64 `mapstructure:"max_ease_factor"        validate:"gtefield=MinEaseFactor"`
	AgainIntervalMinutes int     `mapstructure:"again_interval_minutes" validate:"gt=0"`
}
