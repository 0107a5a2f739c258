package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/aussiebroadwan/tracker/internal/auth/domain"
	"github.com/aussiebroadwan/tracker/pkg/httpx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrConfig wraps every configuration problem found at startup.
var ErrConfig = errors.New("app: invalid configuration")

// Common is the configuration shared by every command, including the ones
// that only touch the database.
type Common struct {
	Env          string `env:"ENV" envDefault:"dev"`                    // dev, staging, prod
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`             // debug, info, warn, error
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"`            // json, text
	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"` // SQLite database file
	PepperFile   string `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`    // Generated if missing
}

// Config is everything serve needs.
type Config struct {
	Common

	Port                 int           `env:"PORT" envDefault:"8080"`                 // HTTP server port
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"` // Graceful shutdown timeout
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`  // Reset token purge interval

	// Debug returns reset tokens from forgot-password, outside prod only
	Debug bool `env:"AUTH_DEBUG"`

	JWTSecret            string `env:"AUTH_JWT_SECRET,required"`
	JWTIssuer            string `env:"AUTH_JWT_ISSUER,required"`
	JWTAudience          string `env:"AUTH_JWT_AUDIENCE,required"`
	JWTExpirationMinutes int    `env:"AUTH_JWT_EXPIRATION_MINUTES" envDefault:"60"`
	RefreshTokenDays     int    `env:"AUTH_REFRESH_TOKEN_DAYS" envDefault:"7"`

	MaxFailedAttempts      int           `env:"AUTH_MAX_FAILED_ATTEMPTS" envDefault:"5"`
	LockoutWindow          time.Duration `env:"AUTH_LOCKOUT_WINDOW" envDefault:"15m"`           // Per-IP sliding window
	AccountLockoutDuration time.Duration `env:"AUTH_ACCOUNT_LOCKOUT_DURATION" envDefault:"15m"` // Per-account lockout
	ResetTokenTTL          time.Duration `env:"AUTH_RESET_TOKEN_TTL" envDefault:"1h"`

	// Optional: share the per-IP attempt counter between replicas
	RedisURL string `env:"REDIS_URL"`

	// Proxies (addresses or CIDRs) whose X-Forwarded-For is believed. Empty
	// keys every request on its socket peer.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Optional: create this admin on startup if no account has the email
	SeedAdminEmail    string `env:"AUTH_SEED_ADMIN_EMAIL"`
	SeedAdminPassword string `env:"AUTH_SEED_ADMIN_PASSWORD"`
}

// LoadConfig reads envFile when it exists, without overriding variables
// already set, then parses the process environment.
func LoadConfig(envFile string) (Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}
	return ParseConfig(env.ToMap(os.Environ()))
}

// LoadCommon is LoadConfig for commands that never serve requests. It
// requires no JWT settings.
func LoadCommon(envFile string) (Common, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Common{}, err
	}
	var c Common
	if err := env.Parse(&c); err != nil {
		return Common{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return c, nil
}

func loadEnvFile(envFile string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: load %s: %v", ErrConfig, envFile, err)
	}
	return nil
}

// ParseConfig builds a Config from environ alone.
func ParseConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values the tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.JWTExpirationMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_JWT_EXPIRATION_MINUTES must be positive"))
	}
	if c.RefreshTokenDays <= 0 {
		errs = append(errs, errors.New("AUTH_REFRESH_TOKEN_DAYS must be positive"))
	}
	if c.MaxFailedAttempts <= 0 {
		errs = append(errs, errors.New("AUTH_MAX_FAILED_ATTEMPTS must be positive"))
	}
	if c.LockoutWindow <= 0 || c.AccountLockoutDuration <= 0 || c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("lockout and reset durations must be positive"))
	}
	if (c.SeedAdminEmail == "") != (c.SeedAdminPassword == "") {
		errs = append(errs, errors.New("AUTH_SEED_ADMIN_EMAIL and AUTH_SEED_ADMIN_PASSWORD must be set together"))
	}
	if _, err := httpx.NewClientIPResolver(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the service runs with ENV=prod.
func (c Common) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// ExposeResetToken reports whether forgot-password may return the token.
func (c Config) ExposeResetToken() bool {
	return c.Debug && !c.IsProduction()
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTExpirationMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

func (c Config) LockoutPolicy() domain.LockoutPolicy {
	return domain.LockoutPolicy{
		MaxFailedAttempts: c.MaxFailedAttempts,
		Duration:          c.AccountLockoutDuration,
	}
}
