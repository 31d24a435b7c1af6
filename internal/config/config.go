package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Carrier   CarrierConfig
	Geocoder  GeocoderConfig
	Political PoliticalConfig
	Calls     CallsConfig
}

type AppConfig struct {
	Env  string
	Port int

	// BaseURL is the externally reachable root the carrier fetches
	// webhooks from. Calls cannot proceed without it.
	BaseURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for hosted-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// CacheConfig selects the political-data cache backend.
type CacheConfig struct {
	// Backend is memory, redis or badger.
	Backend string

	// BadgerDir is the on-disk location for the badger backend.
	BadgerDir string
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// AdminUser and AdminPassword bootstrap the admin API login.
	AdminUser     string
	AdminPassword string
}

type CarrierConfig struct {
	AccountSID string
	AuthToken  string

	// BaseURL overrides the carrier API endpoint, for tests.
	BaseURL string
	Timeout time.Duration

	// RingTimeout is how long outbound and target calls ring, seconds.
	RingTimeout int

	// TimeLimit caps one bridged call, seconds.
	TimeLimit int
}

type GeocoderConfig struct {
	// Provider is "nominatim" (default, keyless) or "google".
	Provider string
	APIKey   string
	Timeout  time.Duration
}

type PoliticalConfig struct {
	// DataDir holds the bundled legislator and district CSVs.
	DataDir string

	// PromptFile optionally overrides the default message catalog.
	PromptFile string

	OpenStatesKey string
}

type CallsConfig struct {
	// LogPhoneNumbers opts into storing raw caller numbers alongside
	// their hashes.
	LogPhoneNumbers bool

	// ConcurrencyLimit caps simultaneous outbound calls per campaign.
	// Zero disables the limiter.
	ConcurrencyLimit int

	// LimiterTTL bounds slot leakage when a status callback is lost.
	LimiterTTL time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_BASE_URL")), "/")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optInt("REDIS_PORT", 6379)

	c.Cache.Backend = strings.TrimSpace(os.Getenv("CACHE_BACKEND"))
	c.Cache.BadgerDir = strings.TrimSpace(os.Getenv("CACHE_BADGER_DIR"))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")
	c.Auth.AdminUser = strings.TrimSpace(os.Getenv("ADMIN_USER"))
	c.Auth.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	c.Carrier.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Carrier.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Carrier.BaseURL = strings.TrimSpace(os.Getenv("TWILIO_BASE_URL"))
	c.Carrier.Timeout = mustDuration("TWILIO_TIMEOUT")
	c.Carrier.RingTimeout = optInt("CALL_RING_TIMEOUT", 25)
	c.Carrier.TimeLimit = optInt("CALL_TIME_LIMIT", 1800)

	c.Geocoder.Provider = strings.TrimSpace(os.Getenv("GEOCODER_PROVIDER"))
	c.Geocoder.APIKey = os.Getenv("GEOCODER_API_KEY")
	c.Geocoder.Timeout = mustDuration("GEOCODER_TIMEOUT")

	c.Political.DataDir = strings.TrimSpace(os.Getenv("POLITICAL_DATA_DIR"))
	c.Political.PromptFile = strings.TrimSpace(os.Getenv("POLITICAL_PROMPT_FILE"))
	c.Political.OpenStatesKey = os.Getenv("OPENSTATES_API_KEY")

	c.Calls.LogPhoneNumbers = os.Getenv("CALL_LOG_PHONE_NUMBERS") == "true"
	c.Calls.ConcurrencyLimit = optInt("CALL_CONCURRENCY_LIMIT", 0)
	c.Calls.LimiterTTL = mustDuration("CALL_LIMITER_TTL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.BaseURL == "" {
		errs = append(errs, errors.New("APP_BASE_URL is required; the carrier cannot reach webhooks without it"))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required with CACHE_BACKEND=redis"))
		}
	case "badger":
		if c.Cache.BadgerDir == "" {
			errs = append(errs, errors.New("CACHE_BADGER_DIR is required with CACHE_BACKEND=badger"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be one of memory, redis, badger, got %q", c.Cache.Backend))
	}
	if c.Calls.ConcurrencyLimit > 0 && c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required when CALL_CONCURRENCY_LIMIT is set"))
	}
	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Auth.AdminPassword == "" {
			errs = append(errs, errors.New("ADMIN_PASSWORD is required in production"))
		}
		if c.Carrier.AccountSID == "" || c.Carrier.AuthToken == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required in production"))
		}
	}
	if c.Auth.AdminUser == "" {
		c.Auth.AdminUser = "admin"
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Default: short-lived access tokens.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		// Default: longer-lived refresh tokens.
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Carrier.RingTimeout <= 0 || c.Carrier.RingTimeout > 600 {
		errs = append(errs, fmt.Errorf("CALL_RING_TIMEOUT must be between 1 and 600 seconds, got %d", c.Carrier.RingTimeout))
	}
	if c.Carrier.TimeLimit <= 0 {
		errs = append(errs, fmt.Errorf("CALL_TIME_LIMIT must be positive, got %d", c.Carrier.TimeLimit))
	}

	if c.Political.DataDir == "" {
		c.Political.DataDir = "data"
	}

	return joinErrors(errs)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c *Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
