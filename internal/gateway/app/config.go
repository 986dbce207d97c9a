package app

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/guard"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	ProviderURL string   `env:"SSO_PROVIDER_URL,required"` // Required: identity provider base URL
	ClientID    string   `env:"SSO_CLIENT_ID" envDefault:"ssogate"`
	PublicURL   string   `env:"SSO_PUBLIC_URL" envDefault:"http://localhost:8080"` // External origin of the gateway
	LogoutURL   string   `env:"SSO_LOGOUT_URL"`                                    // Optional: provider logout page
	Scopes      []string `env:"SSO_SCOPES" envSeparator:"," envDefault:"openid,profile"`
	Policy      string   `env:"SSO_POLICY" envDefault:"optimistic"` // optimistic or strict

	RefreshThreshold   time.Duration `env:"SSO_REFRESH_THRESHOLD" envDefault:"5m"`
	RefreshMaxAttempts int           `env:"SSO_REFRESH_MAX_ATTEMPTS" envDefault:"3"`
	RefreshBaseDelay   time.Duration `env:"SSO_REFRESH_BASE_DELAY" envDefault:"1s"`
	RequestTimeout     time.Duration `env:"SSO_REQUEST_TIMEOUT" envDefault:"10s"`

	MaxRedirects   int           `env:"SSO_MAX_REDIRECTS" envDefault:"3"`
	RedirectWindow time.Duration `env:"SSO_REDIRECT_WINDOW" envDefault:"5m"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"` // sqlite, redis or memory
	SQLiteFile  string `env:"STORE_SQLITE_FILE" envDefault:"ssogate.db"`
	RedisURL    string `env:"STORE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix string `env:"STORE_REDIS_PREFIX" envDefault:"ssogate:"`
	SealKey     string `env:"STORE_SEAL_KEY"` // Optional: encrypts stored values when set

	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// LoadConfig reads the environment, after loading a .env file when one is
// present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.ProviderURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SSO_PROVIDER_URL must be an absolute URL, got %q", c.ProviderURL))
	}
	if u, err := url.Parse(c.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SSO_PUBLIC_URL must be an absolute URL, got %q", c.PublicURL))
	}
	if _, err := guard.ParsePolicy(c.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.RefreshMaxAttempts < 1 {
		errs = append(errs, errors.New("SSO_REFRESH_MAX_ATTEMPTS must be at least 1"))
	}
	if c.MaxRedirects < 1 {
		errs = append(errs, errors.New("SSO_MAX_REDIRECTS must be at least 1"))
	}

	switch c.StoreDriver {
	case DriverSQLite, DriverMemory:
	case DriverRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("STORE_REDIS_URL is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	return errors.Join(errs...)
}
