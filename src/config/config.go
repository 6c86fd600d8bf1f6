// Package config loads service settings from SGS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DirectoryMemory    = "memory"
	DirectoryFirestore = "firestore"
	DirectoryPostgres  = "postgres"

	AuthFirebase = "firebase"
	AuthAuth0    = "auth0"

	WriteAtomic      = "atomic"
	WriteIndependent = "independent"
)

type Config struct {
	HTTPAddr    string   `env:"HTTP_ADDR" envDefault:"0.0.0.0:2525"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	Directory   string `env:"DIRECTORY" envDefault:"memory"`
	PostgresURL string `env:"POSTGRES_URL"`

	RedisAddr           string `env:"REDIS_ADDR"`
	RedisPassword       string `env:"REDIS_PASSWORD"`
	RedisDB             int    `env:"REDIS_DB" envDefault:"0"`
	NotificationChannel string `env:"NOTIFICATION_CHANNEL" envDefault:"notifications"`

	FirebaseProjectID   string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentials string `env:"FIREBASE_CREDENTIALS"`
	PushEnabled         bool   `env:"PUSH_ENABLED" envDefault:"false"`

	AuthProvider  string `env:"AUTH_PROVIDER" envDefault:"firebase"`
	Auth0Domain   string `env:"AUTH0_DOMAIN"`
	Auth0Audience string `env:"AUTH0_AUDIENCE"`

	OpenSearchAddresses []string `env:"OPENSEARCH_ADDRESSES" envSeparator:","`
	OpenSearchIndex     string   `env:"OPENSEARCH_INDEX" envDefault:"user-search"`

	WriteMode         string        `env:"WRITE_MODE" envDefault:"atomic"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"0s"`
	ReconcileOnRead   bool          `env:"RECONCILE_ON_READ" envDefault:"false"`

	// InboxSize caps how many users' notification lists stay cached, InboxTTL how long an idle one is kept.
	InboxSize int           `env:"INBOX_SIZE" envDefault:"10000"`
	InboxTTL  time.Duration `env:"INBOX_TTL" envDefault:"1h"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "SGS_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	var errs []error

	switch cfg.Directory {
	case DirectoryMemory, DirectoryFirestore:
	case DirectoryPostgres:
		if cfg.PostgresURL == "" {
			errs = append(errs, errors.New("SGS_POSTGRES_URL is required for the postgres directory"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown directory %q", cfg.Directory))
	}

	switch cfg.AuthProvider {
	case AuthFirebase:
	case AuthAuth0:
		if cfg.Auth0Domain == "" || cfg.Auth0Audience == "" {
			errs = append(errs, errors.New("SGS_AUTH0_DOMAIN and SGS_AUTH0_AUDIENCE are required for auth0"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth provider %q", cfg.AuthProvider))
	}

	if cfg.WriteMode != WriteAtomic && cfg.WriteMode != WriteIndependent {
		errs = append(errs, fmt.Errorf("unknown write mode %q", cfg.WriteMode))
	}
	if cfg.ReconcileInterval < 0 {
		errs = append(errs, errors.New("SGS_RECONCILE_INTERVAL must not be negative"))
	}
	if cfg.InboxSize <= 0 {
		errs = append(errs, errors.New("SGS_INBOX_SIZE must be positive"))
	}
	if cfg.InboxTTL < 0 {
		errs = append(errs, errors.New("SGS_INBOX_TTL must not be negative"))
	}
	return errors.Join(errs...)
}

// NeedsFirebase reports whether a Firebase app has to be initialised.
func (cfg Config) NeedsFirebase() bool {
	return cfg.Directory == DirectoryFirestore || cfg.AuthProvider == AuthFirebase || cfg.PushEnabled
}
