package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:2525", cfg.HTTPAddr)
	assert.Equal(t, DirectoryMemory, cfg.Directory)
	assert.Equal(t, AuthFirebase, cfg.AuthProvider)
	assert.Equal(t, WriteAtomic, cfg.WriteMode)
	assert.Equal(t, "notifications", cfg.NotificationChannel)
	assert.Equal(t, "user-search", cfg.OpenSearchIndex)
	assert.Zero(t, cfg.ReconcileInterval)
	assert.False(t, cfg.ReconcileOnRead)
	assert.Equal(t, 10000, cfg.InboxSize)
	assert.Equal(t, time.Hour, cfg.InboxTTL)
	assert.True(t, cfg.NeedsFirebase())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SGS_HTTP_ADDR", "127.0.0.1:8080")
	t.Setenv("SGS_DIRECTORY", "postgres")
	t.Setenv("SGS_POSTGRES_URL", "postgres://localhost:5432/social")
	t.Setenv("SGS_AUTH_PROVIDER", "auth0")
	t.Setenv("SGS_AUTH0_DOMAIN", "example.eu.auth0.com")
	t.Setenv("SGS_AUTH0_AUDIENCE", "https://api.example.com")
	t.Setenv("SGS_WRITE_MODE", "independent")
	t.Setenv("SGS_RECONCILE_INTERVAL", "5m")
	t.Setenv("SGS_RECONCILE_ON_READ", "true")
	t.Setenv("SGS_CORS_ORIGINS", "http://localhost:3000,https://app.example.com")
	t.Setenv("SGS_OPENSEARCH_ADDRESSES", "http://localhost:9200")
	t.Setenv("SGS_REDIS_DB", "2")
	t.Setenv("SGS_INBOX_SIZE", "500")
	t.Setenv("SGS_INBOX_TTL", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
	assert.Equal(t, DirectoryPostgres, cfg.Directory)
	assert.Equal(t, WriteIndependent, cfg.WriteMode)
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	assert.True(t, cfg.ReconcileOnRead)
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.OpenSearchAddresses)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 500, cfg.InboxSize)
	assert.Equal(t, 10*time.Minute, cfg.InboxTTL)
	assert.False(t, cfg.NeedsFirebase())
}

func TestValidate(t *testing.T) {
	valid := Config{Directory: DirectoryMemory, AuthProvider: AuthFirebase, WriteMode: WriteAtomic, InboxSize: 100}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(cfg *Config)
	}{
		{"postgres without url", func(cfg *Config) { cfg.Directory = DirectoryPostgres }},
		{"unknown directory", func(cfg *Config) { cfg.Directory = "mongo" }},
		{"auth0 without domain", func(cfg *Config) { cfg.AuthProvider = AuthAuth0 }},
		{"unknown auth provider", func(cfg *Config) { cfg.AuthProvider = "ldap" }},
		{"unknown write mode", func(cfg *Config) { cfg.WriteMode = "eventual" }},
		{"negative interval", func(cfg *Config) { cfg.ReconcileInterval = -time.Second }},
		{"empty inbox", func(cfg *Config) { cfg.InboxSize = 0 }},
		{"negative inbox ttl", func(cfg *Config) { cfg.InboxTTL = -time.Minute }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SGS_RECONCILE_INTERVAL", "soon")
	_, err := Load()
	assert.Error(t, err)
}
