package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("SSO_PROVIDER_URL", "https://idp.example.com")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "ssogate", cfg.ClientID)
		require.Equal(t, "optimistic", cfg.Policy)
		require.Equal(t, 5*time.Minute, cfg.RefreshThreshold)
		require.Equal(t, 3, cfg.RefreshMaxAttempts)
		require.Equal(t, time.Second, cfg.RefreshBaseDelay)
		require.Equal(t, 10*time.Second, cfg.RequestTimeout)
		require.Equal(t, 3, cfg.MaxRedirects)
		require.Equal(t, 5*time.Minute, cfg.RedirectWindow)
		require.Equal(t, DriverSQLite, cfg.StoreDriver)
		require.Equal(t, []string{"openid", "profile"}, cfg.Scopes)
		require.Equal(t, 8080, cfg.Port)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("SSO_PROVIDER_URL", "https://idp.example.com")
		t.Setenv("SSO_POLICY", "strict")
		t.Setenv("SSO_REFRESH_THRESHOLD", "90s")
		t.Setenv("SSO_SCOPES", "profile:read,roles:read")
		t.Setenv("STORE_DRIVER", "redis")
		t.Setenv("STORE_REDIS_URL", "redis://cache:6379/2")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "strict", cfg.Policy)
		require.Equal(t, 90*time.Second, cfg.RefreshThreshold)
		require.Equal(t, []string{"profile:read", "roles:read"}, cfg.Scopes)
		require.Equal(t, DriverRedis, cfg.StoreDriver)
	})

	t.Run("provider url required", func(t *testing.T) {
		t.Setenv("SSO_PROVIDER_URL", "")
		_, err := LoadConfig()
		require.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			ProviderURL:        "https://idp.example.com",
			PublicURL:          "https://app.example.com",
			Policy:             "optimistic",
			RefreshMaxAttempts: 3,
			MaxRedirects:       3,
			StoreDriver:        DriverMemory,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative provider url", func(c *Config) { c.ProviderURL = "/idp" }},
		{"relative public url", func(c *Config) { c.PublicURL = "app.example.com" }},
		{"unknown policy", func(c *Config) { c.Policy = "lenient" }},
		{"no refresh attempts", func(c *Config) { c.RefreshMaxAttempts = 0 }},
		{"no redirects", func(c *Config) { c.MaxRedirects = 0 }},
		{"unknown driver", func(c *Config) { c.StoreDriver = "etcd" }},
		{"redis without url", func(c *Config) { c.StoreDriver = DriverRedis; c.RedisURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
