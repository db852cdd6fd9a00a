package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "database:\n  driver: memory\n"))
	t.Setenv("DONATION_JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 5.0, cfg.Broadcast.DefaultRadiusMiles)
	assert.Equal(t, 7*24*time.Hour, cfg.VisibilityWindow())
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "@daily", cfg.Jobs.OutboxCleanup)
	assert.Equal(t, 24*time.Hour, cfg.CORS.MaxAge)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "server:\n  port: 9000\nbroadcast:\n  default_radius_miles: 10\n"))
	t.Setenv("DONATION_JWT_SECRET", "s3cret")
	t.Setenv("DONATION_DB_PASSWORD", "hunter2")
	t.Setenv("DONATION_SERVER_PORT", "9100")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 10.0, cfg.Broadcast.DefaultRadiusMiles)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Contains(t, cfg.Database.DSN(), "password=hunter2")
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "log:\n  level: debug\n"))
	t.Setenv("DONATION_JWT_SECRET", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "jwt.secret")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{Port: 8080},
			Database:  DatabaseConfig{Driver: "postgres"},
			JWT:       JWTConfig{Secret: "x"},
			Broadcast: BroadcastConfig{DefaultRadiusMiles: 5, VisibilityDays: 7},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"zero radius", func(c *Config) { c.Broadcast.DefaultRadiusMiles = 0 }, "default_radius_miles"},
		{"zero visibility", func(c *Config) { c.Broadcast.VisibilityDays = 0 }, "visibility_days"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
