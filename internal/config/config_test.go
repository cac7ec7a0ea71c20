package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("POSTGRES_HOST", "testhost")
	t.Setenv("COLLECTION_ASSIGN_TIMEOUT", "45m")
	t.Setenv("PRICING_MIN_SAMPLES_OVERRIDES", "Alpine:A110=9, bmw:m3=6")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "testhost", cfg.Database.Postgres.Host)
	assert.Equal(t, 45*time.Minute, cfg.Collection.AssignTimeout)
	assert.Equal(t, map[string]int{"alpine:a110": 9, "bmw:m3": 6}, cfg.Pricing.MinSamplesOverrides)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Engine.MaxWorkers)
	assert.Equal(t, 10*time.Second, cfg.Engine.FilterTimeout)
	assert.Equal(t, 3, cfg.Collection.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Collection.AssignTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Collection.ExpandCooldown)
	assert.Equal(t, 24*time.Hour, cfg.Collection.RecycleAfter)
	assert.Equal(t, 2, cfg.Collection.BonusJobs)
	assert.Equal(t, 3*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Pricing.RefreshWindow)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "sqlite")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("bad override", func(t *testing.T) {
		t.Setenv("PRICING_MIN_SAMPLES_OVERRIDES", "porsche=4")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, getEnv(tt.key, tt.defaultValue))
		})
	}
}

func TestGetEnvAsTypes(t *testing.T) {
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_BAD_INT", "twelve")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DURATION", "90s")

	assert.Equal(t, 12, getEnvAsInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvAsInt("TEST_BAD_INT", 1))
	assert.True(t, getEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvAsDuration("TEST_MISSING_DURATION", time.Second))
}

func TestPostgresDSN(t *testing.T) {
	pg := PostgresConfig{Host: "db", Port: "5432", Database: "trust", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@db:5432/trust?sslmode=disable", pg.PostgresDSN())
}
