package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"API_PORT", "DATABASE_DRIVER", "CRM_TIMEZONE", "IMPORT_MAX_ROWS", "CORS_ALLOWED_ORIGINS", "METRICS_ENABLED", "SENTRY_ENVIRONMENT", "API_ENVIRONMENT"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "Asia/Kolkata", cfg.CRMTimezone)
	assert.Equal(t, 10000, cfg.ImportMaxRows)
	assert.Equal(t, 100, cfg.ImportBatchSize)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "leadcrm:", cfg.RedisNamespace)
	assert.Equal(t, "development", cfg.SentryEnvironment)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("API_ENVIRONMENT", "production")
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("PUBLIC_LEADS_PER_MINUTE", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://crm.example.com, ,https://admin.example.com")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("SENTRY_ENVIRONMENT", "")

	cfg := FromEnv()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, 3, cfg.PublicLeadsPerMinute)
	assert.Equal(t, []string{"https://crm.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "production", cfg.SentryEnvironment)
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("IMPORT_BATCH_SIZE", "lots")
	t.Setenv("METRICS_ENABLED", "maybe")

	assert.Equal(t, 100, getEnvAsInt("IMPORT_BATCH_SIZE", 100))
	assert.True(t, getEnvAsBool("METRICS_ENABLED", true))
	assert.Equal(t, "fallback", getEnv("LEADCRM_UNSET_KEY", "fallback"))
}
