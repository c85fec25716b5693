package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_URL", "")
	t.Setenv("NEXT_PUBLIC_APP_URL", "")

	cfg, err := Load("qawafel-crm")
	require.NoError(t, err)

	assert.Equal(t, "qawafel-crm", cfg.ServiceName)
	assert.Equal(t, "qawafel-crm", cfg.Metrics.Prefix)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Equal(t, logger.Warn, cfg.DB.LogLevel)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.SessionTTL)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, []string{"session_id", "request_id", "id"}, cfg.OTP.SessionIDFields)
	assert.False(t, cfg.Google.Enabled())
	assert.False(t, cfg.Server.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_URL", "https://crm.qawafel.sa/")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.sa, https://b.sa ,")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_REDIRECT_URL", "")
	t.Setenv("JWT_SIGNING_KEY", "")

	cfg, err := Load("qawafel-crm")
	require.NoError(t, err)

	assert.Equal(t, "https://crm.qawafel.sa", cfg.Server.AppURL)
	assert.True(t, cfg.Server.IsProduction())
	assert.Equal(t, 7, cfg.DB.MaxOpenConns)
	assert.Equal(t, logger.Silent, cfg.DB.LogLevel)
	assert.Equal(t, 2*time.Hour, cfg.JWT.SessionTTL)
	assert.Equal(t, []string{"https://a.sa", "https://b.sa"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Google.Enabled())
}

func TestGetEnvHelpersFallBack(t *testing.T) {
	t.Setenv("CRM_TEST_INT", "seven")
	t.Setenv("CRM_TEST_DURATION", "soon")
	t.Setenv("CRM_TEST_LIST", " , ")

	assert.Equal(t, 3, getEnvAsInt("CRM_TEST_INT", 3))
	assert.Equal(t, time.Minute, getEnvAsDuration("CRM_TEST_DURATION", time.Minute))
	assert.Equal(t, []string{"x"}, getEnvAsList("CRM_TEST_LIST", []string{"x"}))
	assert.Equal(t, "fallback", getEnv("CRM_TEST_UNSET_VARIABLE", "fallback"))
}
