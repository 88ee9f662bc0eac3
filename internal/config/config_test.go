package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Auth.MaxFailedAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, time.Hour, cfg.Auth.ResetCodeExpiry)
	assert.Equal(t, "graduate.utm.my", cfg.Registration.StudentEmailDomain)
	assert.Equal(t, "utm.my", cfg.Registration.StaffEmailDomain)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Empty(t, cfg.Server.TrustedProxies)
	assert.Empty(t, cfg.Email.AWSRegion)
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_FAILED_LOGIN_ATTEMPTS", "3")
	t.Setenv("ACCOUNT_LOCKOUT_DURATION", "10m")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("SERVER_WRITE_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Auth.MaxFailedAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, cfg.Server.TrustedProxies)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 45*time.Second, cfg.Server.WriteTimeout)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCOUNT_LOCKOUT_DURATION", "half an hour")
	t.Setenv("DB_PORT", "five-four-three-two")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Run("jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		t.Setenv("DB_PASSWORD", "test")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET is required")
	})

	t.Run("db password", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
		t.Setenv("DB_PASSWORD", "")
		_, err := Load()
		assert.ErrorContains(t, err, "DB_PASSWORD is required")
	})
}

func TestLoad_RejectsZeroAttemptThreshold(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_FAILED_LOGIN_ATTEMPTS", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "MAX_FAILED_LOGIN_ATTEMPTS")
}

func TestLoad_ProductionRequiresSES(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-production-secret-that-is-long-enough")
	t.Setenv("DB_PASSWORD", "test")
	t.Setenv("ENV", "production")
	t.Setenv("AWS_REGION", "")

	_, err := Load()
	assert.ErrorContains(t, err, "AWS_REGION")
}

func TestValidateJWTSecret(t *testing.T) {
	assert.Error(t, validateJWTSecret("short", "development"))
	assert.NoError(t, validateJWTSecret("sixteen-chars-ok", "development"))
	assert.Error(t, validateJWTSecret("sixteen-chars-ok", "production"))
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "thriftin", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=thriftin sslmode=disable", c.DSN())
}
