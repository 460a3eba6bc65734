package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearSouqEnv unsets every SOUQ_ variable for the duration of the test
func clearSouqEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "SOUQ_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearSouqEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "souq-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "http://localhost:8080", cfg.App.BaseURL)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "souq", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)

		assert.Equal(t, 5*time.Minute, cfg.Sync.Cooldown)
		assert.Equal(t, 4, cfg.Sync.OrderWorkers)
		assert.Equal(t, 20, cfg.Sync.MaxSlugAttempts)
		assert.Equal(t, 4, cfg.HTTPClient.MaxAttempts)
		assert.Equal(t, 30*time.Second, cfg.HTTPClient.MaxElapsed)

		assert.Equal(t, "X-Salla-Signature", cfg.Platforms.Salla.WebhookSignatureHeader)
		assert.Equal(t, "hmac-sha256", cfg.Platforms.Salla.SignatureMode)
		assert.Equal(t, "hmac-sha256-base64", cfg.Platforms.Zid.SignatureMode)
		assert.Equal(t, 50, cfg.Platforms.Zid.PageSize)

		assert.Equal(t, 30*24*time.Hour, cfg.Tracking.ClickTTL)
		assert.Contains(t, cfg.Tracking.BotUserAgents, "bot")
		assert.Equal(t, 1.0, cfg.Trending.ViewWeight)
		assert.Equal(t, 20.0, cfg.Trending.OrderWeight)
		assert.Equal(t, 48*time.Hour, cfg.Trending.HalfLife)
		assert.False(t, cfg.Webhook.AllowUnsigned)
		assert.False(t, cfg.Scheduler.Enabled)
		assert.Equal(t, time.Hour, cfg.Scheduler.AutoSyncInterval)
		assert.Equal(t, 2, cfg.Scheduler.MaxConcurrentJobs)
	})

	t.Run("loads values from environment variables with SOUQ prefix", func(t *testing.T) {
		clearSouqEnv(t)
		t.Setenv("SOUQ_APP_NAME", "test-app")
		t.Setenv("SOUQ_APP_PORT", "9000")
		t.Setenv("SOUQ_APP_BASE_URL", "https://souq.example/")
		t.Setenv("SOUQ_DATABASE_HOST", "testdb.local")
		t.Setenv("SOUQ_DATABASE_PORT", "5433")
		t.Setenv("SOUQ_SYNC_COOLDOWN", "10m")
		t.Setenv("SOUQ_SYNC_ORDER_WORKERS", "8")
		t.Setenv("SOUQ_PLATFORMS_SALLA_WEBHOOK_SECRET", "salla-secret")
		t.Setenv("SOUQ_PLATFORMS_ZID_API_BASE_URL", "http://zid.local/v1/")
		t.Setenv("SOUQ_TRENDING_CLICK_WEIGHT", "7.5")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "https://souq.example", cfg.App.BaseURL)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 10*time.Minute, cfg.Sync.Cooldown)
		assert.Equal(t, 8, cfg.Sync.OrderWorkers)
		assert.Equal(t, "salla-secret", cfg.Platforms.Salla.WebhookSecret)
		assert.Equal(t, "http://zid.local/v1", cfg.Platforms.Zid.APIBaseURL)
		assert.Equal(t, 7.5, cfg.Trending.ClickWeight)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearSouqEnv(t)
		t.Setenv("SOUQ_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("SOUQ_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearSouqEnv(t)
		t.Setenv("SOUQ_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("rejects unknown signature mode", func(t *testing.T) {
		clearSouqEnv(t)
		t.Setenv("SOUQ_PLATFORMS_ZID_SIGNATURE_MODE", "md5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "platforms.zid.signature_mode")
	})

	t.Run("rejects sampling ratio above one", func(t *testing.T) {
		clearSouqEnv(t)
		t.Setenv("SOUQ_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearSouqEnv(t)
		t.Setenv("SOUQ_APP_ENV", "production")
		t.Setenv("SOUQ_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("SOUQ_DATABASE_PASSWORD", "secure-password")
		t.Setenv("SOUQ_DATABASE_SSLMODE", "require")
		t.Setenv("SOUQ_HTTP_CORS_ALLOW_ORIGINS", "https://souq.example")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.App.IsProduction())
	})

	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"short jwt secret", "SOUQ_JWT_SECRET", "short-secret", "jwt.secret must be at least 32 characters"},
		{"missing database password", "SOUQ_DATABASE_PASSWORD", "", "database.password is required in production"},
		{"ssl disabled", "SOUQ_DATABASE_SSLMODE", "disable", "database.sslmode cannot be 'disable' in production"},
		{"unsigned webhooks allowed", "SOUQ_WEBHOOK_ALLOW_UNSIGNED", "true", "webhook.allow_unsigned must be false in production"},
		{"wildcard cors", "SOUQ_HTTP_CORS_ALLOW_ORIGINS", "*", "cors_allow_origins cannot be '*'"},
		{"full sql logging", "SOUQ_TELEMETRY_DB_LOG_FULL_SQL", "true", "db_log_full_sql must be false"},
		{"enabled platform without webhook secret", "SOUQ_PLATFORMS_SALLA_ENABLED", "true", "platforms.salla.webhook_secret is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidProductionBase(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("allows unsigned webhooks outside production", func(t *testing.T) {
		clearSouqEnv(t)
		t.Setenv("SOUQ_WEBHOOK_ALLOW_UNSIGNED", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Webhook.AllowUnsigned)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
