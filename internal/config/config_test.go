package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	envKeys := []string{
		"MAILFLOW_JWT_SECRET",
		"MAILFLOW_SERVER_HOST",
		"MAILFLOW_SERVER_PORT",
		"MAILFLOW_MAIL_BACKEND",
		"MAILFLOW_MAIL_FROM",
		"MAILFLOW_MAIL_TIMEOUT",
		"MAILFLOW_MAIL_RATE_LIMIT",
		"MAILFLOW_MAIL_REQUIRE_TLS",
		"MAILFLOW_CACHE_STATS_TTL",
		"MAILFLOW_CORS_ALLOWED_ORIGINS",
		"MAILFLOW_LOG_LEVEL",
		"MAILFLOW_LOG_DEVELOPMENT",
		"MAILFLOW_REDIS_ADDRESS",
	}

	originalEnvs := make(map[string]string)
	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	clearEnv := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv()
		os.Setenv("MAILFLOW_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "console", cfg.Mail.Backend)
		assert.Equal(t, "noreply@example.com", cfg.Mail.From)
		assert.Equal(t, 30*time.Second, cfg.Mail.Timeout)
		assert.Equal(t, float64(0), cfg.Mail.RateLimit)
		assert.False(t, cfg.Mail.RequireTLS)
		assert.Equal(t, 300*time.Second, cfg.Cache.StatsTTL)
		assert.Equal(t, time.Minute, cfg.Scheduler.SweepInterval)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Empty(t, cfg.Redis.Address)
		assert.Equal(t, "mailflow", cfg.JWT.Issuer)
		assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
		assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpiry)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		clearEnv()
		os.Setenv("MAILFLOW_JWT_SECRET", "custom-jwt-secret-key-32-chars-long-minimum")
		os.Setenv("MAILFLOW_SERVER_HOST", "127.0.0.1")
		os.Setenv("MAILFLOW_SERVER_PORT", "9090")
		os.Setenv("MAILFLOW_MAIL_BACKEND", "SMTP")
		os.Setenv("MAILFLOW_MAIL_FROM", "news@example.org")
		os.Setenv("MAILFLOW_MAIL_RATE_LIMIT", "2.5")
		os.Setenv("MAILFLOW_MAIL_REQUIRE_TLS", "true")
		os.Setenv("MAILFLOW_CACHE_STATS_TTL", "1m")
		os.Setenv("MAILFLOW_CORS_ALLOWED_ORIGINS", "http://localhost:3000, http://localhost:5173")
		os.Setenv("MAILFLOW_LOG_LEVEL", "debug")
		os.Setenv("MAILFLOW_LOG_DEVELOPMENT", "true")
		os.Setenv("MAILFLOW_REDIS_ADDRESS", "localhost:6379")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "smtp", cfg.Mail.Backend)
		assert.Equal(t, "news@example.org", cfg.Mail.From)
		assert.Equal(t, 2.5, cfg.Mail.RateLimit)
		assert.True(t, cfg.Mail.RequireTLS)
		assert.Equal(t, time.Minute, cfg.Cache.StatsTTL)
		assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.Log.Development)
		assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	})

	t.Run("JWT密钥太短失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("MAILFLOW_JWT_SECRET", "short-key")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "JWT secret must be at least 32 characters long")
	})

	t.Run("使用默认JWT密钥失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("MAILFLOW_JWT_SECRET", "change-me-in-production")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "JWT secret cannot be the default value")
	})

	t.Run("未知的发送后端失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("MAILFLOW_JWT_SECRET", "valid-jwt-secret-key-32-chars-long-minimum")
		os.Setenv("MAILFLOW_MAIL_BACKEND", "carrier-pigeon")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid mail.backend")
	})

	t.Run("无效的统计缓存时长失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("MAILFLOW_JWT_SECRET", "valid-jwt-secret-key-32-chars-long-minimum")
		os.Setenv("MAILFLOW_CACHE_STATS_TTL", "forever")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid cache.stats_ttl")
	})
}

func TestParseList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "单个值", input: "a", expected: []string{"a"}},
		{name: "带空格", input: " a , b ", expected: []string{"a", "b"}},
		{name: "空字符串", input: "", expected: []string{}},
		{name: "只有逗号", input: ",,,", expected: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseList(tc.input))
		})
	}
}
