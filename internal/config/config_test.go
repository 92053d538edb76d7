package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load("api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("PUBLIC_BASE_URL", "https://agrolink.example.com/")

	cfg, err := Load("all")
	require.NoError(t, err)

	assert.Equal(t, "all", cfg.RunMode)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://agrolink.example.com/api/v1/payments/webhook", cfg.GatewayWebhookURL)
	assert.Equal(t, 15*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 10*time.Minute, cfg.OtpTTL)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("GATEWAY_TIMEOUT_SECONDS", "soon")

	_, err := Load("api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_TIMEOUT_SECONDS")
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REDIS_DB", "primary")

	_, err := Load("api")
	require.Error(t, err)
	for _, key := range []string{"MONGO_URI", "JWT_SECRET", "REDIS_DB"} {
		assert.Contains(t, err.Error(), key)
	}
}
