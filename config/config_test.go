package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("PORT", "")
	t.Setenv("PUBLIC_URL", "")
	t.Setenv("PROTECTED_PATHS", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("RESERVATION_MODE", "")
	t.Setenv("TOKEN_ENCRYPTION_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.PublicURL)
	assert.Equal(t, "http://localhost:8080/auth/callback", cfg.GoogleRedirectURL)
	assert.Equal(t, []string{"/events", "/profile", "/qr", "/checkin"}, cfg.ProtectedPaths)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, "saga", cfg.ReservationMode)
	assert.Len(t, cfg.TokenEncryptionKey, 32)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("PUBLIC_URL", "https://bouncer.example.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("RESERVATION_MODE", "transaction")
	t.Setenv("TOKEN_ENCRYPTION_KEY", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://bouncer.example.com", cfg.PublicURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "transaction", cfg.ReservationMode)
	assert.Equal(t, byte(0x1f), cfg.TokenEncryptionKey[31])
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad duration", key: "SESSION_TTL", val: "soon"},
		{name: "bad reservation mode", key: "RESERVATION_MODE", val: "optimistic"},
		{name: "short key", key: "TOKEN_ENCRYPTION_KEY", val: "abcd"},
		{name: "bad burst", key: "RATE_LIMIT_BURST", val: "many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GO_ENV", "test")
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
}
