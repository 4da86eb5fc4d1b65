package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.ListenPort)
	assert.Equal(t, 12, cfg.GameWidth)
	assert.Equal(t, 22, cfg.GameHeight)
	assert.Equal(t, 50*time.Millisecond, cfg.Period())
	assert.Equal(t, "0.0.0.0:4242", cfg.Addr())
	assert.False(t, cfg.AdminEnabled)
}

func TestLoadServer_FromEnv(t *testing.T) {
	t.Setenv("TETRIQ_LISTEN_PORT", "5000")
	t.Setenv("TETRIQ_TICKS_PER_SECOND", "2")
	t.Setenv("TETRIQ_GAME_WIDTH", "10")
	t.Setenv("TETRIQ_ADMIN_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.ListenPort)
	assert.Equal(t, 500*time.Millisecond, cfg.Period())
	assert.Equal(t, 10, cfg.GameWidth)
	assert.True(t, cfg.AdminEnabled)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoadServer_Invalid(t *testing.T) {
	cases := []struct {
		name, key, value string
	}{
		{"not a number", "TETRIQ_LISTEN_PORT", "abc"},
		{"port range", "TETRIQ_LISTEN_PORT", "70000"},
		{"zero tick rate", "TETRIQ_TICKS_PER_SECOND", "0"},
		{"grid too small", "TETRIQ_GAME_HEIGHT", "3"},
		{"grid too large", "TETRIQ_GAME_WIDTH", "1000"},
		{"no clients", "TETRIQ_MAX_CLIENTS", "0"},
		{"bad bool", "TETRIQ_ADMIN_ENABLED", "maybe"},
		{"negative bandwidth", "TETRIQ_MAX_OUTGOING_BANDWIDTH", "-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := LoadServer()
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadClient(t *testing.T) {
	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.ServerTimeout)
	assert.Equal(t, "ws://127.0.0.1:4242/ws", cfg.ServerURL)

	t.Setenv("TETRIQ_SERVER_URL", "http://example.com")
	_, err = LoadClient()
	require.ErrorIs(t, err, ErrInvalid)

	t.Setenv("TETRIQ_SERVER_URL", "ws://example.com:4242/ws")
	t.Setenv("TETRIQ_SERVER_TIMEOUT_MS", "250")
	cfg, err = LoadClient()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.ServerTimeout)
}
