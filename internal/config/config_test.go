package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("HUDDLE_SECRET", "s3cret")
	t.Setenv("HUDDLE_PORT", "9090")

	cfg, err := Load("does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Secret)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 64, cfg.SendBuffer)
	assert.True(t, cfg.KickSlow)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := Load("does-not-exist")
	assert.ErrorContains(t, err, "secret")
}

func TestValidate(t *testing.T) {
	base := Config{Secret: "x", Port: 8080, SendBuffer: 1, PingPeriod: time.Second}
	require.NoError(t, base.Validate())

	bad := base
	bad.Port = 70000
	assert.Error(t, bad.Validate())

	bad = base
	bad.SendBuffer = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.PingPeriod = 0
	assert.Error(t, bad.Validate())
}
