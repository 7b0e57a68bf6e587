package rtc

import (
	"testing"

	"github.com/dkeye/huddle/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationDefaults(t *testing.T) {
	cfg, err := Configuration(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWebRTCConfig(), cfg)
}

func TestConfigurationValidatesURLs(t *testing.T) {
	cases := []struct {
		name    string
		servers []config.ICEServer
		wantErr bool
	}{
		{"stun", []config.ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}}, false},
		{"turn with credentials", []config.ICEServer{{
			URLs:       []string{"turn:turn.example.com:3478?transport=udp"},
			Username:   "relay",
			Credential: "pw",
		}}, false},
		{"turn without credentials", []config.ICEServer{{URLs: []string{"turn:turn.example.com:3478"}}}, true},
		{"bad scheme", []config.ICEServer{{URLs: []string{"http://stun.example.com"}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Configuration(tc.servers)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestViewCarriesCredentials(t *testing.T) {
	cfg, err := Configuration([]config.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
		{URLs: []string{"turns:turn.example.com:5349"}, Username: "relay", Credential: "pw"},
	})
	require.NoError(t, err)

	v := View(cfg)
	require.Len(t, v.ICEServers, 2)
	assert.Equal(t, ICEServerView{URLs: []string{"stun:stun.example.com:3478"}}, v.ICEServers[0])
	assert.Equal(t, "relay", v.ICEServers[1].Username)
	assert.Equal(t, "pw", v.ICEServers[1].Credential)
}
