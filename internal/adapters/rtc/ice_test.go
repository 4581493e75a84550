package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/devicefarm/internal/config"
)

func TestICEServersFiltersInvalidURLs(t *testing.T) {
	got := ICEServers([]config.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478", "http://nope"}},
		{URLs: []string{"turn:turn.example.com:3478?transport=udp"}, Username: "u", Credential: "p"},
		{URLs: []string{"::::"}},
	})

	require.Len(t, got, 2)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, got[0].URLs)
	assert.Equal(t, "u", got[1].Username)
	assert.Equal(t, "p", got[1].Credential)
	assert.Equal(t, webrtc.ICECredentialTypePassword, got[1].CredentialType)
}

func TestConfigurationFallsBackToDefault(t *testing.T) {
	assert.Equal(t, DefaultWebRTCConfig(), Configuration(nil))
	assert.Equal(t, DefaultWebRTCConfig(), Configuration([]config.ICEServer{{URLs: []string{"bogus"}}}))
}
