// Package rtc builds the WebRTC configuration handed to browser devices.
// The relay itself never opens a PeerConnection.
package rtc

import (
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devicefarm/internal/config"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// ICEServers converts configured servers, dropping URLs that are not valid
// stun:, stuns:, turn: or turns: URIs. Servers left without URLs are skipped.
func ICEServers(servers []config.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		urls := make([]string, 0, len(s.URLs))
		for _, u := range s.URLs {
			if _, err := stun.ParseURI(u); err != nil {
				log.Warn().Err(err).Str("module", "rtc").Str("url", u).Msg("skipping invalid ice url")
				continue
			}
			urls = append(urls, u)
		}
		if len(urls) == 0 {
			continue
		}
		srv := webrtc.ICEServer{URLs: urls, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, srv)
	}
	return out
}

// Configuration returns the browser-facing configuration, falling back to
// DefaultWebRTCConfig when nothing usable is configured.
func Configuration(servers []config.ICEServer) webrtc.Configuration {
	ice := ICEServers(servers)
	if len(ice) == 0 {
		return DefaultWebRTCConfig()
	}
	return webrtc.Configuration{ICEServers: ice}
}
