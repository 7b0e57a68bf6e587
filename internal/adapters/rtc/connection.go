// Package rtc builds the ICE configuration handed to peers. The relay only
// forwards negotiation payloads; peers connect to each other directly.
package rtc

import (
	"fmt"

	"github.com/dkeye/huddle/internal/config"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
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

// Configuration converts configured ICE servers, rejecting malformed URLs
// so a bad deployment fails at startup instead of in every browser.
func Configuration(servers []config.ICEServer) (webrtc.Configuration, error) {
	if len(servers) == 0 {
		return DefaultWebRTCConfig(), nil
	}
	out := webrtc.Configuration{ICEServers: make([]webrtc.ICEServer, 0, len(servers))}
	for _, s := range servers {
		for _, raw := range s.URLs {
			uri, err := stun.ParseURI(raw)
			if err != nil {
				return webrtc.Configuration{}, fmt.Errorf("ice server %q: %w", raw, err)
			}
			turn := uri.Scheme == stun.SchemeTypeTURN || uri.Scheme == stun.SchemeTypeTURNS
			if turn && (s.Username == "" || s.Credential == "") {
				return webrtc.Configuration{}, fmt.Errorf("ice server %q: turn requires username and credential", raw)
			}
		}
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out.ICEServers = append(out.ICEServers, srv)
	}
	return out, nil
}

// ClientView is the JSON shape browsers pass to RTCPeerConnection.
type ClientView struct {
	ICEServers []ICEServerView `json:"iceServers"`
}

type ICEServerView struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

func View(cfg webrtc.Configuration) ClientView {
	v := ClientView{ICEServers: make([]ICEServerView, 0, len(cfg.ICEServers))}
	for _, s := range cfg.ICEServers {
		sv := ICEServerView{URLs: s.URLs, Username: s.Username}
		if cred, ok := s.Credential.(string); ok {
			sv.Credential = cred
		}
		v.ICEServers = append(v.ICEServers, sv)
	}
	return v
}
