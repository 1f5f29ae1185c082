package config

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// defaultSTUN keeps peer connections working when no ICE servers are
// configured at all.
const defaultSTUN = "stun:stun.l.google.com:19302"

// WebRTCICEServers converts the configured ICE list into the pion form
// clients bootstrap their RTCPeerConnection from. Entries without a
// usable URL are skipped rather than rejected.
func (c *Config) WebRTCICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, server := range c.ICEServers {
		urls := make([]string, 0, len(server.URLs))
		for _, raw := range server.URLs {
			url := strings.TrimSpace(raw)
			if url == "" {
				continue
			}
			urls = append(urls, url)
		}
		if len(urls) == 0 {
			continue
		}
		ice := webrtc.ICEServer{URLs: urls}
		if server.Username != "" {
			ice.Username = server.Username
		}
		if server.Credential != "" {
			ice.Credential = server.Credential
		}
		out = append(out, ice)
	}
	if len(out) == 0 {
		out = append(out, webrtc.ICEServer{URLs: []string{defaultSTUN}})
	}
	return out
}
