package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const iceFetchTimeout = 10 * time.Second

// fetchedServer is one traversal server entry as returned by the credential
// service. The urls field may be a single string or a list.
type fetchedServer struct {
	URLs       urlList `json:"urls"`
	Username   string  `json:"username,omitempty"`
	Credential string  `json:"credential,omitempty"`
}

type urlList []string

func (u *urlList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*u = urlList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*u = urlList(many)
	return nil
}

type iceResponse struct {
	V struct {
		ICEServers []fetchedServer `json:"iceServers"`
	} `json:"v"`
}

// FetchICEServers obtains the short-lived traversal server list from the
// credential service, once, at startup. Any failure degrades to the static
// STUN/TURN configuration rather than aborting: connections are still
// attempted and may fail across restrictive networks.
func FetchICEServers(ctx context.Context, cfg *Config) []webrtc.ICEServer {
	log := slog.With("component", "config")
	static := cfg.StaticICEServers()

	if cfg.ICEFetchURL == "" {
		return static
	}

	ctx, cancel := context.WithTimeout(ctx, iceFetchTimeout)
	defer cancel()

	body := strings.NewReader(`{"format":"urls"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, cfg.ICEFetchURL, body)
	if err != nil {
		log.Warn("traversal server fetch failed, using static servers", "err", err)
		return static
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(cfg.ICEFetchUser, cfg.ICEFetchSecret)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Warn("traversal server fetch failed, using static servers", "err", err)
		return static
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("traversal server fetch failed, using static servers", "status", resp.StatusCode)
		return static
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Warn("traversal server fetch failed, using static servers", "err", err)
		return static
	}

	var parsed iceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Warn("traversal server response unreadable, using static servers", "err", err)
		return static
	}
	if len(parsed.V.ICEServers) == 0 {
		log.Warn("traversal server response empty, using static servers")
		return static
	}

	servers := make([]webrtc.ICEServer, 0, len(parsed.V.ICEServers))
	for _, s := range parsed.V.ICEServers {
		if len(s.URLs) == 0 {
			continue
		}
		server := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}
	if len(servers) == 0 {
		return static
	}

	log.Info("traversal servers fetched", "count", len(servers))
	return servers
}

// StaticICEServers builds the fallback ICE server list from the static
// STUN/TURN configuration. It may be empty.
func (c *Config) StaticICEServers() []webrtc.ICEServer {
	var servers []webrtc.ICEServer

	if stun := c.GetSTUNServers(); stun != nil {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}

	if turn := c.GetTURNServers(); turn != nil {
		user, pass := c.GetTURNCredentials()
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   user,
			Credential: pass,
		})
	}

	return servers
}

// String renders a compact description for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("domain=%s ws=%s stun=%s turn=%s", c.Domain, c.WebSocketURL, c.STUNServer, c.TURNServer)
}
