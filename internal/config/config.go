package config

import (
	"fmt"
	"os"
)

// Default configuration values
const (
	DefaultDomain = "localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Config holds application configuration
type Config struct {
	// Domain is the signaling relay domain
	Domain string

	// WebSocketURL is constructed from domain unless overridden
	WebSocketURL string

	// Static ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Traversal credential service (optional). When set, a short-lived ICE
	// server list is fetched once at startup.
	ICEFetchURL    string
	ICEFetchUser   string
	ICEFetchSecret string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain         string
	WebSocketURL   string
	STUNServer     string
	TURNServer     string
	TURNUser       string
	TURNPass       string
	ICEFetchURL    string
	ICEFetchUser   string
	ICEFetchSecret string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstOf(opts.Domain, os.Getenv("DOMAIN"), DefaultDomain)
	stunServer := firstOf(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstOf(opts.TURNServer, os.Getenv("TURN_SERVER"))
	turnUser := firstOf(opts.TURNUser, os.Getenv("TURN_USERNAME"))
	turnPass := firstOf(opts.TURNPass, os.Getenv("TURN_PASSWORD"))

	wsURL := firstOf(opts.WebSocketURL, os.Getenv("WS_URL"), fmt.Sprintf("ws://%s/ws", domain))

	return &Config{
		Domain:         domain,
		WebSocketURL:   wsURL,
		STUNServer:     stunServer,
		TURNServer:     turnServer,
		TURNUser:       turnUser,
		TURNPass:       turnPass,
		ICEFetchURL:    firstOf(opts.ICEFetchURL, os.Getenv("ICE_FETCH_URL")),
		ICEFetchUser:   firstOf(opts.ICEFetchUser, os.Getenv("ICE_FETCH_USERNAME")),
		ICEFetchSecret: firstOf(opts.ICEFetchSecret, os.Getenv("ICE_FETCH_SECRET")),
	}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
