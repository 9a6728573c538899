package session

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Sender binds one local track to one peer connection.
type Sender interface {
	ReplaceTrack(track webrtc.TrackLocal) error
}

// PeerConn is the slice of the underlying connection object the session
// needs. *webrtc.PeerConnection satisfies it through a thin adapter; tests
// substitute fakes.
type PeerConn interface {
	AddTrack(track webrtc.TrackLocal) (Sender, error)
	RemoveTrack(sender Sender) error

	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	OnICECandidate(func(*webrtc.ICECandidate))
	OnNegotiationNeeded(func())
	OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))

	// Close stops remote media receivers before closing the connection, so
	// teardown releases every remote stream reference.
	Close() error
}

// PeerConnFactory builds a fresh connection for one remote participant.
type PeerConnFactory func() (PeerConn, error)

// NewPionFactory returns a factory producing pion peer connections from the
// given API (which carries the media engine) and ICE configuration.
func NewPionFactory(api *webrtc.API, cfg webrtc.Configuration) PeerConnFactory {
	return func() (PeerConn, error) {
		pc, err := api.NewPeerConnection(cfg)
		if err != nil {
			return nil, fmt.Errorf("create peer connection: %w", err)
		}
		return &pionConn{pc: pc}, nil
	}
}

type pionConn struct {
	pc *webrtc.PeerConnection
}

type pionSender struct {
	s *webrtc.RTPSender
}

func (s pionSender) ReplaceTrack(track webrtc.TrackLocal) error {
	return s.s.ReplaceTrack(track)
}

func (c *pionConn) AddTrack(track webrtc.TrackLocal) (Sender, error) {
	s, err := c.pc.AddTrack(track)
	if err != nil {
		return nil, err
	}
	return pionSender{s: s}, nil
}

func (c *pionConn) RemoveTrack(sender Sender) error {
	ps, ok := sender.(pionSender)
	if !ok {
		return fmt.Errorf("sender does not belong to this connection")
	}
	return c.pc.RemoveTrack(ps.s)
}

func (c *pionConn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *pionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConn) OnICECandidate(f func(*webrtc.ICECandidate)) {
	c.pc.OnICECandidate(f)
}

func (c *pionConn) OnNegotiationNeeded(f func()) {
	c.pc.OnNegotiationNeeded(f)
}

func (c *pionConn) OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	c.pc.OnTrack(f)
}

func (c *pionConn) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(f)
}

func (c *pionConn) Close() error {
	for _, r := range c.pc.GetReceivers() {
		_ = r.Stop()
	}
	return c.pc.Close()
}
