package session

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/rakimsSpiritual/tpsc-final/internal/capture"
)

// fakeTrack satisfies capture.Track without any hardware.
type fakeTrack struct {
	id      string
	kind    webrtc.RTPCodecType
	closed  bool
	onEnded func(error)
}

func newFakeTrack(id string, kind webrtc.RTPCodecType) *fakeTrack {
	return &fakeTrack{id: id, kind: kind}
}

func (f *fakeTrack) Bind(webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	return webrtc.RTPCodecParameters{}, nil
}
func (f *fakeTrack) Unbind(webrtc.TrackLocalContext) error { return nil }
func (f *fakeTrack) ID() string                            { return f.id }
func (f *fakeTrack) RID() string                           { return "" }
func (f *fakeTrack) StreamID() string                      { return "fake-stream" }
func (f *fakeTrack) Kind() webrtc.RTPCodecType             { return f.kind }
func (f *fakeTrack) OnEnded(handler func(error))           { f.onEnded = handler }
func (f *fakeTrack) Close() error {
	f.closed = true
	return nil
}

// fakeDevices counts acquisitions and hands out fake tracks.
type fakeDevices struct {
	micOpens    int
	camOpens    int
	screenOpens int

	micErr error

	lastMic    *fakeTrack
	lastCam    *fakeTrack
	lastScreen *fakeTrack
}

func (d *fakeDevices) OpenMicrophone() (capture.Track, error) {
	if d.micErr != nil {
		return nil, d.micErr
	}
	d.micOpens++
	d.lastMic = newFakeTrack("mic", webrtc.RTPCodecTypeAudio)
	return d.lastMic, nil
}

func (d *fakeDevices) OpenCamera(width, height int) (capture.Track, error) {
	d.camOpens++
	d.lastCam = newFakeTrack("camera", webrtc.RTPCodecTypeVideo)
	return d.lastCam, nil
}

func (d *fakeDevices) OpenScreen(width, height int) (capture.Track, error) {
	d.screenOpens++
	d.lastScreen = newFakeTrack("screen", webrtc.RTPCodecTypeVideo)
	return d.lastScreen, nil
}

// fakeSender records track replacements.
type fakeSender struct {
	track    webrtc.TrackLocal
	replaced int
}

func (s *fakeSender) ReplaceTrack(track webrtc.TrackLocal) error {
	s.track = track
	s.replaced++
	return nil
}

// fakeConn is a scriptable PeerConn. The mutex makes it safe to inspect
// from the test goroutine while a session loop drives it.
type fakeConn struct {
	mu sync.Mutex

	added     []*fakeSender
	removed   []Sender
	removeErr error

	localDescs  []webrtc.SessionDescription
	remoteDescs []webrtc.SessionDescription
	remoteErr   error
	answerErr   error

	candidates   []webrtc.ICECandidateInit
	candidateErr error

	closed int

	onICECandidate      func(*webrtc.ICECandidate)
	onNegotiationNeeded func()
	onTrack             func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
	onStateChange       func(webrtc.PeerConnectionState)
}

func (c *fakeConn) AddTrack(track webrtc.TrackLocal) (Sender, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &fakeSender{track: track}
	c.added = append(c.added, s)
	return s, nil
}

func (c *fakeConn) RemoveTrack(sender Sender) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, sender)
	return c.removeErr
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"}, nil
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answerErr != nil {
		return webrtc.SessionDescription{}, c.answerErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"}, nil
}

func (c *fakeConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localDescs = append(c.localDescs, desc)
	return nil
}

func (c *fakeConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remoteErr != nil {
		return c.remoteErr
	}
	c.remoteDescs = append(c.remoteDescs, desc)
	return nil
}

func (c *fakeConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.candidateErr != nil {
		return c.candidateErr
	}
	c.candidates = append(c.candidates, candidate)
	return nil
}

func (c *fakeConn) OnICECandidate(f func(*webrtc.ICECandidate)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICECandidate = f
}

func (c *fakeConn) OnNegotiationNeeded(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNegotiationNeeded = f
}

func (c *fakeConn) OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = f
}

func (c *fakeConn) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = f
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) addedSenders() []*fakeSender {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeSender(nil), c.added...)
}

func (c *fakeConn) candidateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.candidates)
}

func (c *fakeConn) closedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) fireNegotiationNeeded() {
	c.mu.Lock()
	f := c.onNegotiationNeeded
	c.mu.Unlock()
	if f != nil {
		f()
	}
}

// fakeFactory hands out fresh fakeConns and remembers them.
type fakeFactory struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (f *fakeFactory) new() (PeerConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeConn{}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeFactory) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

var errBoom = errors.New("boom")
