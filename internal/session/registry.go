package session

import (
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/rakimsSpiritual/tpsc-final/internal/signaling"
)

// peerLink bundles one remote participant's connection, its negotiation
// engine and the local sender slots (at most one per track kind).
type peerLink struct {
	remoteID string
	gen      uint64
	pc       PeerConn
	engine   *Engine
	senders  map[webrtc.RTPCodecType]Sender
}

// addUpdate installs or swaps a local track on this link. Replacing the
// track on an existing sender of the same kind does not renegotiate; adding
// a new sender fires the connection's negotiation-needed signal.
func (l *peerLink) addUpdate(track webrtc.TrackLocal) error {
	kind := track.Kind()
	if snd, ok := l.senders[kind]; ok {
		return snd.ReplaceTrack(track)
	}

	snd, err := l.pc.AddTrack(track)
	if err != nil {
		return err
	}
	l.senders[kind] = snd
	return nil
}

// removeKind drops the sender of the given kind. The slot is cleared even
// when removal fails, so a later add always starts clean.
func (l *peerLink) removeKind(kind webrtc.RTPCodecType) error {
	snd, ok := l.senders[kind]
	delete(l.senders, kind)
	if !ok {
		return nil
	}
	return l.pc.RemoveTrack(snd)
}

// Registry owns every peer connection, keyed by remote participant
// identity, and fans local track changes out to all of them. It is mutated
// only from the session's event loop.
type Registry struct {
	factory PeerConnFactory
	emit    func(remoteID string, data signaling.SignalData)
	links   map[string]*peerLink
	seq     uint64
	log     *slog.Logger
}

// NewRegistry creates an empty registry. emit is called by each link's
// engine with outbound negotiation messages tagged with the remote identity.
func NewRegistry(factory PeerConnFactory, emit func(string, signaling.SignalData), log *slog.Logger) *Registry {
	return &Registry{
		factory: factory,
		emit:    emit,
		links:   make(map[string]*peerLink),
		log:     log.With("component", "registry"),
	}
}

// Ensure returns the link for remoteID, creating connection and engine on
// first need. created reports whether this call built the link.
func (r *Registry) Ensure(remoteID string) (l *peerLink, created bool, err error) {
	if l, ok := r.links[remoteID]; ok {
		return l, false, nil
	}

	pc, err := r.factory()
	if err != nil {
		return nil, false, fmt.Errorf("connect to %s: %w", remoteID, err)
	}

	r.seq++
	l = &peerLink{
		remoteID: remoteID,
		gen:      r.seq,
		pc:       pc,
		senders:  make(map[webrtc.RTPCodecType]Sender),
	}
	l.engine = newEngine(remoteID, pc, func(d signaling.SignalData) { r.emit(remoteID, d) }, r.log)
	r.links[remoteID] = l

	return l, true, nil
}

// Get returns the link for remoteID, or nil.
func (r *Registry) Get(remoteID string) *peerLink {
	return r.links[remoteID]
}

// Live reports whether the link identified by (remoteID, gen) is still the
// current one. Asynchronous continuations check it before applying results,
// so work for a torn-down connection becomes a no-op.
func (r *Registry) Live(remoteID string, gen uint64) bool {
	l, ok := r.links[remoteID]
	return ok && l.gen == gen
}

// AddUpdateSenders fans a local track out to every registered connection.
// Per-peer failures are logged and never affect the other connections.
func (r *Registry) AddUpdateSenders(track webrtc.TrackLocal) {
	for id, l := range r.links {
		if err := l.addUpdate(track); err != nil {
			r.log.Warn("sender update failed", "remote", id, "kind", track.Kind(), "err", err)
		}
	}
}

// ReplaceSenders swaps the track carried by every existing sender of the
// given kind, in place, so no renegotiation fires. A nil track silences the
// outgoing media while keeping the sender slot; links without a sender of
// this kind are untouched.
func (r *Registry) ReplaceSenders(kind webrtc.RTPCodecType, track webrtc.TrackLocal) {
	for id, l := range r.links {
		snd, ok := l.senders[kind]
		if !ok {
			continue
		}
		if err := snd.ReplaceTrack(track); err != nil {
			r.log.Warn("sender swap failed", "remote", id, "kind", kind, "err", err)
		}
	}
}

// RemoveSenders removes the sender of the given kind from every registered
// connection.
func (r *Registry) RemoveSenders(kind webrtc.RTPCodecType) {
	for id, l := range r.links {
		if err := l.removeKind(kind); err != nil {
			r.log.Warn("sender removal failed", "remote", id, "kind", kind, "err", err)
		}
	}
}

// Close tears down the connection for remoteID: engine closed, remote
// receivers stopped, all bookkeeping dropped. Closing an already-closed or
// never-opened connection is a no-op.
func (r *Registry) Close(remoteID string) {
	l, ok := r.links[remoteID]
	if !ok {
		return
	}

	l.engine.Close()
	if err := l.pc.Close(); err != nil {
		r.log.Warn("close connection", "remote", remoteID, "err", err)
	}
	delete(r.links, remoteID)
}

// CloseAll tears down every connection.
func (r *Registry) CloseAll() {
	for id := range r.links {
		r.Close(id)
	}
}

// Len returns the number of live links.
func (r *Registry) Len() int {
	return len(r.links)
}
