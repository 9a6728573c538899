// Package session implements the participant side of a meeting: one peer
// connection per remote participant, driven by negotiation messages from the
// signaling relay, plus the local media track lifecycle.
package session

import (
	"context"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/rakimsSpiritual/tpsc-final/internal/capture"
	"github.com/rakimsSpiritual/tpsc-final/internal/signaling"
)

// Transport sends messages to the relay. *signaling.Client satisfies it.
type Transport interface {
	SendMessage(msg *signaling.Message)
}

// RemoteTrackHandler observes inbound media; rendering is the caller's
// concern.
type RemoteTrackHandler func(remoteUserID string, track *webrtc.TrackRemote)

// ChatHandler observes chat fan-out from the relay.
type ChatHandler func(user, message string)

// Options configures a Session.
type Options struct {
	UserID    string
	MeetingID string

	Transport Transport
	Handler   *signaling.Handler
	Factory   PeerConnFactory
	Devices   capture.Devices

	OnRemoteTrack RemoteTrackHandler
	OnChat        ChatHandler
}

// Session is the local participant's state: the connection registry, the
// track manager and the identity→connection-id addressing table. All of it
// is owned by the single Run goroutine; UI-level commands and pion
// callbacks post onto the event channel.
type Session struct {
	userID    string
	meetingID string
	connID    string

	out     Transport
	handler *signaling.Handler

	registry *Registry
	tracks   *TrackManager

	// peers maps remote identity to its current connection id for
	// addressing outbound signals.
	peers map[string]string

	events chan func()
	done   chan struct{}

	onRemoteTrack RemoteTrackHandler
	onChat        ChatHandler

	log *slog.Logger
}

// New wires up a Session. Run must be called to start it.
func New(opts Options) *Session {
	log := slog.With("component", "session", "user", opts.UserID)

	s := &Session{
		userID:        opts.UserID,
		meetingID:     opts.MeetingID,
		out:           opts.Transport,
		handler:       opts.Handler,
		peers:         make(map[string]string),
		events:        make(chan func(), 64),
		done:          make(chan struct{}),
		onRemoteTrack: opts.OnRemoteTrack,
		onChat:        opts.OnChat,
		log:           log,
	}

	s.registry = NewRegistry(opts.Factory, s.emit, log)
	s.tracks = newTrackManager(opts.Devices, s.registry, log)
	s.tracks.onScreenEnded = func() {
		s.post(func() {
			s.log.Info("screen share ended by platform")
			_ = s.tracks.SetVideoMode(VideoNone)
		})
	}

	return s
}

// Run joins the meeting and processes events until ctx is cancelled or the
// relay connection ends. It owns all session state; nothing else touches it
// concurrently.
func (s *Session) Run(ctx context.Context) error {
	s.join()

	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.handler.Done:
			s.log.Info("relay connection closed")
			return nil

		case fn := <-s.events:
			fn()

		case p := <-s.handler.Joined:
			s.handleExisting(p)

		case m := <-s.handler.UserJoined:
			s.handleUserJoined(m)

		case m := <-s.handler.UserLeft:
			s.handleUserLeft(m)

		case sp := <-s.handler.Signal:
			s.handleSignal(sp)

		case c := <-s.handler.Chat:
			if s.onChat != nil {
				s.onChat(c.User, c.Message)
			}
		}
	}
}

// post schedules fn onto the event loop. Safe to call from any goroutine;
// after shutdown it becomes a no-op.
func (s *Session) post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// ToggleAudio flips the microphone state. A permission failure is surfaced
// as a warning and changes nothing.
func (s *Session) ToggleAudio() {
	s.post(func() {
		if err := s.tracks.ToggleAudio(); err != nil {
			s.log.Warn("audio unavailable", "err", err)
		}
	})
}

// SetVideoMode switches the local video source.
func (s *Session) SetVideoMode(mode VideoMode) {
	s.post(func() {
		if err := s.tracks.SetVideoMode(mode); err != nil {
			s.log.Warn("video unavailable", "mode", mode, "err", err)
		}
	})
}

// SendChat broadcasts a chat line to the meeting.
func (s *Session) SendChat(text string) {
	msg, err := signaling.NewMessage(signaling.MessageTypeSendMessage, signaling.ChatPayload{
		MeetingID: s.meetingID,
		User:      s.userID,
		Message:   text,
	})
	if err != nil {
		s.log.Error("encode chat", "err", err)
		return
	}
	s.out.SendMessage(msg)
}

func (s *Session) join() {
	msg, err := signaling.NewMessage(signaling.MessageTypeJoinMeeting, signaling.JoinPayload{
		MeetingID: s.meetingID,
		UserID:    s.userID,
	})
	if err != nil {
		s.log.Error("encode join", "err", err)
		return
	}
	s.out.SendMessage(msg)
}

func (s *Session) handleExisting(p *signaling.ExistingParticipantsPayload) {
	s.connID = p.Self
	s.log.Info("joined meeting", "meeting", s.meetingID, "conn", s.connID, "participants", len(p.Participants))
	for _, m := range p.Participants {
		s.addPeer(m)
	}
}

func (s *Session) handleUserJoined(m signaling.Member) {
	s.log.Info("participant joined", "user", m.UserID)
	s.addPeer(m)
}

func (s *Session) handleUserLeft(m signaling.Member) {
	s.log.Info("participant left", "user", m.UserID)
	delete(s.peers, m.UserID)
	s.registry.Close(m.UserID)
}

func (s *Session) addPeer(m signaling.Member) {
	s.peers[m.UserID] = m.ConnID
	if _, err := s.ensurePeer(m.UserID); err != nil {
		s.log.Error("set up peer connection", "user", m.UserID, "err", err)
	}
}

// handleSignal dispatches an inbound negotiation message into the matching
// engine, creating the connection on demand for remotes that signal before
// any presence event was seen.
func (s *Session) handleSignal(sp *signaling.SignalPayload) {
	if sp.From == "" {
		s.log.Warn("signal without sender identity")
		return
	}

	if _, known := s.peers[sp.From]; !known && sp.FromConn != "" {
		s.peers[sp.From] = sp.FromConn
	}

	l, err := s.ensurePeer(sp.From)
	if err != nil {
		s.log.Error("set up peer connection", "user", sp.From, "err", err)
		return
	}

	// Violations are already logged by the engine; the connection stays
	// usable for future messages.
	_ = l.engine.HandleSignal(sp.Data)
}

// ensurePeer returns the link for remoteID, building connection, engine and
// callback wiring on first need. Every callback continuation captures the
// link's generation and is dropped if the link has been torn down since.
func (s *Session) ensurePeer(remoteID string) (*peerLink, error) {
	l, created, err := s.registry.Ensure(remoteID)
	if err != nil || !created {
		return l, err
	}

	gen := l.gen

	l.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		s.post(func() {
			if s.registry.Live(remoteID, gen) {
				s.emit(remoteID, signaling.SignalData{ICECandidate: &init})
			}
		})
	})

	l.pc.OnNegotiationNeeded(func() {
		s.post(func() {
			if s.registry.Live(remoteID, gen) {
				_ = s.registry.Get(remoteID).engine.Negotiate()
			}
		})
	})

	l.pc.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.post(func() {
			if s.registry.Live(remoteID, gen) && s.onRemoteTrack != nil {
				s.onRemoteTrack(remoteID, t)
			}
		})
	})

	l.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Debug("connection state", "remote", remoteID, "state", state)
	})

	// New connections immediately carry whatever is live locally.
	s.tracks.attachTo(l)

	return l, nil
}

// emit sends one negotiation message tagged for the remote identity.
// Candidates discovered before we learned the remote's connection id cannot
// be addressed and are dropped; the remote's own candidates still complete
// the connection.
func (s *Session) emit(remoteID string, data signaling.SignalData) {
	to, ok := s.peers[remoteID]
	if !ok {
		s.log.Warn("no connection id for remote, dropping signal", "remote", remoteID)
		return
	}

	msg, err := signaling.NewMessage(signaling.MessageTypeSignal, signaling.SignalPayload{
		To:   to,
		From: s.userID,
		Data: data,
	})
	if err != nil {
		s.log.Error("encode signal", "err", err)
		return
	}
	s.out.SendMessage(msg)
}

func (s *Session) shutdown() {
	close(s.done)
	s.registry.CloseAll()
	s.tracks.Close()
	s.log.Info("session closed")
}
