package signaling

import (
	"log/slog"
)

// Handler routes incoming relay messages to typed channels.
type Handler struct {
	client *Client
	log    *slog.Logger

	Joined     chan *ExistingParticipantsPayload
	UserJoined chan Member
	UserLeft   chan Member
	Signal     chan *SignalPayload
	Chat       chan ChatPayload

	// Done is closed when the relay connection ends and Start returns.
	Done chan struct{}
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:     client,
		log:        slog.With("component", "signaling"),
		Joined:     make(chan *ExistingParticipantsPayload, 1),
		UserJoined: make(chan Member, 8),
		UserLeft:   make(chan Member, 8),
		Signal:     make(chan *SignalPayload, 32),
		Chat:       make(chan ChatPayload, 8),
		Done:       make(chan struct{}),
	}
}

// Start begins listening to incoming messages and routing them. It returns
// when the connection closes.
func (h *Handler) Start() {
	defer close(h.Done)

	for msg := range h.client.Incoming() {

		switch msg.Type {

		case MessageTypeExistingParticipants:
			var p ExistingParticipantsPayload
			if err := msg.DecodePayload(&p); err != nil {
				h.log.Warn("bad existingParticipants payload", "err", err)
				continue
			}
			h.Joined <- &p

		case MessageTypeUserJoined:
			var p PresencePayload
			if err := msg.DecodePayload(&p); err != nil {
				h.log.Warn("bad userJoined payload", "err", err)
				continue
			}
			h.UserJoined <- p.Member

		case MessageTypeUserLeft:
			var p PresencePayload
			if err := msg.DecodePayload(&p); err != nil {
				h.log.Warn("bad userLeft payload", "err", err)
				continue
			}
			h.UserLeft <- p.Member

		case MessageTypeSignal:
			var p SignalPayload
			if err := msg.DecodePayload(&p); err != nil {
				h.log.Warn("bad signal payload", "err", err)
				continue
			}
			h.Signal <- &p

		case MessageTypeNewMessage:
			var p ChatPayload
			if err := msg.DecodePayload(&p); err != nil {
				h.log.Warn("bad chat payload", "err", err)
				continue
			}
			h.Chat <- p

		default:
			h.log.Debug("ignoring message", "type", msg.Type)
		}
	}
}
