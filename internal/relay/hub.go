package relay

import (
	"log/slog"

	"github.com/rakimsSpiritual/tpsc-final/internal/signaling"
)

// inbound pairs a message with the connection it arrived on.
type inbound struct {
	client *Client
	msg    *signaling.Message
}

// Hub is the signaling relay's brain. It owns all room membership state and
// routes negotiation payloads between connections. Every mutation happens in
// the single Run goroutine, fed through the three channels, so no locking is
// required.
type Hub struct {
	// Rooms maps meeting IDs to Room instances.
	Rooms map[string]*Room

	// clients indexes every registered connection by its connection id.
	clients map[string]*Client

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients. Reaching it via a
	// dropped transport is identical to an explicit leave.
	Unregister chan *Client

	// Inbound carries client messages into the hub for processing.
	Inbound chan *inbound

	log *slog.Logger
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *inbound),
		log:        slog.With("component", "relay"),
	}
}

// Run starts the hub's main processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client.ID] = client
			h.log.Debug("connection registered", "conn", client.ID)

		case client := <-h.Unregister:
			if _, ok := h.clients[client.ID]; !ok {
				// Already unregistered; leave ran exactly once.
				continue
			}
			h.leave(client)
			delete(h.clients, client.ID)
			close(client.Send)
			h.log.Debug("connection unregistered", "conn", client.ID)

		case in := <-h.Inbound:
			h.dispatch(in.client, in.msg)
		}
	}
}

func (h *Hub) dispatch(c *Client, msg *signaling.Message) {
	switch msg.Type {

	case signaling.MessageTypeJoinMeeting:
		var p signaling.JoinPayload
		if err := msg.DecodePayload(&p); err != nil {
			h.log.Warn("bad join payload", "conn", c.ID, "err", err)
			return
		}
		h.handleJoin(c, p)

	case signaling.MessageTypeSignal:
		var p signaling.SignalPayload
		if err := msg.DecodePayload(&p); err != nil {
			h.log.Warn("bad signal payload", "conn", c.ID, "err", err)
			return
		}
		h.handleSignal(c, p)

	case signaling.MessageTypeSendMessage:
		var p signaling.ChatPayload
		if err := msg.DecodePayload(&p); err != nil {
			h.log.Warn("bad chat payload", "conn", c.ID, "err", err)
			return
		}
		h.handleChat(c, p)

	default:
		h.log.Warn("unknown message type", "conn", c.ID, "type", msg.Type)
	}
}

// handleJoin binds the connection to (meeting, identity), replies with the
// existing-members snapshot and announces the newcomer to the room.
//
// Joining is idempotent per connection: re-joining the same meeting only
// refreshes the identity and snapshot. Joining a different meeting runs the
// full leave path for the old room first, so a connection is a member of
// exactly one room at a time.
func (h *Hub) handleJoin(c *Client, p signaling.JoinPayload) {
	if p.MeetingID == "" || p.UserID == "" {
		h.log.Warn("join with empty meeting or user id", "conn", c.ID)
		return
	}

	rejoin := c.MeetingID == p.MeetingID
	if !rejoin && c.MeetingID != "" {
		h.leave(c)
	}

	room, ok := h.Rooms[p.MeetingID]
	if !ok {
		room = newRoom(p.MeetingID)
		h.Rooms[p.MeetingID] = room
		h.log.Info("room created", "meeting", p.MeetingID)
	}

	c.MeetingID = p.MeetingID
	c.UserID = p.UserID
	room.Members[c.ID] = c

	snapshot, err := signaling.NewMessage(signaling.MessageTypeExistingParticipants, signaling.ExistingParticipantsPayload{
		Self:         c.ID,
		Participants: room.membersExcept(c.ID),
	})
	if err != nil {
		h.log.Error("encode snapshot", "err", err)
		return
	}
	select {
	case c.Send <- snapshot:
	default:
	}

	if rejoin {
		return
	}

	joined, err := signaling.NewMessage(signaling.MessageTypeUserJoined, signaling.PresencePayload{
		Member: signaling.Member{ConnID: c.ID, UserID: c.UserID},
	})
	if err != nil {
		h.log.Error("encode userJoined", "err", err)
		return
	}
	room.broadcast(c.ID, joined)

	h.log.Info("participant joined", "meeting", room.ID, "user", c.UserID, "conn", c.ID)
}

// handleSignal routes a negotiation payload to exactly one target
// connection. Delivery is fire-and-forget: if the target has disconnected
// the message is silently dropped, no retry, no notification to the sender.
func (h *Hub) handleSignal(c *Client, p signaling.SignalPayload) {
	target, ok := h.clients[p.To]
	if !ok {
		h.log.Debug("signal target gone", "to", p.To, "from", c.ID)
		return
	}

	// Stamp the sender's connection id so the receiver can address replies
	// even before it has seen a presence event for the sender.
	p.FromConn = c.ID
	msg, err := signaling.NewMessage(signaling.MessageTypeSignal, p)
	if err != nil {
		h.log.Error("encode signal", "err", err)
		return
	}

	select {
	case target.Send <- msg:
	default:
		h.log.Debug("signal target backlogged, dropping", "to", p.To)
	}
}

// handleChat fans a chat message out to the sender's whole room, sender
// included.
func (h *Hub) handleChat(c *Client, p signaling.ChatPayload) {
	room, ok := h.Rooms[c.MeetingID]
	if !ok {
		return
	}

	msg, err := signaling.NewMessage(signaling.MessageTypeNewMessage, signaling.ChatPayload{
		User:    p.User,
		Message: p.Message,
	})
	if err != nil {
		h.log.Error("encode chat", "err", err)
		return
	}
	room.broadcast("", msg)
}

// leave removes the connection from its room, deletes the room if that
// emptied it, and announces the departure to the remaining members. Calling
// it for a connection that never joined is a no-op.
func (h *Hub) leave(c *Client) {
	if c.MeetingID == "" {
		return
	}

	room, ok := h.Rooms[c.MeetingID]
	meetingID, userID, connID := c.MeetingID, c.UserID, c.ID
	c.MeetingID = ""
	c.UserID = ""

	if !ok {
		return
	}

	delete(room.Members, connID)

	if len(room.Members) == 0 {
		delete(h.Rooms, meetingID)
		h.log.Info("room deleted", "meeting", meetingID)
		return
	}

	left, err := signaling.NewMessage(signaling.MessageTypeUserLeft, signaling.PresencePayload{
		Member: signaling.Member{ConnID: connID, UserID: userID},
	})
	if err != nil {
		h.log.Error("encode userLeft", "err", err)
		return
	}
	room.broadcast(connID, left)

	h.log.Info("participant left", "meeting", meetingID, "user", userID, "conn", connID)
}
