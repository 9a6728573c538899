package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Message types spoken between participants and the relay. The relay only
// inspects the envelope type; signal payloads pass through it opaquely.
const (
	MessageTypeJoinMeeting          = "joinMeeting"
	MessageTypeExistingParticipants = "existingParticipants"
	MessageTypeUserJoined           = "userJoined"
	MessageTypeUserLeft             = "userLeft"
	MessageTypeSignal               = "signal"
	MessageTypeSendMessage          = "sendMessage"
	MessageTypeNewMessage           = "newMessage"
)

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a Message with the given type and payload.
func NewMessage(t string, payload any) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}

	return &Message{
		Type:    t,
		Payload: b,
	}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m *Message) DecodePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// JoinPayload asks the relay to bind this connection to a meeting.
type JoinPayload struct {
	MeetingID string `json:"meetingID"`
	UserID    string `json:"userID"`
}

// Member identifies one participant: the relay-assigned, transport-scoped
// connection id plus the externally supplied identity.
type Member struct {
	ConnID string `json:"connID"`
	UserID string `json:"userID"`
}

// ExistingParticipantsPayload is sent once to a newly joined connection.
// Self is the joiner's own assigned connection id; Participants never
// includes the joiner.
type ExistingParticipantsPayload struct {
	Self         string   `json:"self"`
	Participants []Member `json:"participants"`
}

// PresencePayload carries userJoined / userLeft broadcasts.
type PresencePayload struct {
	Member
}

// ChatPayload carries sendMessage / newMessage chat traffic.
type ChatPayload struct {
	MeetingID string `json:"meetingID,omitempty"`
	User      string `json:"user"`
	Message   string `json:"message"`
}

// SignalPayload is the generic envelope for one negotiation message.
// To is the target connection id; From is the sender's identity. FromConn is
// stamped by the relay so the receiver can address replies without having
// seen a presence event for the sender yet.
type SignalPayload struct {
	To       string     `json:"to"`
	From     string     `json:"from"`
	FromConn string     `json:"fromConn,omitempty"`
	Data     SignalData `json:"data"`
}

// SignalKind names the variant carried by a SignalData.
type SignalKind string

const (
	SignalKindOffer        SignalKind = "offer"
	SignalKindAnswer       SignalKind = "answer"
	SignalKindICECandidate SignalKind = "iceCandidate"
)

// ErrInvalidSignal is returned when a signal payload does not carry exactly
// one of offer, answer or iceCandidate.
var ErrInvalidSignal = errors.New("signal payload must carry exactly one of offer, answer or iceCandidate")

// SignalData is a tagged variant: exactly one field is set per message.
type SignalData struct {
	Offer        *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer       *webrtc.SessionDescription `json:"answer,omitempty"`
	ICECandidate *webrtc.ICECandidateInit   `json:"iceCandidate,omitempty"`
}

// Kind reports which variant is set, or ErrInvalidSignal when the payload is
// empty or ambiguous.
func (d SignalData) Kind() (SignalKind, error) {
	var (
		kind SignalKind
		n    int
	)
	if d.Offer != nil {
		kind = SignalKindOffer
		n++
	}
	if d.Answer != nil {
		kind = SignalKindAnswer
		n++
	}
	if d.ICECandidate != nil {
		kind = SignalKindICECandidate
		n++
	}
	if n != 1 {
		return "", ErrInvalidSignal
	}
	return kind, nil
}
