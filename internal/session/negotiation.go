package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/rakimsSpiritual/tpsc-final/internal/signaling"
)

// negotiationState is the explicit per-peer state machine. The outbound path
// is Idle→OfferPending→Stable; the inbound path is Idle→AnswerPending→Stable.
// Close is valid from every state.
type negotiationState int

const (
	stateIdle negotiationState = iota
	stateOfferPending
	stateAnswerPending
	stateStable
	stateClosed
)

func (s negotiationState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateOfferPending:
		return "offer-pending"
	case stateAnswerPending:
		return "answer-pending"
	case stateStable:
		return "stable"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrProtocolViolation reports a negotiation message that is not valid in
// the engine's current state. It is logged and the message dropped; the
// connection remains usable for future messages.
var ErrProtocolViolation = errors.New("negotiation message not valid in current state")

// Engine drives offer/answer/candidate exchange for exactly one remote
// participant. All methods run on the session's event loop.
type Engine struct {
	remoteID string
	pc       PeerConn
	state    negotiationState

	// renegotiate records a sender change that arrived while an exchange
	// was in flight; it is replayed once the engine reaches Stable.
	renegotiate bool

	send func(signaling.SignalData)
	log  *slog.Logger
}

func newEngine(remoteID string, pc PeerConn, send func(signaling.SignalData), log *slog.Logger) *Engine {
	return &Engine{
		remoteID: remoteID,
		pc:       pc,
		state:    stateIdle,
		send:     send,
		log:      log.With("remote", remoteID),
	}
}

// Negotiate starts an outbound offer round. It is triggered implicitly when
// the connection's sender set changes in a way that needs a new session
// description. A trigger that lands mid-exchange is deferred, not dropped.
func (e *Engine) Negotiate() error {
	switch e.state {
	case stateClosed:
		return nil
	case stateOfferPending, stateAnswerPending:
		e.renegotiate = true
		return nil
	}

	offer, err := e.pc.CreateOffer()
	if err != nil {
		e.log.Error("create offer", "err", err)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := e.pc.SetLocalDescription(offer); err != nil {
		e.log.Error("set local offer", "err", err)
		return fmt.Errorf("set local offer: %w", err)
	}

	e.state = stateOfferPending
	e.send(signaling.SignalData{Offer: &offer})
	return nil
}

// HandleSignal dispatches one inbound negotiation message by its variant.
// Protocol violations are logged and the message dropped; the returned error
// is informational.
func (e *Engine) HandleSignal(data signaling.SignalData) error {
	kind, err := data.Kind()
	if err != nil {
		e.log.Warn("dropping malformed signal", "state", e.state, "err", err)
		return err
	}

	if e.state == stateClosed {
		e.log.Debug("dropping signal for closed engine", "kind", kind)
		return nil
	}

	switch kind {
	case signaling.SignalKindAnswer:
		return e.handleAnswer(*data.Answer)
	case signaling.SignalKindOffer:
		return e.handleOffer(*data.Offer)
	default:
		return e.handleCandidate(*data.ICECandidate)
	}
}

// handleAnswer completes an outbound round. An answer with no outstanding
// offer is a protocol error: logged, dropped, state unchanged.
func (e *Engine) handleAnswer(answer webrtc.SessionDescription) error {
	if e.state != stateOfferPending {
		e.log.Warn("answer with no outstanding offer", "state", e.state)
		return ErrProtocolViolation
	}

	if err := e.pc.SetRemoteDescription(answer); err != nil {
		e.log.Error("apply answer", "err", err)
		return fmt.Errorf("apply answer: %w", err)
	}

	e.state = stateStable
	e.flushRenegotiate()
	return nil
}

// handleOffer answers an inbound round. An offer that collides with our own
// outstanding offer (glare) or an in-progress answer is a protocol error.
func (e *Engine) handleOffer(offer webrtc.SessionDescription) error {
	entry := e.state
	switch entry {
	case stateIdle, stateStable:
	default:
		e.log.Warn("offer in unexpected state", "state", entry)
		return ErrProtocolViolation
	}

	e.state = stateAnswerPending

	if err := e.pc.SetRemoteDescription(offer); err != nil {
		e.log.Error("apply offer", "err", err)
		e.state = entry
		return fmt.Errorf("apply offer: %w", err)
	}

	answer, err := e.pc.CreateAnswer()
	if err != nil {
		e.log.Error("create answer", "err", err)
		e.state = entry
		return fmt.Errorf("create answer: %w", err)
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		e.log.Error("set local answer", "err", err)
		e.state = entry
		return fmt.Errorf("set local answer: %w", err)
	}

	e.state = stateStable
	e.send(signaling.SignalData{Answer: &answer})
	e.flushRenegotiate()
	return nil
}

// handleCandidate applies one remote ICE candidate. Failures are logged and
// swallowed: ICE tolerates lost or invalid candidates and self-heals with
// further ones.
func (e *Engine) handleCandidate(candidate webrtc.ICECandidateInit) error {
	if err := e.pc.AddICECandidate(candidate); err != nil {
		e.log.Warn("discarding candidate", "err", err)
	}
	return nil
}

// flushRenegotiate replays a sender change deferred during an exchange.
func (e *Engine) flushRenegotiate() {
	if e.renegotiate && e.state == stateStable {
		e.renegotiate = false
		_ = e.Negotiate()
	}
}

// Close forces the engine into its terminal state. Valid from any state;
// the engine is discarded afterwards.
func (e *Engine) Close() {
	e.state = stateClosed
}
