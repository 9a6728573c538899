package session

import (
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/rakimsSpiritual/tpsc-final/internal/capture"
)

// VideoMode selects the local video source. Camera and ScreenShare are
// mutually exclusive: activating one releases the other.
type VideoMode int

const (
	VideoNone VideoMode = iota
	VideoCamera
	VideoScreenShare
)

func (m VideoMode) String() string {
	switch m {
	case VideoNone:
		return "none"
	case VideoCamera:
		return "camera"
	case VideoScreenShare:
		return "screen-share"
	default:
		return "unknown"
	}
}

// Target capture resolution for camera and screen sources.
const (
	videoWidth  = 1920
	videoHeight = 1080
)

// TrackManager owns the local participant's outgoing tracks: one audio
// track with an enabled flag, and one video track sourced from camera or
// screen capture. Every acquisition or release fans out through the
// registry so all peer connections stay consistent.
type TrackManager struct {
	devices  capture.Devices
	registry *Registry
	log      *slog.Logger

	audio        capture.Track
	audioEnabled bool

	video capture.Track
	mode  VideoMode

	// onScreenEnded reroutes a platform-initiated screen-share stop onto
	// the session loop, where it runs the same teardown as an explicit
	// SetVideoMode(VideoNone).
	onScreenEnded func()
}

func newTrackManager(devices capture.Devices, registry *Registry, log *slog.Logger) *TrackManager {
	return &TrackManager{
		devices:  devices,
		registry: registry,
		log:      log.With("component", "tracks"),
	}
}

// ToggleAudio flips the microphone state. The hardware is acquired lazily on
// first use and never re-requested: later toggles swap the track in and out
// of the existing senders in place, so mute is audible to remotes yet needs
// no renegotiation. A permission failure leaves all state untouched.
func (t *TrackManager) ToggleAudio() error {
	if t.audio == nil {
		track, err := t.devices.OpenMicrophone()
		if err != nil {
			return fmt.Errorf("acquire microphone: %w", err)
		}
		t.audio = track
		t.audioEnabled = true
		t.registry.AddUpdateSenders(track)
		t.log.Info("microphone acquired")
		return nil
	}

	t.audioEnabled = !t.audioEnabled
	if t.audioEnabled {
		t.registry.ReplaceSenders(webrtc.RTPCodecTypeAudio, t.audio)
	} else {
		// A nil track stops the outgoing audio; the sender slot survives so
		// unmuting is another in-place swap.
		t.registry.ReplaceSenders(webrtc.RTPCodecTypeAudio, nil)
	}
	t.log.Debug("audio toggled", "enabled", t.audioEnabled)
	return nil
}

// AudioEnabled reports whether the microphone is live and unmuted.
func (t *TrackManager) AudioEnabled() bool {
	return t.audio != nil && t.audioEnabled
}

// VideoMode reports the current video source.
func (t *TrackManager) VideoMode() VideoMode {
	return t.mode
}

// SetVideoMode switches the video source. VideoNone stops and releases the
// current track and removes its senders everywhere. Camera and ScreenShare
// fully release the other subtype first, then acquire a fresh source at the
// fixed target resolution and fan it out.
func (t *TrackManager) SetVideoMode(mode VideoMode) error {
	if mode == VideoNone {
		t.clearVideo()
		return nil
	}

	if mode == t.mode && t.video != nil {
		return nil
	}

	// Mutual exclusion: the previous source is stopped before the new one
	// is acquired.
	t.clearVideo()

	var (
		track capture.Track
		err   error
	)
	switch mode {
	case VideoCamera:
		track, err = t.devices.OpenCamera(videoWidth, videoHeight)
	case VideoScreenShare:
		track, err = t.devices.OpenScreen(videoWidth, videoHeight)
	default:
		return fmt.Errorf("unknown video mode %d", mode)
	}
	if err != nil {
		return fmt.Errorf("acquire %s source: %w", mode, err)
	}

	if mode == VideoScreenShare {
		// The platform chooser can stop the share without any UI action.
		track.OnEnded(func(error) {
			if t.onScreenEnded != nil {
				t.onScreenEnded()
			}
		})
	}

	t.video = track
	t.mode = mode
	t.registry.AddUpdateSenders(track)
	t.log.Info("video source started", "mode", mode)
	return nil
}

// clearVideo stops and releases the current video track, if any, and clears
// the video sender slot on every connection.
func (t *TrackManager) clearVideo() {
	if t.video != nil {
		if err := t.video.Close(); err != nil {
			t.log.Warn("stop video track", "err", err)
		}
		t.video = nil
		t.log.Info("video source stopped", "mode", t.mode)
	}
	t.mode = VideoNone
	t.registry.RemoveSenders(webrtc.RTPCodecTypeVideo)
}

// attachTo installs the currently live local tracks on a newly created
// link, so new joiners see ongoing media without a second trigger.
func (t *TrackManager) attachTo(l *peerLink) {
	if t.video != nil {
		if err := l.addUpdate(t.video); err != nil {
			t.log.Warn("attach video to new connection", "remote", l.remoteID, "err", err)
		}
	}
	if t.audio != nil {
		if err := l.addUpdate(t.audio); err != nil {
			t.log.Warn("attach audio to new connection", "remote", l.remoteID, "err", err)
		} else if !t.audioEnabled {
			// Muted: the slot is negotiated now but carries no media until
			// the next unmute swaps the track back in.
			if snd, ok := l.senders[webrtc.RTPCodecTypeAudio]; ok {
				if err := snd.ReplaceTrack(nil); err != nil {
					t.log.Warn("silence audio on new connection", "remote", l.remoteID, "err", err)
				}
			}
		}
	}
}

// Close releases every local capture source.
func (t *TrackManager) Close() {
	t.clearVideo()
	if t.audio != nil {
		if err := t.audio.Close(); err != nil {
			t.log.Warn("stop audio track", "err", err)
		}
		t.audio = nil
		t.audioEnabled = false
	}
}
