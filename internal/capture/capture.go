// Package capture acquires local media tracks from the host's devices.
package capture

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

// ErrPermissionDenied reports that the user or platform refused access to a
// capture device. It is non-fatal and retryable; connection state is never
// affected by it.
var ErrPermissionDenied = errors.New("media device access denied")

// Track is a local capture track that can be bound to peer connections.
// OnEnded fires when the platform stops the source out from under us, e.g. a
// screen share ended through the system chooser.
type Track interface {
	webrtc.TrackLocal

	OnEnded(handler func(error))
	Close() error
}

// Devices opens capture sources. The session depends on this interface so
// tests can substitute fakes for real hardware.
type Devices interface {
	OpenMicrophone() (Track, error)
	OpenCamera(width, height int) (Track, error)
	OpenScreen(width, height int) (Track, error)
}
