package capture

import (
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	// Register the capture adapters.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
)

// MediaDevices opens microphone, camera and screen tracks through
// pion/mediadevices.
type MediaDevices struct {
	selector *mediadevices.CodecSelector
	engine   webrtc.MediaEngine
}

// NewMediaDevices configures the codec stack (Opus audio, VP8 video) and
// returns a device opener. The populated MediaEngine must be used when
// building peer connections so negotiated codecs match the capture pipeline.
func NewMediaDevices() (*MediaDevices, error) {
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("configure opus: %w", err)
	}

	vp8Params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("configure vp8: %w", err)
	}
	vp8Params.BitRate = 1_000_000 // 1mbps

	m := &MediaDevices{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithAudioEncoders(&opusParams),
			mediadevices.WithVideoEncoders(&vp8Params),
		),
	}
	m.selector.Populate(&m.engine)

	return m, nil
}

// MediaEngine returns the engine populated with the capture codecs.
func (m *MediaDevices) MediaEngine() *webrtc.MediaEngine {
	return &m.engine
}

// OpenMicrophone acquires an audio track from the default microphone.
func (m *MediaDevices) OpenMicrophone() (Track, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(48000)
			c.ChannelCount = prop.Int(1)
		},
		Codec: m.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, err)
	}

	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no audio track in stream", ErrPermissionDenied)
	}
	return tracks[0], nil
}

// OpenCamera acquires a video track from the default camera at the given
// target resolution.
func (m *MediaDevices) OpenCamera(width, height int) (Track, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(width)
			c.Height = prop.Int(height)
			c.FrameRate = prop.Float(30)
		},
		Codec: m.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, err)
	}

	return firstVideoTrack(stream)
}

// OpenScreen acquires a video track from a screen capture source.
func (m *MediaDevices) OpenScreen(width, height int) (Track, error) {
	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(width)
			c.Height = prop.Int(height)
		},
		Codec: m.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, err)
	}

	return firstVideoTrack(stream)
}

func firstVideoTrack(stream mediadevices.MediaStream) (Track, error) {
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no video track in stream", ErrPermissionDenied)
	}
	return tracks[0], nil
}
