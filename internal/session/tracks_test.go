package session

import (
	"log/slog"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakimsSpiritual/tpsc-final/internal/capture"
	"github.com/rakimsSpiritual/tpsc-final/internal/signaling"
)

func newTestTracks(t *testing.T) (*TrackManager, *fakeDevices, *fakeFactory, *Registry) {
	t.Helper()
	f := &fakeFactory{}
	r := NewRegistry(f.new, func(string, signaling.SignalData) {}, slog.Default())
	d := &fakeDevices{}
	return newTrackManager(d, r, slog.Default()), d, f, r
}

func TestToggleAudioAcquiresOnce(t *testing.T) {
	tm, d, f, r := newTestTracks(t)
	_, _, err := r.Ensure("bob")
	require.NoError(t, err)

	require.NoError(t, tm.ToggleAudio())
	assert.True(t, tm.AudioEnabled())

	require.NoError(t, tm.ToggleAudio())
	assert.False(t, tm.AudioEnabled())

	require.NoError(t, tm.ToggleAudio())
	assert.True(t, tm.AudioEnabled())

	// One hardware acquisition, one sender, no matter how often we toggle.
	assert.Equal(t, 1, d.micOpens)
	assert.Len(t, f.conns[0].added, 1)
}

func TestMuteSilencesSendersWithoutRenegotiation(t *testing.T) {
	tm, d, f, r := newTestTracks(t)
	_, _, err := r.Ensure("bob")
	require.NoError(t, err)

	require.NoError(t, tm.ToggleAudio())
	pc := f.conns[0]
	require.Len(t, pc.added, 1)
	snd := pc.added[0]
	require.Same(t, d.lastMic, snd.track.(*fakeTrack))

	// Mute: the sender stays but stops carrying the microphone track.
	require.NoError(t, tm.ToggleAudio())
	assert.Nil(t, snd.track)
	assert.Equal(t, 1, snd.replaced)

	// Unmute swaps the same track back in.
	require.NoError(t, tm.ToggleAudio())
	assert.Same(t, d.lastMic, snd.track.(*fakeTrack))
	assert.Equal(t, 2, snd.replaced)

	// In-place swaps only: no sender added or removed, so nothing triggered
	// renegotiation, and the hardware was never reacquired.
	assert.Len(t, pc.added, 1)
	assert.Empty(t, pc.removed)
	assert.Equal(t, 1, d.micOpens)
}

func TestMuteReachesEveryConnection(t *testing.T) {
	tm, _, f, r := newTestTracks(t)
	for _, id := range []string{"bob", "carol"} {
		_, _, err := r.Ensure(id)
		require.NoError(t, err)
	}

	require.NoError(t, tm.ToggleAudio())
	require.NoError(t, tm.ToggleAudio())

	for _, pc := range f.conns {
		require.Len(t, pc.added, 1)
		assert.Nil(t, pc.added[0].track)
	}
}

func TestAttachToWhileMutedKeepsSilence(t *testing.T) {
	tm, _, f, r := newTestTracks(t)

	require.NoError(t, tm.ToggleAudio())
	require.NoError(t, tm.ToggleAudio()) // muted before anyone joins

	l, _, err := r.Ensure("late")
	require.NoError(t, err)
	tm.attachTo(l)

	// The late joiner negotiates an audio sender, but it carries no media
	// until unmute.
	pc := f.conns[0]
	require.Len(t, pc.added, 1)
	assert.Nil(t, pc.added[0].track)
	assert.Equal(t, 1, pc.added[0].replaced)
}

func TestToggleAudioPermissionDenied(t *testing.T) {
	tm, d, _, _ := newTestTracks(t)
	d.micErr = capture.ErrPermissionDenied

	err := tm.ToggleAudio()
	assert.ErrorIs(t, err, capture.ErrPermissionDenied)
	assert.False(t, tm.AudioEnabled())

	// A later grant succeeds from scratch.
	d.micErr = nil
	require.NoError(t, tm.ToggleAudio())
	assert.True(t, tm.AudioEnabled())
}

func TestVideoModesAreMutuallyExclusive(t *testing.T) {
	tm, d, f, r := newTestTracks(t)
	_, _, err := r.Ensure("bob")
	require.NoError(t, err)

	require.NoError(t, tm.SetVideoMode(VideoCamera))
	require.NoError(t, tm.SetVideoMode(VideoScreenShare))

	assert.Equal(t, VideoScreenShare, tm.VideoMode())
	assert.True(t, d.lastCam.closed)
	assert.False(t, d.lastScreen.closed)

	// Camera's sender was removed before screen was added, so the link still
	// carries exactly one video sender.
	pc := f.conns[0]
	assert.Len(t, pc.removed, 1)
	assert.Len(t, pc.added, 2)
	link := r.Get("bob")
	_, ok := link.senders[webrtc.RTPCodecTypeVideo]
	assert.True(t, ok)
}

func TestSetVideoModeSameModeIsNoop(t *testing.T) {
	tm, d, _, _ := newTestTracks(t)

	require.NoError(t, tm.SetVideoMode(VideoCamera))
	require.NoError(t, tm.SetVideoMode(VideoCamera))

	assert.Equal(t, 1, d.camOpens)
	assert.False(t, d.lastCam.closed)
}

func TestSetVideoModeNoneReleases(t *testing.T) {
	tm, d, f, r := newTestTracks(t)
	_, _, err := r.Ensure("bob")
	require.NoError(t, err)

	require.NoError(t, tm.SetVideoMode(VideoCamera))
	require.NoError(t, tm.SetVideoMode(VideoNone))

	assert.Equal(t, VideoNone, tm.VideoMode())
	assert.True(t, d.lastCam.closed)
	assert.Len(t, f.conns[0].removed, 1)

	link := r.Get("bob")
	assert.Empty(t, link.senders)
}

func TestScreenShareEndedRunsTeardown(t *testing.T) {
	tm, d, _, _ := newTestTracks(t)
	tm.onScreenEnded = func() { _ = tm.SetVideoMode(VideoNone) }

	require.NoError(t, tm.SetVideoMode(VideoScreenShare))
	require.NotNil(t, d.lastScreen.onEnded)

	// Platform stops the share without any local action.
	d.lastScreen.onEnded(nil)

	assert.Equal(t, VideoNone, tm.VideoMode())
	assert.True(t, d.lastScreen.closed)
}

func TestAttachToInstallsLiveTracks(t *testing.T) {
	tm, _, f, r := newTestTracks(t)

	require.NoError(t, tm.ToggleAudio())
	require.NoError(t, tm.SetVideoMode(VideoCamera))

	// The link shows up after capture started, as with a late joiner.
	l, _, err := r.Ensure("late")
	require.NoError(t, err)
	tm.attachTo(l)

	assert.Len(t, f.conns[0].added, 2)
	assert.Len(t, l.senders, 2)
}

func TestCloseReleasesEverything(t *testing.T) {
	tm, d, _, _ := newTestTracks(t)
	require.NoError(t, tm.ToggleAudio())
	require.NoError(t, tm.SetVideoMode(VideoCamera))

	tm.Close()

	assert.True(t, d.lastMic.closed)
	assert.True(t, d.lastCam.closed)
	assert.False(t, tm.AudioEnabled())
	assert.Equal(t, VideoNone, tm.VideoMode())
}
