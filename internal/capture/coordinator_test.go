package capture_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promora-go-api/internal/capture"
)

type fakeTrack struct {
	id    string
	kind  capture.TrackKind
	stops int
}

func (t *fakeTrack) ID() string              { return t.id }
func (t *fakeTrack) Kind() capture.TrackKind { return t.kind }
func (t *fakeTrack) Stop()                   { t.stops++ }

type fakeDevices struct {
	screen    *capture.TrackSet
	webcam    *capture.TrackSet
	screenErr error
	webcamErr error
	display   capture.DisplayConstraints
	userMedia capture.UserMediaConstraints
}

func (d *fakeDevices) GetDisplayMedia(_ context.Context, constraints capture.DisplayConstraints) (capture.Stream, error) {
	d.display = constraints
	if d.screenErr != nil {
		return nil, d.screenErr
	}
	return d.screen, nil
}

func (d *fakeDevices) GetUserMedia(_ context.Context, constraints capture.UserMediaConstraints) (capture.Stream, error) {
	d.userMedia = constraints
	if d.webcamErr != nil {
		return nil, d.webcamErr
	}
	return d.webcam, nil
}

type fakeRecorder struct {
	state     capture.RecorderState
	timeslice time.Duration
	stops     int
	onData    func([]byte)
}

func (r *fakeRecorder) Start(timeslice time.Duration) error {
	r.timeslice = timeslice
	r.state = capture.RecorderRecording
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.stops++
	r.state = capture.RecorderInactive
	return nil
}

func (r *fakeRecorder) State() capture.RecorderState { return r.state }

type fakeRecorderFactory struct {
	recorder *fakeRecorder
	stream   capture.Stream
	opts     capture.RecorderOptions
}

func (f *fakeRecorderFactory) NewRecorder(stream capture.Stream, opts capture.RecorderOptions, onData func([]byte)) (capture.Recorder, error) {
	f.stream = stream
	f.opts = opts
	f.recorder = &fakeRecorder{state: capture.RecorderInactive, onData: onData}
	return f.recorder, nil
}

type fixture struct {
	screenVideo *fakeTrack
	extraVideo  *fakeTrack
	screenAudio *fakeTrack
	webcamVideo *fakeTrack
	webcamAudio *fakeTrack
	devices     *fakeDevices
	factory     *fakeRecorderFactory
	coordinator *capture.Coordinator
}

func newFixture() *fixture {
	f := &fixture{
		screenVideo: &fakeTrack{id: "screen-v1", kind: capture.KindVideo},
		extraVideo:  &fakeTrack{id: "screen-v2", kind: capture.KindVideo},
		screenAudio: &fakeTrack{id: "screen-a", kind: capture.KindAudio},
		webcamVideo: &fakeTrack{id: "cam-v", kind: capture.KindVideo},
		webcamAudio: &fakeTrack{id: "cam-a", kind: capture.KindAudio},
		factory:     &fakeRecorderFactory{},
	}
	f.devices = &fakeDevices{
		screen: capture.NewStream(f.screenVideo, f.extraVideo, f.screenAudio),
		webcam: capture.NewStream(f.webcamVideo, f.webcamAudio),
	}
	f.coordinator = capture.NewCoordinator(f.devices, f.factory, zerolog.Nop())
	return f
}

func TestRequestPermissionsKeepsSingleScreen(t *testing.T) {
	f := newFixture()

	screen, webcam, err := f.coordinator.RequestPermissions(context.Background())
	require.NoError(t, err)
	require.Len(t, screen.VideoTracks(), 1)
	require.Equal(t, "screen-v1", screen.VideoTracks()[0].ID())
	require.Equal(t, 1, f.extraVideo.stops)
	require.Zero(t, f.screenVideo.stops)
	require.NotNil(t, webcam)
	require.Equal(t, capture.StatePermitted, f.coordinator.State())

	require.Equal(t, capture.ScreenConstraints, f.devices.display)
	require.Equal(t, "monitor", f.devices.display.DisplaySurface)
	require.Equal(t, 640, f.devices.userMedia.Width)
	require.Equal(t, 480, f.devices.userMedia.Height)
	require.Equal(t, 10, f.devices.userMedia.FrameRate)
}

func TestRequestPermissionsPropagatesDenial(t *testing.T) {
	denied := errors.New("permission denied")

	f := newFixture()
	f.devices.screenErr = denied
	_, _, err := f.coordinator.RequestPermissions(context.Background())
	require.ErrorIs(t, err, denied)
	require.Equal(t, capture.StateIdle, f.coordinator.State())

	f = newFixture()
	f.devices.webcamErr = denied
	_, _, err = f.coordinator.RequestPermissions(context.Background())
	require.ErrorIs(t, err, denied)
	require.Equal(t, capture.StateIdle, f.coordinator.State())
	require.Equal(t, 1, f.screenVideo.stops)
	require.Equal(t, 1, f.screenAudio.stops)
}

func TestStartRecordingExcludesWebcamVideo(t *testing.T) {
	f := newFixture()
	screen, webcam, err := f.coordinator.RequestPermissions(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.coordinator.StartRecording(screen, webcam, nil))
	require.True(t, f.coordinator.IsRecording())
	require.Equal(t, capture.StateRecording, f.coordinator.State())

	ids := make([]string, 0)
	for _, track := range f.factory.stream.Tracks() {
		ids = append(ids, track.ID())
	}
	require.Equal(t, []string{"screen-v1", "screen-a", "cam-a"}, ids)
	require.Equal(t, capture.ChunkInterval, f.factory.recorder.timeslice)
	require.Equal(t, capture.RecordingOptions, f.factory.opts)
}

func TestStartRecordingFiltersEmptyChunks(t *testing.T) {
	f := newFixture()
	screen, webcam, err := f.coordinator.RequestPermissions(context.Background())
	require.NoError(t, err)

	var chunks []capture.Chunk
	require.NoError(t, f.coordinator.StartRecording(screen, webcam, func(chunk capture.Chunk) {
		chunks = append(chunks, chunk)
	}))

	f.factory.recorder.onData([]byte("first"))
	f.factory.recorder.onData(nil)
	f.factory.recorder.onData([]byte{})
	f.factory.recorder.onData([]byte("second"))

	require.Len(t, chunks, 2)
	require.Equal(t, 0, chunks[0].Sequence)
	require.Equal(t, 1, chunks[1].Sequence)
	require.Equal(t, []byte("second"), chunks[1].Data)
}

func TestStartRecordingRejectsSecondRecorder(t *testing.T) {
	f := newFixture()
	screen, webcam, err := f.coordinator.RequestPermissions(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.coordinator.StartRecording(screen, webcam, nil))
	require.ErrorIs(t, f.coordinator.StartRecording(screen, webcam, nil), capture.ErrAlreadyRecording)
}

func TestStartRecordingRequiresScreenVideo(t *testing.T) {
	f := newFixture()
	audioOnly := capture.NewStream(f.screenAudio)
	require.ErrorIs(t, f.coordinator.StartRecording(audioOnly, nil, nil), capture.ErrNoScreenVideo)
}

func TestStopRecordingReleasesTracksOnce(t *testing.T) {
	f := newFixture()
	screen, webcam, err := f.coordinator.RequestPermissions(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.coordinator.StartRecording(screen, webcam, nil))

	f.coordinator.StopRecording()
	f.coordinator.StopRecording()

	require.False(t, f.coordinator.IsRecording())
	require.Equal(t, capture.StateIdle, f.coordinator.State())
	require.Equal(t, 1, f.factory.recorder.stops)
	for _, track := range []*fakeTrack{f.screenVideo, f.screenAudio, f.webcamVideo, f.webcamAudio} {
		require.Equal(t, 1, track.stops, track.id)
	}
}

func TestStopRecordingWhenIdleIsNoop(t *testing.T) {
	f := newFixture()
	f.coordinator.StopRecording()
	require.False(t, f.coordinator.IsRecording())
	require.Equal(t, capture.StateIdle, f.coordinator.State())
}

func TestStopRecordingReleasesPermittedTracks(t *testing.T) {
	f := newFixture()
	_, _, err := f.coordinator.RequestPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, capture.StatePermitted, f.coordinator.State())

	f.coordinator.StopRecording()

	require.Equal(t, capture.StateIdle, f.coordinator.State())
	for _, track := range []*fakeTrack{f.screenVideo, f.screenAudio, f.webcamVideo, f.webcamAudio} {
		require.Equal(t, 1, track.stops, track.id)
	}
}

func TestRequestPermissionsAgainReleasesPreviousGrant(t *testing.T) {
	f := newFixture()
	_, _, err := f.coordinator.RequestPermissions(context.Background())
	require.NoError(t, err)

	nextVideo := &fakeTrack{id: "screen-v3", kind: capture.KindVideo}
	nextCam := &fakeTrack{id: "cam-v2", kind: capture.KindVideo}
	f.devices.screen = capture.NewStream(nextVideo)
	f.devices.webcam = capture.NewStream(nextCam)

	_, _, err = f.coordinator.RequestPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.screenVideo.stops)
	require.Equal(t, 1, f.webcamAudio.stops)
	require.Zero(t, nextVideo.stops)

	f.coordinator.StopRecording()
	require.Equal(t, 1, nextVideo.stops)
	require.Equal(t, 1, nextCam.stops)
	require.Equal(t, 1, f.screenVideo.stops)
}

func TestRequestPermissionsWhileRecordingIsRejected(t *testing.T) {
	f := newFixture()
	screen, webcam, err := f.coordinator.RequestPermissions(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.coordinator.StartRecording(screen, webcam, nil))

	_, _, err = f.coordinator.RequestPermissions(context.Background())
	require.ErrorIs(t, err, capture.ErrAlreadyRecording)
	require.Equal(t, capture.StateRecording, f.coordinator.State())
	require.Zero(t, f.screenVideo.stops)
}

func TestStartRecordingAfterRecorderStoppedOnItsOwn(t *testing.T) {
	f := newFixture()
	screen, webcam, err := f.coordinator.RequestPermissions(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.coordinator.StartRecording(screen, webcam, nil))

	first := f.factory.recorder
	first.state = capture.RecorderInactive
	require.False(t, f.coordinator.IsRecording())

	require.NoError(t, f.coordinator.StartRecording(screen, webcam, nil))
	require.NotSame(t, first, f.factory.recorder)
	require.True(t, f.coordinator.IsRecording())
	require.Zero(t, f.screenVideo.stops)

	f.coordinator.StopRecording()
	require.Zero(t, first.stops)
	require.Equal(t, 1, f.factory.recorder.stops)
	require.Equal(t, 1, f.screenVideo.stops)
}

func TestStartRecordingWithoutScreenStream(t *testing.T) {
	f := newFixture()
	require.ErrorIs(t, f.coordinator.StartRecording(nil, nil, nil), capture.ErrNoScreenVideo)
	require.False(t, f.coordinator.IsRecording())
}
