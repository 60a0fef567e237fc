// Package capture acquires screen and webcam media, merges them into one
// recordable stream and delivers fixed-interval chunks to a sink.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ChunkInterval is how often the recorder hands out encoded data.
const ChunkInterval = 10 * time.Second

var (
	// ErrAlreadyRecording indicates a recorder is already active on the coordinator.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrNoScreenVideo indicates the screen stream carries no video track.
	ErrNoScreenVideo = errors.New("screen stream has no video track")
)

// Screen, camera and encoder settings applied to every session.
var (
	ScreenConstraints = DisplayConstraints{
		DisplaySurface: "monitor",
		FrameRate:      10,
		Audio:          true,
	}
	WebcamConstraints = UserMediaConstraints{
		FacingMode: "user",
		Width:      640,
		Height:     480,
		FrameRate:  10,
		Audio:      true,
	}
	RecordingOptions = RecorderOptions{
		MimeType:           "video/webm;codecs=vp8,opus",
		VideoBitsPerSecond: 250_000,
	}
)

// State is the coordinator lifecycle stage.
type State string

// Coordinator states.
const (
	StateIdle      State = "idle"
	StatePermitted State = "permitted"
	StateRecording State = "recording"
)

// Chunk is one non-empty slice of encoded recording.
type Chunk struct {
	Sequence   int
	Data       []byte
	CapturedAt time.Time
}

// ChunkSink consumes recorded chunks.
type ChunkSink func(chunk Chunk)

// Coordinator owns the media of one recording session.
type Coordinator struct {
	mu        sync.Mutex
	devices   MediaDevices
	recorders RecorderFactory
	logger    zerolog.Logger
	now       func() time.Time

	state    State
	screen   Stream
	webcam   Stream
	recorder Recorder
}

// NewCoordinator builds an idle coordinator.
func NewCoordinator(devices MediaDevices, recorders RecorderFactory, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		devices:   devices,
		recorders: recorders,
		logger:    logger.With().Str("component", "capture_coordinator").Logger(),
		now:       time.Now,
		state:     StateIdle,
	}
}

// RequestPermissions asks for screen capture then webcam capture. Only the
// first screen video track is kept. Denials are returned to the caller and
// leave the coordinator idle. Granted streams are held until StopRecording.
func (c *Coordinator) RequestPermissions(ctx context.Context) (Stream, Stream, error) {
	if c.IsRecording() {
		return nil, nil, ErrAlreadyRecording
	}

	screen, err := c.devices.GetDisplayMedia(ctx, ScreenConstraints)
	if err != nil {
		return nil, nil, fmt.Errorf("request screen capture: %w", err)
	}

	videoTracks := screen.VideoTracks()
	if len(videoTracks) > 1 {
		c.logger.Warn().Int("video_tracks", len(videoTracks)).Msg("multiple screens selected, keeping the first")
		for _, extra := range videoTracks[1:] {
			extra.Stop()
			screen.RemoveTrack(extra)
		}
	}

	webcam, err := c.devices.GetUserMedia(ctx, WebcamConstraints)
	if err != nil {
		stopTracks(screen)
		return nil, nil, fmt.Errorf("request webcam capture: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording() {
		stopTracks(screen)
		stopTracks(webcam)
		return nil, nil, ErrAlreadyRecording
	}
	c.hold(screen, webcam)
	c.state = StatePermitted

	return screen, webcam, nil
}

// StartRecording records screen video, screen audio and webcam audio into one
// stream. Webcam video is never recorded. Empty chunks are not passed to sink.
func (c *Coordinator) StartRecording(screen, webcam Stream, sink ChunkSink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording() {
		return ErrAlreadyRecording
	}
	// A recorder that stopped on its own no longer blocks a new recording.
	c.recorder = nil

	if screen == nil {
		return ErrNoScreenVideo
	}
	screenVideo := screen.VideoTracks()
	if len(screenVideo) == 0 {
		return ErrNoScreenVideo
	}

	tracks := []Track{screenVideo[0]}
	tracks = append(tracks, screen.AudioTracks()...)
	if webcam != nil {
		tracks = append(tracks, webcam.AudioTracks()...)
	}
	combined := NewStream(tracks...)

	var seqMu sync.Mutex
	sequence := 0
	onData := func(data []byte) {
		if len(data) == 0 {
			return
		}
		seqMu.Lock()
		chunk := Chunk{Sequence: sequence, Data: data, CapturedAt: c.now()}
		sequence++
		seqMu.Unlock()
		if sink != nil {
			sink(chunk)
		}
	}

	recorder, err := c.recorders.NewRecorder(combined, RecordingOptions, onData)
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}
	if err := recorder.Start(ChunkInterval); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}

	c.hold(screen, webcam)
	c.recorder = recorder
	c.state = StateRecording
	c.logger.Info().Int("tracks", len(tracks)).Msg("recording started")

	return nil
}

// StopRecording stops the recorder and releases every held track, including
// streams granted by RequestPermissions that were never recorded. Calling it
// while idle does nothing.
func (c *Coordinator) StopRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recorder != nil && c.recorder.State() != RecorderInactive {
		if err := c.recorder.Stop(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to stop recorder")
		}
	}

	if c.screen != nil {
		stopTracks(c.screen)
	}
	if c.webcam != nil {
		stopTracks(c.webcam)
	}

	wasRecording := c.recorder != nil
	c.screen = nil
	c.webcam = nil
	c.recorder = nil
	c.state = StateIdle

	if wasRecording {
		c.logger.Info().Msg("recording stopped")
	}
}

// IsRecording reports whether the recorder is currently capturing.
func (c *Coordinator) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording()
}

// State returns the current lifecycle stage.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) recording() bool {
	return c.recorder != nil && c.recorder.State() != RecorderInactive
}

// hold replaces the held streams, releasing previously held ones that are not
// carried over. Callers hold c.mu.
func (c *Coordinator) hold(screen, webcam Stream) {
	for _, previous := range []Stream{c.screen, c.webcam} {
		if previous != nil && previous != screen && previous != webcam {
			stopTracks(previous)
		}
	}
	c.screen = screen
	c.webcam = webcam
}

func stopTracks(stream Stream) {
	if stream == nil {
		return
	}
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}
