package capture

import (
	"context"
	"sync"
	"time"
)

// TrackKind distinguishes audio from video tracks.
type TrackKind string

// Track kinds.
const (
	KindVideo TrackKind = "video"
	KindAudio TrackKind = "audio"
)

// Track is a single live media track owned by the host platform.
type Track interface {
	ID() string
	Kind() TrackKind
	// Stop releases the underlying device. Repeated calls are harmless.
	Stop()
}

// Stream groups tracks captured together.
type Stream interface {
	Tracks() []Track
	VideoTracks() []Track
	AudioTracks() []Track
	RemoveTrack(track Track)
}

// DisplayConstraints configure screen capture.
type DisplayConstraints struct {
	DisplaySurface string
	FrameRate      int
	Audio          bool
}

// UserMediaConstraints configure camera and microphone capture.
type UserMediaConstraints struct {
	FacingMode string
	Width      int
	Height     int
	FrameRate  int
	Audio      bool
}

// MediaDevices acquires media from the host. Both calls block until the user
// grants or denies access.
type MediaDevices interface {
	GetDisplayMedia(ctx context.Context, constraints DisplayConstraints) (Stream, error)
	GetUserMedia(ctx context.Context, constraints UserMediaConstraints) (Stream, error)
}

// RecorderState mirrors the recorder lifecycle.
type RecorderState string

// Recorder states.
const (
	RecorderInactive  RecorderState = "inactive"
	RecorderRecording RecorderState = "recording"
)

// RecorderOptions configure the encoder.
type RecorderOptions struct {
	MimeType           string
	VideoBitsPerSecond int
	AudioBitsPerSecond int
}

// Recorder encodes a stream and hands out encoded data every timeslice.
type Recorder interface {
	Start(timeslice time.Duration) error
	Stop() error
	State() RecorderState
}

// RecorderFactory creates recorders bound to a stream. onData receives every
// encoded blob, including empty ones.
type RecorderFactory interface {
	NewRecorder(stream Stream, opts RecorderOptions, onData func([]byte)) (Recorder, error)
}

// TrackSet is an in-memory Stream built from existing tracks.
type TrackSet struct {
	mu     sync.Mutex
	tracks []Track
}

// NewStream builds a stream holding tracks in order.
func NewStream(tracks ...Track) *TrackSet {
	return &TrackSet{tracks: append([]Track(nil), tracks...)}
}

// Tracks returns every track in the stream.
func (s *TrackSet) Tracks() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Track(nil), s.tracks...)
}

// VideoTracks returns the video tracks.
func (s *TrackSet) VideoTracks() []Track {
	return s.byKind(KindVideo)
}

// AudioTracks returns the audio tracks.
func (s *TrackSet) AudioTracks() []Track {
	return s.byKind(KindAudio)
}

// RemoveTrack drops track from the stream without stopping it.
func (s *TrackSet) RemoveTrack(track Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tracks[:0]
	for _, existing := range s.tracks {
		if existing != track {
			kept = append(kept, existing)
		}
	}
	s.tracks = kept
}

func (s *TrackSet) byKind(kind TrackKind) []Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Track, 0, len(s.tracks))
	for _, track := range s.tracks {
		if track.Kind() == kind {
			result = append(result, track)
		}
	}
	return result
}
