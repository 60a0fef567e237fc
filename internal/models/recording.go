package models

import "time"

// RecordingChunk stores metadata about one uploaded slice of a session recording.
type RecordingChunk struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"size:128;not null;uniqueIndex:idx_recording_session_sequence" json:"session_id"`
	Sequence   int       `gorm:"not null;uniqueIndex:idx_recording_session_sequence" json:"sequence"`
	URL        string    `gorm:"size:512;not null" json:"url"`
	MimeType   string    `gorm:"size:128;not null" json:"mime_type"`
	SizeBytes  int64     `gorm:"not null" json:"size_bytes"`
	Checksum   string    `gorm:"size:128;index" json:"checksum"`
	CapturedAt time.Time `json:"captured_at"`
	CreatedAt  time.Time `json:"created_at"`
}
