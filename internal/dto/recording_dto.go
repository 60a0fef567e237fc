package dto

import (
	"time"

	"github.com/noah-isme/promora-go-api/internal/models"
)

// RecordingChunkResponse describes a stored recording chunk.
type RecordingChunkResponse struct {
	ID         uint      `json:"id"`
	SessionID  string    `json:"session_id"`
	Sequence   int       `json:"sequence"`
	URL        string    `json:"url"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	Checksum   string    `json:"checksum"`
	CapturedAt time.Time `json:"captured_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRecordingChunkResponse converts a model into a DTO.
func NewRecordingChunkResponse(chunk models.RecordingChunk) RecordingChunkResponse {
	return RecordingChunkResponse{
		ID:         chunk.ID,
		SessionID:  chunk.SessionID,
		Sequence:   chunk.Sequence,
		URL:        chunk.URL,
		MimeType:   chunk.MimeType,
		SizeBytes:  chunk.SizeBytes,
		Checksum:   chunk.Checksum,
		CapturedAt: chunk.CapturedAt,
		CreatedAt:  chunk.CreatedAt,
	}
}

// NewRecordingChunkResponseSlice converts a slice of models into DTOs.
func NewRecordingChunkResponseSlice(chunks []models.RecordingChunk) []RecordingChunkResponse {
	out := make([]RecordingChunkResponse, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, NewRecordingChunkResponse(chunk))
	}
	return out
}
