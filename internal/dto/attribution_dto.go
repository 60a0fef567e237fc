package dto

import (
	"time"

	"github.com/noah-isme/promora-go-api/internal/attribution"
	"github.com/noah-isme/promora-go-api/internal/models"
)

// CodeCopyRequest reports code copied out of an AI chat response.
type CodeCopyRequest struct {
	Code  string `json:"code" validate:"max=200000"`
	Model string `json:"model" validate:"omitempty,max=128"`
}

// CodePasteRequest reports a paste into the code editor.
type CodePasteRequest struct {
	PastedText string `json:"pastedText" validate:"max=200000"`
	LineNumber int    `json:"lineNumber" validate:"min=0"`
	CodeBefore string `json:"codeBefore"`
	CodeAfter  string `json:"codeAfter"`
}

// CodeModifyRequest reports an edit to a single editor line.
type CodeModifyRequest struct {
	LineNumber int    `json:"lineNumber" validate:"min=0"`
	CodeBefore string `json:"codeBefore"`
	CodeAfter  string `json:"codeAfter"`
	OldText    string `json:"oldText" validate:"max=200000"`
	NewText    string `json:"newText" validate:"max=200000"`
}

// SessionResponse describes an attribution session on this node.
type SessionResponse struct {
	SessionID   string `json:"session_id"`
	Created     bool   `json:"created"`
	AILineCount int    `json:"ai_line_count"`
}

// CopyResponse acknowledges a recorded copy.
type CopyResponse struct {
	SessionID string    `json:"session_id"`
	Model     string    `json:"model,omitempty"`
	CopiedAt  time.Time `json:"copied_at"`
}

// AttributionSummary aggregates what a session's tracking produced so far.
type AttributionSummary struct {
	SessionID                string         `json:"session_id"`
	Events                   map[string]int `json:"events"`
	FailedDispatches         int            `json:"failed_dispatches"`
	AILineCount              int            `json:"ai_line_count"`
	Modifications            int            `json:"modifications"`
	AverageModificationDepth float64        `json:"average_modification_depth"`
	Active                   bool           `json:"active"`
}

// InteractionLogQuery filters the persisted interaction log of a session.
type InteractionLogQuery struct {
	SessionID      string `validate:"required,max=128"`
	EventType      string `query:"event_type" validate:"omitempty,max=64"`
	DispatchStatus string `query:"status" validate:"omitempty,oneof=sent skipped failed"`
	Page           int    `query:"page" validate:"omitempty,min=1"`
	PageSize       int    `query:"page_size" validate:"omitempty,min=1,max=200"`
}

// InteractionLogResponse is the serialized form of a persisted tracking event.
type InteractionLogResponse struct {
	ID             uint                   `json:"id"`
	SessionID      string                 `json:"session_id"`
	EventType      string                 `json:"event_type"`
	Model          string                 `json:"model,omitempty"`
	CodeLineNumber *int                   `json:"code_line_number,omitempty"`
	CodeSnippet    string                 `json:"code_snippet,omitempty"`
	TokensUsed     int                    `json:"tokens_used,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	DispatchStatus string                 `json:"dispatch_status"`
	StatusCode     int                    `json:"status_code,omitempty"`
	DispatchError  string                 `json:"dispatch_error,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// NewInteractionLogResponse converts a model into a DTO.
func NewInteractionLogResponse(entry models.InteractionLog) InteractionLogResponse {
	return InteractionLogResponse{
		ID:             entry.ID,
		SessionID:      entry.SessionID,
		EventType:      entry.EventType,
		Model:          entry.Model,
		CodeLineNumber: entry.CodeLineNumber,
		CodeSnippet:    entry.CodeSnippet,
		TokensUsed:     entry.TokensUsed,
		Metadata:       map[string]interface{}(entry.Metadata),
		DispatchStatus: entry.DispatchStatus,
		StatusCode:     entry.StatusCode,
		DispatchError:  entry.DispatchError,
		CreatedAt:      entry.CreatedAt,
	}
}

// NewInteractionLogResponseSlice converts a slice of models into DTOs.
func NewInteractionLogResponseSlice(entries []models.InteractionLog) []InteractionLogResponse {
	out := make([]InteractionLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, NewInteractionLogResponse(entry))
	}
	return out
}

// AttributionFeedEvent is pushed to live feed subscribers after each dispatch.
type AttributionFeedEvent struct {
	SessionID  string                     `json:"session_id"`
	Event      attribution.TrackEvent     `json:"event"`
	Status     attribution.DispatchStatus `json:"status"`
	StatusCode int                        `json:"status_code,omitempty"`
	OccurredAt time.Time                  `json:"occurred_at"`
}
