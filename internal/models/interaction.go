package models

import (
	"time"

	"gorm.io/datatypes"
)

// InteractionLog is the local audit copy of a tracking event and how its delivery ended.
type InteractionLog struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	SessionID      string            `gorm:"size:128;index;not null" json:"session_id"`
	EventType      string            `gorm:"size:64;index;not null" json:"event_type"`
	Model          string            `gorm:"size:128" json:"model"`
	CodeLineNumber *int              `json:"code_line_number"`
	CodeSnippet    string            `gorm:"type:text" json:"code_snippet"`
	TokensUsed     int               `json:"tokens_used"`
	Metadata       datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	DispatchStatus string            `gorm:"size:16;not null" json:"dispatch_status"`
	StatusCode     int               `json:"status_code"`
	DispatchError  string            `gorm:"size:512" json:"dispatch_error"`
	CorrelationID  string            `gorm:"size:64" json:"correlation_id"`
	CreatedAt      time.Time         `gorm:"index" json:"created_at"`
}
