package attribution

import "unicode/utf8"

// EventType identifies the kind of interaction reported to the ingestion endpoint.
type EventType string

// Event types emitted by the tracker. Callers of TrackEvent may use others.
const (
	EventCodeCopiedFromAI EventType = "code_copied_from_ai"
	EventCodePastedFromAI EventType = "code_pasted_from_ai"
	EventCodeModified     EventType = "code_modified"
)

const (
	// MaxContextLength bounds codeBefore/codeAfter in emitted events.
	MaxContextLength = 500
	// MaxEditTextLength bounds the oldText/newText copies kept in modification metadata.
	MaxEditTextLength = 200
)

// TrackEvent is the unit of data sent to the AI-interaction ingestion endpoint.
type TrackEvent struct {
	SessionID      string                 `json:"sessionId"`
	EventType      EventType              `json:"eventType"`
	Model          string                 `json:"model,omitempty"`
	PromptText     string                 `json:"promptText,omitempty"`
	ResponseText   string                 `json:"responseText,omitempty"`
	TokensUsed     int                    `json:"tokensUsed,omitempty"`
	CodeSnippet    string                 `json:"codeSnippet,omitempty"`
	CodeLineNumber *int                   `json:"codeLineNumber,omitempty"`
	CodeBefore     string                 `json:"codeBefore,omitempty"`
	CodeAfter      string                 `json:"codeAfter,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Truncated returns a copy of the event with the editor context clipped to MaxContextLength.
func (e TrackEvent) Truncated() TrackEvent {
	e.CodeBefore = Truncate(e.CodeBefore, MaxContextLength)
	e.CodeAfter = Truncate(e.CodeAfter, MaxContextLength)
	return e
}

// Truncate clips s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func intPtr(v int) *int {
	return &v
}
