// Package attribution correlates AI-chat copies with editor pastes and scores
// later edits to AI-originated lines.
package attribution

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/noah-isme/promora-go-api/pkg/similarity"
)

const (
	shortEditDepth  = 3.0
	shortEditLength = 10
)

// PasteOutcome reports what TrackCodePaste inferred and sent.
type PasteOutcome struct {
	AISourced   bool             `json:"ai_sourced"`
	MarkedLines []int            `json:"marked_lines,omitempty"`
	Results     []DispatchResult `json:"results,omitempty"`
}

// ModificationOutcome reports what TrackCodeModification inferred and sent.
type ModificationOutcome struct {
	Tracked bool            `json:"tracked"`
	Depth   float64         `json:"modification_depth"`
	Result  *DispatchResult `json:"result,omitempty"`
}

// Tracker owns the attribution state of one assessment session.
type Tracker struct {
	mu         sync.Mutex
	state      *State
	dispatcher Dispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithClock overrides the wall clock used for copy timestamps and the relevance window.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker builds a tracker with fresh state.
func NewTracker(dispatcher Dispatcher, logger zerolog.Logger, opts ...Option) *Tracker {
	tracker := &Tracker{
		state:      NewState(),
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "attribution_tracker").Logger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(tracker)
	}
	return tracker
}

// TrackCodeCopy records code copied out of an AI response, replacing any earlier copy.
func (t *Tracker) TrackCodeCopy(code, model string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.RecordCopy(CopiedCodeRecord{
		Text:      code,
		Timestamp: t.now(),
		Model:     model,
		Source:    SourceAIResponse,
	})
}

// TrackCodePaste attributes a paste to the last AI copy when it happened inside
// the relevance window. Non-AI pastes leave no trace. Only timing is checked,
// the pasted text is never compared with the copied text.
func (t *Tracker) TrackCodePaste(ctx context.Context, sessionID, pastedText string, lineNumber int, codeBefore, codeAfter string) PasteOutcome {
	t.mu.Lock()
	now := t.now()
	record, ok := t.state.RelevantCopy(now)
	if !ok {
		t.mu.Unlock()
		return PasteOutcome{}
	}
	pastedLines := strings.Split(pastedText, "\n")
	marked := t.state.MarkLines(lineNumber, len(pastedLines))
	t.mu.Unlock()

	pasteEvent := TrackEvent{
		SessionID:      sessionID,
		EventType:      EventCodePastedFromAI,
		Model:          record.Model,
		CodeSnippet:    pastedText,
		CodeLineNumber: intPtr(lineNumber),
		CodeBefore:     codeBefore,
		CodeAfter:      codeAfter,
		Metadata: map[string]interface{}{
			"timeSinceCopy": now.Sub(record.Timestamp).Seconds(),
			"lineCount":     len(pastedLines),
		},
	}

	copyEvent := TrackEvent{
		SessionID:   sessionID,
		EventType:   EventCodeCopiedFromAI,
		Model:       record.Model,
		CodeSnippet: record.Text,
		Metadata: map[string]interface{}{
			"lineCount": len(strings.Split(record.Text, "\n")),
			"copiedAt":  record.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}

	results := []DispatchResult{
		t.TrackEvent(ctx, pasteEvent),
		t.TrackEvent(ctx, copyEvent),
	}

	return PasteOutcome{AISourced: true, MarkedLines: marked, Results: results}
}

// TrackCodeModification scores an edit to a line previously filled by an AI paste.
// Edits to other lines are ignored.
func (t *Tracker) TrackCodeModification(ctx context.Context, sessionID string, lineNumber int, codeBefore, codeAfter, oldText, newText string) ModificationOutcome {
	t.mu.Lock()
	fromAI := t.state.IsAILine(lineNumber)
	t.mu.Unlock()
	if !fromAI {
		return ModificationOutcome{}
	}

	depth := ModificationDepth(oldText, newText)
	event := TrackEvent{
		SessionID:      sessionID,
		EventType:      EventCodeModified,
		CodeLineNumber: intPtr(lineNumber),
		CodeBefore:     codeBefore,
		CodeAfter:      codeAfter,
		Metadata: map[string]interface{}{
			"modificationDepth": depth,
			"oldText":           Truncate(oldText, MaxEditTextLength),
			"newText":           Truncate(newText, MaxEditTextLength),
			"isFromAI":          true,
		},
	}

	result := t.TrackEvent(ctx, event)
	return ModificationOutcome{Tracked: true, Depth: depth, Result: &result}
}

// TrackEvent sends event best-effort. A missing session id skips the send.
func (t *Tracker) TrackEvent(ctx context.Context, event TrackEvent) DispatchResult {
	event = event.Truncated()

	if strings.TrimSpace(event.SessionID) == "" {
		t.logger.Warn().Str("event_type", string(event.EventType)).Msg("no session id, skipping tracking event")
		return DispatchResult{EventType: event.EventType, Status: DispatchSkipped}
	}

	if t.dispatcher == nil {
		return DispatchResult{EventType: event.EventType, Status: DispatchSkipped}
	}

	result := t.dispatcher.Dispatch(ctx, event)
	if result.Status == DispatchFailed {
		t.logger.Error().
			Err(result.Err).
			Str("session_id", event.SessionID).
			Str("event_type", string(event.EventType)).
			Int("status_code", result.StatusCode).
			Msg("failed to track ai interaction")
	}
	return result
}

// AILineCount returns the number of lines flagged as AI-originated.
func (t *Tracker) AILineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.AILineCount()
}

// Lines returns a snapshot of the AI-origin line index.
func (t *Tracker) Lines() LineIndex {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Lines()
}

// LastCopy returns the retained copy record.
func (t *Tracker) LastCopy() (CopiedCodeRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.LastCopy()
}

// ModificationDepth scores how much oldText was rewritten into newText on a 0-10 scale.
func ModificationDepth(oldText, newText string) float64 {
	if oldText == newText {
		return 0
	}
	if utf8.RuneCountInString(oldText) < shortEditLength || utf8.RuneCountInString(newText) < shortEditLength {
		return shortEditDepth
	}
	return (1 - similarity.Similarity(oldText, newText)) * 10
}
