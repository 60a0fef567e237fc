package attribution

import (
	"strconv"
	"time"
)

// CopySource tags where copied code came from.
type CopySource string

// Copy sources.
const (
	SourceAIResponse CopySource = "ai_response"
	SourceClipboard  CopySource = "clipboard"
)

// RelevanceWindow is the maximum copy-to-paste gap for a paste to be attributed to the AI copy.
const RelevanceWindow = 30 * time.Second

// CopiedCodeRecord is the most recent code copied from an AI response.
type CopiedCodeRecord struct {
	Text      string
	Timestamp time.Time
	Model     string
	Source    CopySource
}

// LineIndex marks editor lines (decimal string keys) that received AI-sourced pastes.
type LineIndex map[string]bool

// State is the per-session attribution memory. It is not safe for concurrent
// use on its own; Tracker serialises access.
type State struct {
	lastCopy *CopiedCodeRecord
	aiLines  LineIndex
}

// NewState returns empty attribution state.
func NewState() *State {
	return &State{aiLines: LineIndex{}}
}

// RecordCopy replaces the retained copy record.
func (s *State) RecordCopy(record CopiedCodeRecord) {
	s.lastCopy = &record
}

// LastCopy returns the retained copy record, if any.
func (s *State) LastCopy() (CopiedCodeRecord, bool) {
	if s.lastCopy == nil {
		return CopiedCodeRecord{}, false
	}
	return *s.lastCopy, true
}

// RelevantCopy returns the retained record when it is an AI copy younger than RelevanceWindow at now.
func (s *State) RelevantCopy(now time.Time) (CopiedCodeRecord, bool) {
	record, ok := s.LastCopy()
	if !ok || record.Source != SourceAIResponse {
		return CopiedCodeRecord{}, false
	}
	if now.Sub(record.Timestamp) >= RelevanceWindow {
		return CopiedCodeRecord{}, false
	}
	return record, true
}

// MarkLines flags count consecutive lines starting at first as AI-originated.
func (s *State) MarkLines(first, count int) []int {
	marked := make([]int, 0, count)
	for offset := 0; offset < count; offset++ {
		line := first + offset
		s.aiLines[lineKey(line)] = true
		marked = append(marked, line)
	}
	return marked
}

// IsAILine reports whether line was touched by an AI-sourced paste.
func (s *State) IsAILine(line int) bool {
	return s.aiLines[lineKey(line)]
}

// AILineCount returns the number of lines currently flagged as AI-originated.
func (s *State) AILineCount() int {
	return len(s.aiLines)
}

// Lines returns a copy of the line index.
func (s *State) Lines() LineIndex {
	clone := make(LineIndex, len(s.aiLines))
	for key, value := range s.aiLines {
		clone[key] = value
	}
	return clone
}

func lineKey(line int) string {
	return strconv.Itoa(line)
}
