package attribution

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Registry holds one Tracker per live assessment session.
type Registry struct {
	mu         sync.RWMutex
	trackers   map[string]*Tracker
	dispatcher Dispatcher
	logger     zerolog.Logger
	opts       []Option
}

// NewRegistry creates an empty session registry. Trackers it opens share dispatcher.
func NewRegistry(dispatcher Dispatcher, logger zerolog.Logger, opts ...Option) *Registry {
	return &Registry{
		trackers:   make(map[string]*Tracker),
		dispatcher: dispatcher,
		logger:     logger,
		opts:       opts,
	}
}

// Open returns the session's tracker, creating it on first use. The boolean
// reports whether a new tracker was created.
func (r *Registry) Open(sessionID string) (*Tracker, bool) {
	key := strings.TrimSpace(sessionID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if tracker, ok := r.trackers[key]; ok {
		return tracker, false
	}

	tracker := NewTracker(r.dispatcher, r.logger.With().Str("session_id", key).Logger(), r.opts...)
	r.trackers[key] = tracker
	return tracker, true
}

// Get returns the tracker for sessionID if one is open.
func (r *Registry) Get(sessionID string) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracker, ok := r.trackers[strings.TrimSpace(sessionID)]
	return tracker, ok
}

// Close discards the session's tracker and its state.
func (r *Registry) Close(sessionID string) bool {
	key := strings.TrimSpace(sessionID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.trackers[key]; !ok {
		return false
	}
	delete(r.trackers, key)
	return true
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}
