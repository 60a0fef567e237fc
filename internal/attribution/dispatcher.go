package attribution

import "context"

// DispatchStatus describes how a best-effort send ended.
type DispatchStatus string

// Dispatch statuses.
const (
	DispatchSent    DispatchStatus = "sent"
	DispatchSkipped DispatchStatus = "skipped"
	DispatchFailed  DispatchStatus = "failed"
)

// DispatchResult reports the outcome of a single event send. Callers may ignore it.
type DispatchResult struct {
	EventType  EventType      `json:"event_type"`
	Status     DispatchStatus `json:"status"`
	StatusCode int            `json:"status_code,omitempty"`
	Err        error          `json:"-"`
	Error      string         `json:"error,omitempty"`
}

// Dispatcher delivers tracking events. Implementations never panic on transport
// failures; they report them in the result instead.
type Dispatcher interface {
	Dispatch(ctx context.Context, event TrackEvent) DispatchResult
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, event TrackEvent) DispatchResult

// Dispatch calls f(ctx, event).
func (f DispatcherFunc) Dispatch(ctx context.Context, event TrackEvent) DispatchResult {
	return f(ctx, event)
}

// Failed builds a failed result for event.
func Failed(event TrackEvent, statusCode int, err error) DispatchResult {
	result := DispatchResult{
		EventType:  event.EventType,
		Status:     DispatchFailed,
		StatusCode: statusCode,
		Err:        err,
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// Sent builds a successful result for event.
func Sent(event TrackEvent, statusCode int) DispatchResult {
	return DispatchResult{EventType: event.EventType, Status: DispatchSent, StatusCode: statusCode}
}
