package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promora-go-api/internal/dto"
	"github.com/noah-isme/promora-go-api/internal/observability"
)

const (
	feedSendBufferSize = 32
	feedPingInterval   = 30 * time.Second
	// FeedSubject is the NATS subject dispatched events are fanned out on.
	FeedSubject = "promora.attribution.events"
)

// AttributionFeed pushes dispatched tracking events to live subscribers of a session.
type AttributionFeed interface {
	Publish(ctx context.Context, event dto.AttributionFeedEvent)
	Subscribe(sessionID string) (<-chan dto.AttributionFeedEvent, func())
	ServeConnection(conn *websocket.Conn, sessionID string)
	Start(ctx context.Context) error
}

type attributionFeed struct {
	hub     *feedHub
	nats    *nats.Conn
	subject string
	nodeID  string
	logger  zerolog.Logger
}

type feedHub struct {
	mu       sync.RWMutex
	sessions map[string]map[*feedSubscriber]struct{}
	log      zerolog.Logger
}

type feedSubscriber struct {
	sessionID string
	send      chan dto.AttributionFeedEvent
}

type feedEnvelope struct {
	Source string                   `json:"source"`
	Event  dto.AttributionFeedEvent `json:"event"`
	SentAt time.Time                `json:"sent_at"`
}

// NewAttributionFeed creates the live feed. natsConn may be nil, in which case
// events only reach subscribers connected to this node.
func NewAttributionFeed(natsConn *nats.Conn, logger zerolog.Logger) AttributionFeed {
	return &attributionFeed{
		hub: &feedHub{
			sessions: make(map[string]map[*feedSubscriber]struct{}),
			log:      logger.With().Str("component", "attribution_feed_hub").Logger(),
		},
		nats:    natsConn,
		subject: FeedSubject,
		nodeID:  uuid.NewString(),
		logger:  logger.With().Str("component", "attribution_feed").Logger(),
	}
}

// Start subscribes to events published by other nodes until ctx is done.
func (f *attributionFeed) Start(ctx context.Context) error {
	if f.nats == nil {
		return nil
	}

	sub, err := f.nats.Subscribe(f.subject, func(msg *nats.Msg) {
		f.handleEnvelope(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to attribution feed: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			f.logger.Warn().Err(err).Msg("failed to drain attribution feed subscription")
		}
	}()

	return nil
}

func (f *attributionFeed) Publish(ctx context.Context, event dto.AttributionFeedEvent) {
	f.hub.broadcast(event)

	if f.nats == nil {
		return
	}

	payload, err := json.Marshal(feedEnvelope{Source: f.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		f.logger.Warn().Err(err).Msg("failed to encode attribution feed event")
		return
	}
	if err := f.nats.Publish(f.subject, payload); err != nil {
		f.logger.Warn().Err(err).Str("session_id", event.SessionID).Msg("failed to publish attribution feed event")
	}
}

func (f *attributionFeed) Subscribe(sessionID string) (<-chan dto.AttributionFeedEvent, func()) {
	subscriber := &feedSubscriber{
		sessionID: sessionID,
		send:      make(chan dto.AttributionFeedEvent, feedSendBufferSize),
	}
	f.hub.register(subscriber)

	var once sync.Once
	return subscriber.send, func() {
		once.Do(func() { f.hub.unregister(subscriber) })
	}
}

// ServeConnection streams the session's events to conn until either side closes.
func (f *attributionFeed) ServeConnection(conn *websocket.Conn, sessionID string) {
	events, cancel := f.Subscribe(sessionID)
	defer cancel()

	observability.FeedConnections().Inc()
	defer observability.FeedConnections().Dec()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				f.logger.Debug().Err(err).Str("session_id", sessionID).Msg("feed read loop ended")
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				f.logger.Debug().Err(err).Msg("feed write loop terminated")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				f.logger.Debug().Err(err).Msg("feed ping failed")
				return
			}
		case <-done:
			return
		}
	}
}

func (f *attributionFeed) handleEnvelope(data []byte) {
	var envelope feedEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Warn().Err(err).Msg("invalid attribution feed event")
		return
	}

	if envelope.Source == f.nodeID {
		return
	}

	f.hub.broadcast(envelope.Event)
}

func (h *feedHub) register(subscriber *feedSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.sessions[subscriber.sessionID]; !exists {
		h.sessions[subscriber.sessionID] = make(map[*feedSubscriber]struct{})
	}
	h.sessions[subscriber.sessionID][subscriber] = struct{}{}
	h.log.Debug().Str("session_id", subscriber.sessionID).Msg("feed subscriber connected")
}

func (h *feedHub) unregister(subscriber *feedSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.sessions[subscriber.sessionID]; ok {
		delete(subscribers, subscriber)
		if len(subscribers) == 0 {
			delete(h.sessions, subscriber.sessionID)
		}
	}
	close(subscriber.send)
	h.log.Debug().Str("session_id", subscriber.sessionID).Msg("feed subscriber disconnected")
}

func (h *feedHub) broadcast(event dto.AttributionFeedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for subscriber := range h.sessions[event.SessionID] {
		select {
		case subscriber.send <- event:
		default:
			h.log.Warn().Str("session_id", event.SessionID).Msg("dropping feed event for slow subscriber")
		}
	}
}
