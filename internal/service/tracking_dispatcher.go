package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/promora-go-api/internal/attribution"
	"github.com/noah-isme/promora-go-api/internal/dto"
	"github.com/noah-isme/promora-go-api/internal/middleware"
	"github.com/noah-isme/promora-go-api/internal/models"
	"github.com/noah-isme/promora-go-api/internal/observability"
	"github.com/noah-isme/promora-go-api/internal/repository"
)

type trackingDispatcher struct {
	upstream attribution.Dispatcher
	logs     repository.InteractionLogRepository
	summary  SummaryStore
	feed     AttributionFeed
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewTrackingDispatcher sends events to upstream and then records each outcome
// in the interaction log, the session summary and the live feed. Any of the
// collaborators may be nil. Local bookkeeping failures never change the result.
func NewTrackingDispatcher(upstream attribution.Dispatcher, logs repository.InteractionLogRepository, summary SummaryStore, feed AttributionFeed, logger zerolog.Logger) attribution.Dispatcher {
	return &trackingDispatcher{
		upstream: upstream,
		logs:     logs,
		summary:  summary,
		feed:     feed,
		logger:   logger.With().Str("component", "tracking_dispatcher").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/promora-go-api/internal/service/tracking"),
		now:      time.Now,
	}
}

func (d *trackingDispatcher) Dispatch(ctx context.Context, event attribution.TrackEvent) attribution.DispatchResult {
	correlation := middleware.CorrelationIDFromContext(ctx)

	attrs := []attribute.KeyValue{
		attribute.String("attribution.session_id", event.SessionID),
		attribute.String("attribution.event_type", string(event.EventType)),
	}
	if correlation != "" {
		attrs = append(attrs, attribute.String("correlation_id", correlation))
	}
	ctx, span := d.tracer.Start(ctx, "attribution.dispatch", trace.WithAttributes(attrs...))
	defer span.End()

	result := attribution.DispatchResult{EventType: event.EventType, Status: attribution.DispatchSkipped}
	if d.upstream != nil {
		result = d.upstream.Dispatch(ctx, event)
	}

	span.SetAttributes(
		attribute.String("attribution.dispatch_status", string(result.Status)),
		attribute.Int("attribution.status_code", result.StatusCode),
	)
	if result.Status == attribution.DispatchFailed {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, "dispatch failed")
	} else {
		span.SetStatus(codes.Ok, string(result.Status))
	}

	observability.TrackingEvents().WithLabelValues(string(event.EventType), string(result.Status)).Inc()
	if depth, ok := modificationDepthOf(event); ok {
		observability.ModificationDepth().Observe(depth)
	}

	d.persist(ctx, event, result, correlation)

	if d.summary != nil {
		if err := d.summary.Record(ctx, event, result); err != nil {
			d.logger.Warn().Err(err).Str("session_id", event.SessionID).Msg("failed to update attribution summary")
		}
	}

	if d.feed != nil {
		d.feed.Publish(ctx, dto.AttributionFeedEvent{
			SessionID:  event.SessionID,
			Event:      event,
			Status:     result.Status,
			StatusCode: result.StatusCode,
			OccurredAt: d.now().UTC(),
		})
	}

	return result
}

func (d *trackingDispatcher) persist(ctx context.Context, event attribution.TrackEvent, result attribution.DispatchResult, correlation string) {
	if d.logs == nil {
		return
	}

	entry := models.InteractionLog{
		SessionID:      event.SessionID,
		EventType:      string(event.EventType),
		Model:          event.Model,
		CodeLineNumber: event.CodeLineNumber,
		CodeSnippet:    event.CodeSnippet,
		TokensUsed:     event.TokensUsed,
		Metadata:       datatypes.JSONMap(event.Metadata),
		DispatchStatus: string(result.Status),
		StatusCode:     result.StatusCode,
		DispatchError:  attribution.Truncate(result.Error, 512),
		CorrelationID:  correlation,
		CreatedAt:      d.now().UTC(),
	}

	if err := d.logs.Create(ctx, &entry); err != nil {
		d.logger.Warn().Err(err).Str("session_id", event.SessionID).Msg("failed to persist interaction log")
	}
}
