package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/promora-go-api/internal/attribution"
	"github.com/noah-isme/promora-go-api/internal/dto"
	"github.com/noah-isme/promora-go-api/internal/observability"
	"github.com/noah-isme/promora-go-api/internal/repository"
	"github.com/noah-isme/promora-go-api/pkg/tokens"
)

const maxSessionIDLength = 128

var (
	// ErrSessionRequired indicates the session identifier was blank or too long.
	ErrSessionRequired = errors.New("valid session id is required")
	// ErrInvalidTrackEvent indicates a passthrough event failed schema validation.
	ErrInvalidTrackEvent = errors.New("invalid tracking event")
)

//go:embed schemas/tracking_event.schema.json
var trackingEventSchemaSource string

var trackingEventSchema = jsonschema.MustCompileString("tracking_event.schema.json", trackingEventSchemaSource)

// AttributionService exposes the per-session attribution trackers to the HTTP layer.
type AttributionService interface {
	Open(ctx context.Context, sessionID string) (dto.SessionResponse, error)
	Close(ctx context.Context, sessionID string) (bool, error)
	Copy(ctx context.Context, sessionID string, req dto.CodeCopyRequest) (dto.CopyResponse, error)
	Paste(ctx context.Context, sessionID string, req dto.CodePasteRequest) (attribution.PasteOutcome, error)
	Modify(ctx context.Context, sessionID string, req dto.CodeModifyRequest) (attribution.ModificationOutcome, error)
	Track(ctx context.Context, sessionID string, payload []byte) (attribution.DispatchResult, error)
	Summary(ctx context.Context, sessionID string) (dto.AttributionSummary, error)
	Interactions(ctx context.Context, query dto.InteractionLogQuery) ([]dto.InteractionLogResponse, int64, error)
}

type attributionService struct {
	registry  *attribution.Registry
	summary   SummaryStore
	logs      repository.InteractionLogRepository
	counter   tokens.Counter
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAttributionService wires the tracker registry with its read models.
func NewAttributionService(registry *attribution.Registry, summary SummaryStore, logs repository.InteractionLogRepository, counter tokens.Counter, validate *validator.Validate, logger zerolog.Logger) AttributionService {
	return &attributionService{
		registry:  registry,
		summary:   summary,
		logs:      logs,
		counter:   counter,
		validator: validate,
		logger:    logger.With().Str("component", "attribution_service").Logger(),
	}
}

func (s *attributionService) Open(_ context.Context, sessionID string) (dto.SessionResponse, error) {
	id, err := normalizeSessionID(sessionID)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	tracker, created := s.open(id)
	return dto.SessionResponse{SessionID: id, Created: created, AILineCount: tracker.AILineCount()}, nil
}

func (s *attributionService) Close(_ context.Context, sessionID string) (bool, error) {
	id, err := normalizeSessionID(sessionID)
	if err != nil {
		return false, err
	}

	closed := s.registry.Close(id)
	if closed {
		observability.ActiveSessions().Dec()
		s.logger.Info().Str("session_id", id).Msg("attribution session closed")
	}
	return closed, nil
}

func (s *attributionService) Copy(_ context.Context, sessionID string, req dto.CodeCopyRequest) (dto.CopyResponse, error) {
	id, err := normalizeSessionID(sessionID)
	if err != nil {
		return dto.CopyResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.CopyResponse{}, err
	}

	tracker, _ := s.open(id)
	tracker.TrackCodeCopy(req.Code, req.Model)

	record, _ := tracker.LastCopy()
	return dto.CopyResponse{SessionID: id, Model: record.Model, CopiedAt: record.Timestamp.UTC()}, nil
}

func (s *attributionService) Paste(ctx context.Context, sessionID string, req dto.CodePasteRequest) (attribution.PasteOutcome, error) {
	id, err := normalizeSessionID(sessionID)
	if err != nil {
		return attribution.PasteOutcome{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return attribution.PasteOutcome{}, err
	}

	tracker, _ := s.open(id)
	outcome := tracker.TrackCodePaste(ctx, id, req.PastedText, req.LineNumber, req.CodeBefore, req.CodeAfter)

	if !outcome.AISourced {
		observability.PasteClassifications().WithLabelValues("other").Inc()
		return outcome, nil
	}

	observability.PasteClassifications().WithLabelValues("ai").Inc()
	if s.summary != nil {
		if err := s.summary.SetAILines(ctx, id, tracker.AILineCount()); err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("failed to store ai line count")
		}
	}
	return outcome, nil
}

func (s *attributionService) Modify(ctx context.Context, sessionID string, req dto.CodeModifyRequest) (attribution.ModificationOutcome, error) {
	id, err := normalizeSessionID(sessionID)
	if err != nil {
		return attribution.ModificationOutcome{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return attribution.ModificationOutcome{}, err
	}

	tracker, _ := s.open(id)
	return tracker.TrackCodeModification(ctx, id, req.LineNumber, req.CodeBefore, req.CodeAfter, req.OldText, req.NewText), nil
}

// Track forwards an arbitrary event. The path session id overrides any in the body.
func (s *attributionService) Track(ctx context.Context, sessionID string, payload []byte) (attribution.DispatchResult, error) {
	id, err := normalizeSessionID(sessionID)
	if err != nil {
		return attribution.DispatchResult{}, err
	}

	var document interface{}
	if err := json.Unmarshal(payload, &document); err != nil {
		return attribution.DispatchResult{}, fmt.Errorf("%w: %v", ErrInvalidTrackEvent, err)
	}
	if err := trackingEventSchema.Validate(document); err != nil {
		return attribution.DispatchResult{}, fmt.Errorf("%w: %v", ErrInvalidTrackEvent, err)
	}

	var event attribution.TrackEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return attribution.DispatchResult{}, fmt.Errorf("%w: %v", ErrInvalidTrackEvent, err)
	}
	event.SessionID = id

	if event.TokensUsed == 0 && s.counter != nil {
		event.TokensUsed = s.estimateTokens(event)
	}

	tracker, _ := s.open(id)
	return tracker.TrackEvent(ctx, event), nil
}

func (s *attributionService) Summary(ctx context.Context, sessionID string) (dto.AttributionSummary, error) {
	id, err := normalizeSessionID(sessionID)
	if err != nil {
		return dto.AttributionSummary{}, err
	}

	summary := dto.AttributionSummary{SessionID: id, Events: map[string]int{}}
	if s.summary != nil {
		loaded, err := s.summary.Load(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("failed to load attribution summary")
		} else {
			summary = loaded
		}
	}

	if tracker, ok := s.registry.Get(id); ok {
		summary.Active = true
		summary.AILineCount = tracker.AILineCount()
	}

	return summary, nil
}

func (s *attributionService) Interactions(ctx context.Context, query dto.InteractionLogQuery) ([]dto.InteractionLogResponse, int64, error) {
	id, err := normalizeSessionID(query.SessionID)
	if err != nil {
		return nil, 0, err
	}
	query.SessionID = id

	if err := s.validator.Struct(query); err != nil {
		return nil, 0, err
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 50
	}

	entries, total, err := s.logs.List(ctx, repository.InteractionLogFilter{
		SessionID:      query.SessionID,
		EventType:      query.EventType,
		DispatchStatus: query.DispatchStatus,
		Page:           query.Page,
		PageSize:       query.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	return dto.NewInteractionLogResponseSlice(entries), total, nil
}

func (s *attributionService) open(sessionID string) (*attribution.Tracker, bool) {
	tracker, created := s.registry.Open(sessionID)
	if created {
		observability.ActiveSessions().Inc()
		s.logger.Info().Str("session_id", sessionID).Msg("attribution session opened")
	}
	return tracker, created
}

func (s *attributionService) estimateTokens(event attribution.TrackEvent) int {
	total := 0
	for _, text := range []string{event.PromptText, event.ResponseText} {
		count, err := s.counter.Count(event.Model, text)
		if err != nil {
			s.logger.Debug().Err(err).Str("model", event.Model).Msg("token estimate unavailable")
			return 0
		}
		total += count
	}
	return total
}

func normalizeSessionID(sessionID string) (string, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" || len(id) > maxSessionIDLength {
		return "", ErrSessionRequired
	}
	return id, nil
}
