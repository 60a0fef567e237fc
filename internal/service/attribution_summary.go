package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promora-go-api/internal/attribution"
	"github.com/noah-isme/promora-go-api/internal/dto"
)

const (
	summaryKeyPrefix    = "attribution:summary:"
	summaryEventPrefix  = "events:"
	summaryFailedField  = "failed"
	summaryAILinesField = "ai_lines"
	summaryDepthTotal   = "depth_total"
	summaryDepthCount   = "depth_count"
	defaultSummaryTTL   = 24 * time.Hour
)

// SummaryStore keeps running per-session attribution counters.
type SummaryStore interface {
	Record(ctx context.Context, event attribution.TrackEvent, result attribution.DispatchResult) error
	SetAILines(ctx context.Context, sessionID string, count int) error
	Load(ctx context.Context, sessionID string) (dto.AttributionSummary, error)
}

type redisSummaryStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSummaryStore builds a Redis backed summary store. A nil client yields a
// store that records nothing and loads empty summaries.
func NewSummaryStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) SummaryStore {
	if ttl <= 0 {
		ttl = defaultSummaryTTL
	}
	return &redisSummaryStore{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "attribution_summary").Logger(),
	}
}

func summaryKey(sessionID string) string {
	return summaryKeyPrefix + sessionID
}

func (s *redisSummaryStore) Record(ctx context.Context, event attribution.TrackEvent, result attribution.DispatchResult) error {
	if s.client == nil {
		return nil
	}

	key := summaryKey(event.SessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, summaryEventPrefix+string(event.EventType), 1)
		if result.Status == attribution.DispatchFailed {
			pipe.HIncrBy(ctx, key, summaryFailedField, 1)
		}
		if depth, ok := modificationDepthOf(event); ok {
			pipe.HIncrByFloat(ctx, key, summaryDepthTotal, depth)
			pipe.HIncrBy(ctx, key, summaryDepthCount, 1)
		}
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record attribution summary: %w", err)
	}
	return nil
}

func (s *redisSummaryStore) SetAILines(ctx context.Context, sessionID string, count int) error {
	if s.client == nil {
		return nil
	}

	key := summaryKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, summaryAILinesField, count)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store ai line count: %w", err)
	}
	return nil
}

func (s *redisSummaryStore) Load(ctx context.Context, sessionID string) (dto.AttributionSummary, error) {
	summary := dto.AttributionSummary{SessionID: sessionID, Events: map[string]int{}}
	if s.client == nil {
		return summary, nil
	}

	fields, err := s.client.HGetAll(ctx, summaryKey(sessionID)).Result()
	if err != nil {
		return summary, fmt.Errorf("load attribution summary: %w", err)
	}

	var depthTotal float64
	for field, raw := range fields {
		switch {
		case strings.HasPrefix(field, summaryEventPrefix):
			summary.Events[strings.TrimPrefix(field, summaryEventPrefix)] = s.parseInt(field, raw)
		case field == summaryFailedField:
			summary.FailedDispatches = s.parseInt(field, raw)
		case field == summaryAILinesField:
			summary.AILineCount = s.parseInt(field, raw)
		case field == summaryDepthCount:
			summary.Modifications = s.parseInt(field, raw)
		case field == summaryDepthTotal:
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				s.logger.Warn().Err(err).Str("field", field).Msg("invalid summary value")
				continue
			}
			depthTotal = value
		}
	}

	if summary.Modifications > 0 {
		summary.AverageModificationDepth = depthTotal / float64(summary.Modifications)
	}

	return summary, nil
}

func (s *redisSummaryStore) parseInt(field, raw string) int {
	value, err := strconv.Atoi(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("field", field).Msg("invalid summary value")
		return 0
	}
	return value
}

func modificationDepthOf(event attribution.TrackEvent) (float64, bool) {
	if event.EventType != attribution.EventCodeModified || event.Metadata == nil {
		return 0, false
	}
	depth, ok := event.Metadata["modificationDepth"].(float64)
	return depth, ok
}
