package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/promora-go-api/internal/capture"
	"github.com/noah-isme/promora-go-api/internal/dto"
	"github.com/noah-isme/promora-go-api/internal/models"
	"github.com/noah-isme/promora-go-api/internal/observability"
	"github.com/noah-isme/promora-go-api/internal/repository"
)

const defaultMaxChunkMB = 25

var (
	// ErrChunkEmpty indicates the chunk carried no data.
	ErrChunkEmpty = errors.New("recording chunk is empty")
	// ErrChunkTooLarge indicates the chunk exceeded the configured limit.
	ErrChunkTooLarge = errors.New("recording chunk exceeds maximum allowed size")
	// ErrChunkTypeNotAllowed indicates the chunk is not a supported media container.
	ErrChunkTypeNotAllowed = errors.New("recording chunk type not allowed")
	// ErrInvalidSequence indicates a negative chunk sequence number.
	ErrInvalidSequence = errors.New("recording chunk sequence must not be negative")
)

// FileStorage abstracts recording destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// RecordingService validates and stores the chunks produced by a capture coordinator.
type RecordingService interface {
	StoreChunk(ctx context.Context, sessionID string, sequence int, reader io.Reader, capturedAt time.Time) (dto.RecordingChunkResponse, error)
	List(ctx context.Context, sessionID string) ([]dto.RecordingChunkResponse, error)
	Sink(ctx context.Context, sessionID string) capture.ChunkSink
}

type recordingService struct {
	storage FileStorage
	repo    repository.RecordingChunkRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewRecordingService constructs a recording service.
func NewRecordingService(storage FileStorage, repo repository.RecordingChunkRepository, maxChunkMB int, logger zerolog.Logger) RecordingService {
	if maxChunkMB <= 0 {
		maxChunkMB = defaultMaxChunkMB
	}
	return &recordingService{
		storage: storage,
		repo:    repo,
		logger:  logger.With().Str("component", "recording_service").Logger(),
		maxSize: int64(maxChunkMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/promora-go-api/internal/service/recording"),
	}
}

func (s *recordingService) StoreChunk(ctx context.Context, sessionID string, sequence int, reader io.Reader, capturedAt time.Time) (dto.RecordingChunkResponse, error) {
	ctx, span := s.tracer.Start(ctx, "recording.store_chunk")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.RecordingStoreLatency().Observe(time.Since(start).Seconds())
	}()

	id, err := normalizeSessionID(sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.RecordingChunkResponse{}, err
	}
	span.SetAttributes(
		attribute.String("recording.session_id", id),
		attribute.Int("recording.sequence", sequence),
		attribute.Int64("recording.max_bytes", s.maxSize),
	)

	if sequence < 0 {
		span.RecordError(ErrInvalidSequence)
		span.SetStatus(codes.Error, "validation failed")
		return dto.RecordingChunkResponse{}, ErrInvalidSequence
	}
	if reader == nil {
		return dto.RecordingChunkResponse{}, s.reject(span, "empty", ErrChunkEmpty)
	}

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(reader, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.RecordingChunkResponse{}, err
	}
	if buf.Len() == 0 {
		return dto.RecordingChunkResponse{}, s.reject(span, "empty", ErrChunkEmpty)
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.RecordingChunkResponse{}, s.reject(span, "size", ErrChunkTooLarge)
	}

	mimeType := normalizeMime(mimetype.Detect(buf.Bytes()).String())
	span.SetAttributes(attribute.String("recording.detected_mime", mimeType))
	if !isAllowedChunkType(mimeType, sequence) {
		return dto.RecordingChunkResponse{}, s.reject(span, "type", ErrChunkTypeNotAllowed)
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := chunkObjectName(id, sequence)

	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.RecordingRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.RecordingChunkResponse{}, fmt.Errorf("upload recording chunk: %w", err)
	}

	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	record := models.RecordingChunk{
		SessionID:  id,
		Sequence:   sequence,
		URL:        url,
		MimeType:   mimeType,
		SizeBytes:  int64(buf.Len()),
		Checksum:   hex.EncodeToString(checksum[:]),
		CapturedAt: capturedAt.UTC(),
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.RecordingChunkResponse{}, err
	}

	observability.RecordingChunks().WithLabelValues(mimeType).Inc()
	observability.RecordingBytes().Add(float64(record.SizeBytes))
	span.SetStatus(codes.Ok, "stored")

	return dto.NewRecordingChunkResponse(record), nil
}

func (s *recordingService) List(ctx context.Context, sessionID string) ([]dto.RecordingChunkResponse, error) {
	id, err := normalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.repo.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewRecordingChunkResponseSlice(chunks), nil
}

// Sink adapts StoreChunk to a coordinator sink. Failures are logged and the
// recording carries on.
func (s *recordingService) Sink(ctx context.Context, sessionID string) capture.ChunkSink {
	return func(chunk capture.Chunk) {
		if _, err := s.StoreChunk(ctx, sessionID, chunk.Sequence, bytes.NewReader(chunk.Data), chunk.CapturedAt); err != nil {
			s.logger.Error().
				Err(err).
				Str("session_id", sessionID).
				Int("sequence", chunk.Sequence).
				Int("size_bytes", len(chunk.Data)).
				Msg("failed to store recording chunk")
		}
	}
}

func (s *recordingService) reject(span trace.Span, reason string, err error) error {
	observability.RecordingRejected().WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	return err
}

func chunkObjectName(sessionID string, sequence int) string {
	return fmt.Sprintf("%s/chunk-%06d", sessionID, sequence)
}

func normalizeMime(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	if idx := strings.Index(lower, ";"); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	return lower
}

// Only the first chunk carries the container header; later slices of the
// same recording sniff as raw bytes.
func isAllowedChunkType(m string, sequence int) bool {
	switch m {
	case "video/webm", "audio/webm", "video/x-matroska", "video/mp4":
		return true
	case "application/octet-stream":
		return sequence > 0
	default:
		return false
	}
}
