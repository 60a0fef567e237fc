package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promora-go-api/internal/service"
	"github.com/noah-isme/promora-go-api/internal/utils"
)

// RecordingHandler accepts recording chunks uploaded by the capture client.
type RecordingHandler struct {
	service service.RecordingService
	logger  zerolog.Logger
}

// NewRecordingHandler constructs a recording handler.
func NewRecordingHandler(service service.RecordingService, logger zerolog.Logger) *RecordingHandler {
	return &RecordingHandler{
		service: service,
		logger:  logger.With().Str("component", "recording_handler").Logger(),
	}
}

// Register wires recording routes. reviewers guards the listing and may be nil.
func (h *RecordingHandler) Register(router fiber.Router, reviewers fiber.Handler) {
	router.Post("/chunks", h.upload)
	router.Get("/chunks", orNoop(reviewers), h.list)
}

func (h *RecordingHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("chunk")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "chunk is required")
	}

	sequence, err := strconv.Atoi(strings.TrimSpace(c.FormValue("sequence")))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid sequence")
	}

	var capturedAt time.Time
	if raw := strings.TrimSpace(c.FormValue("captured_at")); raw != "" {
		capturedAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid captured_at timestamp")
		}
	}

	handle, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read chunk")
	}
	defer handle.Close()

	result, err := h.service.StoreChunk(requestContext(c), c.Params(sessionParam), sequence, handle, capturedAt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChunkTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, service.ErrChunkTypeNotAllowed),
			errors.Is(err, service.ErrChunkEmpty),
			errors.Is(err, service.ErrInvalidSequence),
			errors.Is(err, service.ErrSessionRequired):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Int("sequence", sequence).Msg("recording chunk upload failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "recording upload failed")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "recording chunk stored", result)
}

func (h *RecordingHandler) list(c *fiber.Ctx) error {
	chunks, err := h.service.List(requestContext(c), c.Params(sessionParam))
	if err != nil {
		if errors.Is(err, service.ErrSessionRequired) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list recording chunks")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list recording chunks")
	}
	return utils.SendSuccess(c, "recording chunks", chunks)
}
