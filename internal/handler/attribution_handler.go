package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promora-go-api/internal/dto"
	"github.com/noah-isme/promora-go-api/internal/service"
	"github.com/noah-isme/promora-go-api/internal/utils"
)

// AttributionHandler exposes the editor and chat hooks of an attribution session.
type AttributionHandler struct {
	service service.AttributionService
	feed    service.AttributionFeed
	logger  zerolog.Logger
}

// NewAttributionHandler constructs an attribution handler.
func NewAttributionHandler(service service.AttributionService, feed service.AttributionFeed, logger zerolog.Logger) *AttributionHandler {
	return &AttributionHandler{
		service: service,
		feed:    feed,
		logger:  logger.With().Str("component", "attribution_handler").Logger(),
	}
}

// Register binds the routes of a single session. reviewers guards the audit
// endpoints and may be nil.
func (h *AttributionHandler) Register(router fiber.Router, reviewers fiber.Handler) {
	router.Post("", h.open)
	router.Delete("", h.close)
	router.Post("/copy", h.copy)
	router.Post("/paste", h.paste)
	router.Post("/modify", h.modify)
	router.Post("/events", h.track)
	router.Get("/summary", h.summary)
	router.Get("/interactions", orNoop(reviewers), h.interactions)

	if h.feed != nil {
		router.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		router.Get("/ws", websocket.New(h.stream))
	}
}

func (h *AttributionHandler) open(c *fiber.Ctx) error {
	session, err := h.service.Open(requestContext(c), c.Params(sessionParam))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "attribution session ready", session)
}

func (h *AttributionHandler) close(c *fiber.Ctx) error {
	closed, err := h.service.Close(requestContext(c), c.Params(sessionParam))
	if err != nil {
		return h.handleError(c, err)
	}
	if !closed {
		return utils.SendError(c, fiber.StatusNotFound, "attribution session not open")
	}
	return utils.SendSuccess(c, "attribution session closed", nil)
}

func (h *AttributionHandler) copy(c *fiber.Ctx) error {
	var req dto.CodeCopyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Copy(requestContext(c), c.Params(sessionParam), req)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "copy recorded", result)
}

func (h *AttributionHandler) paste(c *fiber.Ctx) error {
	var req dto.CodePasteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	outcome, err := h.service.Paste(requestContext(c), c.Params(sessionParam), req)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "paste processed", outcome)
}

func (h *AttributionHandler) modify(c *fiber.Ctx) error {
	var req dto.CodeModifyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	outcome, err := h.service.Modify(requestContext(c), c.Params(sessionParam), req)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "modification processed", outcome)
}

func (h *AttributionHandler) track(c *fiber.Ctx) error {
	result, err := h.service.Track(requestContext(c), c.Params(sessionParam), c.Body())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "event processed", result)
}

func (h *AttributionHandler) summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(requestContext(c), c.Params(sessionParam))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "attribution summary", summary)
}

func (h *AttributionHandler) interactions(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	query := dto.InteractionLogQuery{
		SessionID:      c.Params(sessionParam),
		EventType:      c.Query("event_type"),
		DispatchStatus: c.Query("status"),
		Page:           page,
		PageSize:       pageSize,
	}

	items, total, err := h.service.Interactions(requestContext(c), query)
	if err != nil {
		return h.handleError(c, err)
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 50
	}
	return utils.OK(c, items, "interaction log", utils.PageMeta{Page: query.Page, PageSize: query.PageSize, Total: total})
}

func (h *AttributionHandler) stream(conn *websocket.Conn) {
	sessionID := conn.Params(sessionParam)
	if sessionID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session id required"))
		_ = conn.Close()
		return
	}

	h.logger.Info().Str("session_id", sessionID).Msg("attribution feed connected")
	h.feed.ServeConnection(conn, sessionID)
	h.logger.Info().Str("session_id", sessionID).Msg("attribution feed disconnected")
}

func (h *AttributionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSessionRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidTrackEvent):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Str("session_id", c.Params(sessionParam)).Msg("attribution request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "attribution request failed")
	}
}
