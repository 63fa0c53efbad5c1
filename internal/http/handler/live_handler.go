package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/habitloop/LivePulse/internal/app/engine"
	"github.com/habitloop/LivePulse/internal/app/model"
	"github.com/habitloop/LivePulse/internal/app/service"
)

// LiveDeps groups dependencies required by the live-view handlers.
type LiveDeps struct {
	Logger    *zap.Logger
	Engine    *engine.Engine
	Publisher *service.ActivityPublisher
}

// LiveHandler exposes the engine's bounded views and the activity ingest
// endpoint. Snapshot reads never touch the database; per-subject reads may.
type LiveHandler struct {
	logger    *zap.Logger
	engine    *engine.Engine
	publisher *service.ActivityPublisher
}

// NewLiveHandler creates a handler with the provided dependencies.
func NewLiveHandler(deps LiveDeps) *LiveHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveHandler{
		logger:    logger,
		engine:    deps.Engine,
		publisher: deps.Publisher,
	}
}

// Register wires the live routes onto the provided router.
func (h *LiveHandler) Register(router fiber.Router) {
	router.Get("/healthz", h.Health)

	api := router.Group("/api")
	{
		api.Post("/activity", h.RecordActivity)

		live := api.Group("/live")
		{
			live.Get("/feed", h.Feed)
			live.Get("/pulses", h.Pulses)
			live.Get("/countries", h.Countries)
			live.Get("/rank/:userID", h.Rank)
			live.Get("/cap/:userID", h.DailyCap)
			live.Get("/streak/:userID", h.Streak)
		}
	}
}

// Health handles GET /healthz
func (h *LiveHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Feed handles GET /api/live/feed
func (h *LiveHandler) Feed(c *fiber.Ctx) error {
	entries := h.engine.RecentFeed()
	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}

// Pulses handles GET /api/live/pulses
func (h *LiveHandler) Pulses(c *fiber.Ctx) error {
	pulses := h.engine.ActivePulses()
	return c.JSON(fiber.Map{
		"pulses": pulses,
		"count":  len(pulses),
	})
}

// Countries handles GET /api/live/countries
func (h *LiveHandler) Countries(c *fiber.Ctx) error {
	return c.JSON(h.engine.CountryHeat())
}

// Rank handles GET /api/live/rank/:userID
func (h *LiveHandler) Rank(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userID is required",
		})
	}

	status, err := h.engine.RankStatus(h.userContext(c), userID)
	if err != nil {
		return h.subjectError(c, "rank", userID, err)
	}
	return c.JSON(status)
}

// DailyCap handles GET /api/live/cap/:userID
func (h *LiveHandler) DailyCap(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userID is required",
		})
	}

	status, err := h.engine.DailyCap(h.userContext(c), userID)
	if err != nil {
		return h.subjectError(c, "daily cap", userID, err)
	}
	return c.JSON(status)
}

// Streak handles GET /api/live/streak/:userID
func (h *LiveHandler) Streak(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userID is required",
		})
	}

	status, err := h.engine.StreakStatus(h.userContext(c), userID)
	if err != nil {
		return h.subjectError(c, "streak", userID, err)
	}
	return c.JSON(status)
}

// RecordActivityRequest represents the request body for recording activity.
type RecordActivityRequest struct {
	UserID      string          `json:"user_id" validate:"required"`
	Username    string          `json:"username,omitempty"`
	EventType   string          `json:"event_type" validate:"required"`
	Meta        model.EventMeta `json:"meta,omitempty"`
	CountryCode string          `json:"country_code,omitempty"`
	CountryName string          `json:"country_name,omitempty"`
}

// RecordActivity handles POST /api/activity
func (h *LiveHandler) RecordActivity(c *fiber.Ctx) error {
	var req RecordActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}
	if req.EventType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "event_type is required",
		})
	}

	row, err := h.publisher.Record(h.userContext(c), service.RecordActivityInput{
		UserID:      req.UserID,
		Username:    req.Username,
		EventType:   req.EventType,
		Meta:        req.Meta,
		CountryCode: req.CountryCode,
		CountryName: req.CountryName,
	})
	if err != nil {
		h.logger.Error("failed to record activity", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to record activity",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(row)
}

func (h *LiveHandler) subjectError(c *fiber.Ctx, view, userID string, err error) error {
	h.logger.Error("failed to compute "+view,
		zap.String("user_id", userID),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "failed to compute " + view,
	})
}

func (h *LiveHandler) userContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
