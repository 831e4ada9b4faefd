package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/plydojo/game-server/internal/coordinator"
	"github.com/plydojo/game-server/internal/store"
	"github.com/plydojo/game-server/pkg/gamedto"
)

type handlers struct {
	coord  *coordinator.Coordinator
	checks []Pinger
}

func (h *handlers) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()
	for _, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

type joinQueueRequest struct {
	GameType string `json:"gameType"`
	Rating   int    `json:"rating,omitempty"`
}

func (h *handlers) joinQueue(c *fiber.Ctx) error {
	var req joinQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return gamedto.NewError(gamedto.KindInvalidInput, "malformed request body")
	}
	if req.GameType == "" {
		req.GameType = "chess"
	}
	status, err := h.coord.JoinQueue(c.Context(), userID(c), req.GameType, req.Rating)
	if err != nil {
		return err
	}
	return c.JSON(status)
}

func (h *handlers) leaveQueue(c *fiber.Ctx) error {
	res, err := h.coord.LeaveQueue(c.Context(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *handlers) queueStatus(c *fiber.Ctx) error {
	status, err := h.coord.QueueStatus(c.Context(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(status)
}

func (h *handlers) activeCount(c *fiber.Ctx) error {
	count, err := h.coord.ActiveGameCount(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"activeGames": count})
}

type rematchRequest struct {
	GameID string `json:"gameId"`
}

func (h *handlers) rematch(c *fiber.Ctx) error {
	var req rematchRequest
	if err := c.BodyParser(&req); err != nil || req.GameID == "" {
		return gamedto.NewError(gamedto.KindInvalidInput, "gameId is required")
	}
	res, err := h.coord.RequestRematch(c.Context(), req.GameID, userID(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *handlers) listGames(c *fiber.Ctx) error {
	page, err := h.coord.ListGames(c.Context(), userID(c), store.ListFilter{
		GameType: c.Query("gameType"),
		Result:   c.Query("result"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 10),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *handlers) gameState(c *fiber.Ctx) error {
	gameID := c.Params("id")
	if err := h.coord.ValidateGameAccess(c.Context(), gameID, userID(c)); err != nil {
		return err
	}
	state, err := h.coord.GameState(c.Context(), gameID)
	if err != nil {
		return err
	}
	return c.JSON(state)
}
