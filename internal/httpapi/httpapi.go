package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"go.uber.org/zap"

	"github.com/plydojo/game-server/internal/auth"
	"github.com/plydojo/game-server/internal/coordinator"
	"github.com/plydojo/game-server/internal/obslog"
	"github.com/plydojo/game-server/pkg/gamedto"
)

// Pinger is a dependency the health endpoint probes (Postgres, Redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// New builds the REST surface. Every /multiplayer route requires a bearer
// token; /health is open for probes.
func New(coord *coordinator.Coordinator, verifier auth.Verifier, checks ...Pinger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	h := &handlers{coord: coord, checks: checks}

	app.Get("/health", h.health)

	mp := app.Group("/multiplayer", requireAuth(verifier))
	mp.Post("/queue/join", h.joinQueue)
	mp.Post("/queue/leave", h.leaveQueue)
	mp.Get("/queue/status", h.queueStatus)
	mp.Get("/active", h.activeCount)
	mp.Post("/rematch", h.rematch)
	mp.Get("/games", h.listGames)
	mp.Get("/games/:id", h.gameState)

	return app
}

// requireAuth resolves the bearer token and stashes the user id for handlers.
func requireAuth(verifier auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.FromBearer(c.Get("Authorization"))
		userID, err := verifier.Verify(c.Context(), token)
		if err != nil {
			return err
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// errorHandler maps domain error kinds onto HTTP statuses; anything unknown
// is a 500 with a generic body.
func errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	status := fiber.StatusInternalServerError
	switch gamedto.ErrorKind(err) {
	case gamedto.KindNotFound:
		status = fiber.StatusNotFound
	case gamedto.KindForbidden:
		status = fiber.StatusForbidden
	case gamedto.KindInvalidState:
		status = fiber.StatusConflict
	case gamedto.KindInvalidInput:
		status = fiber.StatusBadRequest
	case gamedto.KindUnauthorized:
		status = fiber.StatusUnauthorized
	}
	if status == fiber.StatusInternalServerError {
		obslog.L().Error("http_internal_error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
