package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/dto"
)

// Pinger almacenamiento que puede comprobar su disponibilidad.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health responde 200 si el almacenamiento contesta dentro de 2s, 503 si no.
func Health(store Pinger, storage string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.HealthResponse{Status: "unavailable", Storage: storage})
		}
		return c.JSON(dto.HealthResponse{Status: "ok", Storage: storage})
	}
}
