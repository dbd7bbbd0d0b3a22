package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/dto"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
)

var statusByReason = map[string]int{
	domain.ReasonInvalidInput:        fiber.StatusBadRequest,
	domain.ReasonInvalidQuantity:     fiber.StatusBadRequest,
	domain.ReasonInvalidLocationPair: fiber.StatusBadRequest,
	domain.ReasonUnknownLocation:     fiber.StatusBadRequest,
	domain.ReasonUnknownProduct:      fiber.StatusBadRequest,
	domain.ReasonInsufficientStock:   fiber.StatusBadRequest,
	domain.ReasonLocationDisabled:    fiber.StatusBadRequest,
	domain.ReasonDuplicateCode:       fiber.StatusConflict,
	domain.ReasonLocationInUse:       fiber.StatusConflict,
	domain.ReasonAlreadyReversed:     fiber.StatusConflict,
	domain.ReasonBalanceFrozen:       fiber.StatusLocked,
	domain.ReasonIntegrityViolation:  fiber.StatusConflict,
	domain.ReasonNotFound:            fiber.StatusNotFound,
	domain.ReasonUnauthorized:        fiber.StatusUnauthorized,
	domain.ReasonTimeout:             fiber.StatusGatewayTimeout,
	domain.ReasonUnavailable:         fiber.StatusServiceUnavailable,
}

// writeError traduce un error de dominio al cuerpo {"error": motivo, "message": texto}.
// Los errores internos no exponen su detalle.
func writeError(c *fiber.Ctx, err error) error {
	reason := domain.ReasonCode(err)
	status, ok := statusByReason[reason]
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: domain.ReasonInternal, Message: "error interno"})
	}
	body := dto.ErrorResponse{Error: reason, Message: err.Error()}
	var rej *domain.RejectionError
	if errors.As(err, &rej) {
		body.Requested = rej.Requested
		body.Available = rej.Available
	}
	if status == fiber.StatusServiceUnavailable {
		body.Message = "servicio no disponible, reintente"
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, reason, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: reason, Message: message})
}
