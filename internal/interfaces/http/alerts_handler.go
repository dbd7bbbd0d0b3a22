package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/analytics"
	"github.com/jhoicas/pcp-stock-ledger/internal/application/dto"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
)

// AlertsHandler alertas de stock bajo y agotado.
type AlertsHandler struct {
	uc *analytics.StockAlertsUseCase
}

// NewAlertsHandler construye el handler.
func NewAlertsHandler(uc *analytics.StockAlertsUseCase) *AlertsHandler {
	return &AlertsHandler{uc: uc}
}

// LowStock godoc
// @Summary      Pares por debajo del umbral
// @Tags         alerts
// @Security     Bearer
// @Produce      json
// @Param        threshold   query  string  false  "umbral por defecto"
// @Param        thresholds  query  string  false  "umbrales por producto: 7:10,8:2.5"
// @Success      200  {array}  dto.LowStockAlertDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/alerts/low-stock [get]
func (h *AlertsHandler) LowStock(c *fiber.Ctx) error {
	var req dto.LowStockRequest
	if err := c.QueryParser(&req); err != nil {
		return badRequest(c, domain.ReasonInvalidInput, "parámetros inválidos")
	}
	th, err := analytics.ParseThresholds(req.Threshold, req.Thresholds)
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.uc.LowStock(c.UserContext(), th)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// ZeroStock godoc
// @Summary      Pares agotados (con movimientos y saldo cero)
// @Tags         alerts
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.ZeroStockAlertDTO
// @Router       /api/alerts/zero-stock [get]
func (h *AlertsHandler) ZeroStock(c *fiber.Ctx) error {
	list, err := h.uc.ZeroStock(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}
