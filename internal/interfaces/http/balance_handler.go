package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/dto"
	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

// BalanceHandler consulta de saldos y conciliación contra el libro.
type BalanceHandler struct {
	queries   *inventory.LedgerQueryUseCase
	reconcile *inventory.ReconcileUseCase
}

// NewBalanceHandler construye el handler.
func NewBalanceHandler(queries *inventory.LedgerQueryUseCase, reconcile *inventory.ReconcileUseCase) *BalanceHandler {
	return &BalanceHandler{queries: queries, reconcile: reconcile}
}

// ByProduct godoc
// @Summary      Saldos por ubicación; sin product_id, de todos los productos
// @Tags         balances
// @Security     Bearer
// @Produce      json
// @Param        product_id  query  int  false  "producto"
// @Success      200  {array}  dto.LocationBalanceResponse
// @Router       /api/balances [get]
func (h *BalanceHandler) ByProduct(c *fiber.Ctx) error {
	var productID *int64
	if raw := c.Query("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return badRequest(c, domain.ReasonInvalidInput, "product_id debe ser un entero positivo")
		}
		productID = &id
	}
	list, err := h.queries.GetBalances(c.UserContext(), productID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.LocationBalanceResponse, 0, len(list))
	for _, b := range list {
		out = append(out, dto.LocationBalanceResponse{ProductID: b.ProductID, LocationID: b.LocationID, Balance: b.Quantity, Frozen: b.Frozen()})
	}
	return c.JSON(out)
}

// Get godoc
// @Summary      Saldo de un par producto/ubicación (cero si nunca tuvo movimientos)
// @Tags         balances
// @Security     Bearer
// @Produce      json
// @Param        product_id   path  int  true  "producto"
// @Param        location_id  path  int  true  "ubicación"
// @Success      200  {object}  dto.BalanceResponse
// @Router       /api/balances/{product_id}/{location_id} [get]
func (h *BalanceHandler) Get(c *fiber.Ctx) error {
	key, ok := balanceKey(c)
	if !ok {
		return badRequest(c, domain.ReasonInvalidInput, "product_id y location_id deben ser enteros positivos")
	}
	b, err := h.queries.GetBalance(c.UserContext(), key)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toBalanceResponse(b))
}

// ByLocation godoc
// @Summary      Saldos no nulos de una ubicación, por producto
// @Tags         balances
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ubicación"
// @Success      200  {array}  dto.BalanceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/locations/{id}/balances [get]
func (h *BalanceHandler) ByLocation(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, domain.ReasonInvalidInput, "id inválido")
	}
	list, err := h.queries.BalancesByLocation(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.BalanceResponse, 0, len(list))
	for i := range list {
		out = append(out, toBalanceResponse(&list[i]))
	}
	return c.JSON(out)
}

// Verify godoc
// @Summary      Recalcular todos los saldos desde el libro y congelar los divergentes
// @Tags         balances
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.VerifyBalancesResponse
// @Router       /api/balances/verify [post]
func (h *BalanceHandler) Verify(c *fiber.Ctx) error {
	report, err := h.reconcile.VerifyBalances(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	frozen := make(map[entity.BalanceKey]bool, len(report.Frozen))
	for _, k := range report.Frozen {
		frozen[k] = true
	}
	out := dto.VerifyBalancesResponse{Checked: report.Checked, Discrepancies: make([]dto.DiscrepancyResponse, 0, len(report.Discrepancies))}
	for _, d := range report.Discrepancies {
		out.Discrepancies = append(out.Discrepancies, dto.DiscrepancyResponse{
			ProductID:    d.Key.ProductID,
			LocationID:   d.Key.LocationID,
			Materialized: d.Materialized,
			Ledger:       d.Ledger,
			Frozen:       frozen[d.Key],
		})
	}
	return c.JSON(out)
}

// Reconcile godoc
// @Summary      Reescribir el saldo de un par desde el libro y levantar el congelamiento
// @Tags         balances
// @Security     Bearer
// @Produce      json
// @Param        product_id   path  int  true  "producto"
// @Param        location_id  path  int  true  "ubicación"
// @Success      200  {object}  dto.BalanceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/balances/{product_id}/{location_id}/reconcile [post]
func (h *BalanceHandler) Reconcile(c *fiber.Ctx) error {
	key, ok := balanceKey(c)
	if !ok {
		return badRequest(c, domain.ReasonInvalidInput, "product_id y location_id deben ser enteros positivos")
	}
	b, err := h.reconcile.Reconcile(c.UserContext(), key, GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toBalanceResponse(b))
}

func balanceKey(c *fiber.Ctx) (entity.BalanceKey, bool) {
	p, ok1 := pathID(c, "product_id")
	l, ok2 := pathID(c, "location_id")
	return entity.BalanceKey{ProductID: p, LocationID: l}, ok1 && ok2
}

func toBalanceResponse(b *entity.Balance) dto.BalanceResponse {
	out := dto.BalanceResponse{
		ProductID:     b.ProductID,
		LocationID:    b.LocationID,
		Balance:       b.Quantity,
		MovementCount: b.MovementCount,
		Frozen:        b.Frozen(),
		FrozenReason:  b.FrozenReason,
	}
	if !b.UpdatedAt.IsZero() {
		t := b.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
