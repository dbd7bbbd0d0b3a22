package http

import (
	"bytes"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/dto"
	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

// MovementHandler maneja el registro y la consulta del libro de movimientos.
type MovementHandler struct {
	register *inventory.RegisterMovementUseCase
	queries  *inventory.LedgerQueryUseCase
}

// NewMovementHandler construye el handler.
func NewMovementHandler(register *inventory.RegisterMovementUseCase, queries *inventory.LedgerQueryUseCase) *MovementHandler {
	return &MovementHandler{register: register, queries: queries}
}

// Register godoc
// @Summary      Registrar movimiento de stock
// @Tags         stock-movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterMovementRequest  true  "product_id, quantity, type, location_from, location_to, reference"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      423   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/stock-movements [post]
func (h *MovementHandler) Register(c *fiber.Ctx) error {
	var in dto.RegisterMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, domain.ReasonInvalidInput, "cuerpo inválido")
	}
	qty, ok := parseQuantity(in.Quantity)
	if !ok {
		return badRequest(c, domain.ReasonInvalidQuantity, "cantidad no numérica")
	}
	mov, err := h.register.RegisterMovement(c.UserContext(), inventory.MovementInputDTO{
		UserID:       GetUserID(c),
		ProductID:    in.ProductID,
		Type:         in.Type,
		Quantity:     qty,
		LocationFrom: in.LocationFrom,
		LocationTo:   in.LocationTo,
		Reference:    in.Reference,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(mov))
}

// Reverse godoc
// @Summary      Revertir movimiento con un asiento compensatorio
// @Tags         stock-movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int                         true  "ID del movimiento"
// @Param        body  body  dto.ReverseMovementRequest  false "reference"
// @Success      201   {object}  dto.MovementResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock-movements/{id}/reverse [post]
func (h *MovementHandler) Reverse(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, domain.ReasonInvalidInput, "id inválido")
	}
	var in dto.ReverseMovementRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, domain.ReasonInvalidInput, "cuerpo inválido")
		}
	}
	mov, err := h.register.ReverseMovement(c.UserContext(), id, GetUserID(c), in.Reference)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(mov))
}

// GetByID godoc
// @Summary      Obtener movimiento
// @Tags         stock-movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID"
// @Success      200  {object}  dto.MovementResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock-movements/{id} [get]
func (h *MovementHandler) GetByID(c *fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, domain.ReasonInvalidInput, "id inválido")
	}
	mov, err := h.queries.GetMovement(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toMovementResponse(mov))
}

// List godoc
// @Summary      Historial de movimientos (orden por id ascendente, paginación por after_id)
// @Tags         stock-movements
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  int     false  "producto"
// @Param        location_id  query  int     false  "ubicación (origen o destino)"
// @Param        type         query  string  false  "IN | OUT | TRANSFER"
// @Param        from         query  string  false  "RFC3339, inclusivo"
// @Param        to           query  string  false  "RFC3339, inclusivo"
// @Param        after_id     query  int     false  "cursor"
// @Param        limit        query  int     false  "tamaño de página"
// @Success      200  {object}  dto.MovementListResponse
// @Router       /api/stock-movements [get]
func (h *MovementHandler) List(c *fiber.Ctx) error {
	q, msg := parseMovementQuery(c)
	if msg != "" {
		return badRequest(c, domain.ReasonInvalidInput, msg)
	}
	page, err := h.queries.ListMovements(c.UserContext(), q)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.MovementListResponse{Items: make([]dto.MovementResponse, 0, len(page.Items))}
	for _, m := range page.Items {
		out.Items = append(out.Items, toMovementResponse(m))
	}
	if page.NextAfterID > 0 {
		next := page.NextAfterID
		out.NextAfterID = &next
	}
	return c.JSON(out)
}

func parseMovementQuery(c *fiber.Ctx) (inventory.MovementQuery, string) {
	var q inventory.MovementQuery
	optID := func(name string) (*int64, bool) {
		raw := c.Query(name)
		if raw == "" {
			return nil, true
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}
		return &v, true
	}
	optTime := func(name string) (*time.Time, bool) {
		raw := c.Query(name)
		if raw == "" {
			return nil, true
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, false
		}
		return &t, true
	}
	var ok bool
	if q.ProductID, ok = optID("product_id"); !ok {
		return q, "product_id inválido"
	}
	if q.LocationID, ok = optID("location_id"); !ok {
		return q, "location_id inválido"
	}
	if raw := c.Query("type"); raw != "" {
		t, valid := entity.ParseMovementType(raw)
		if !valid {
			return q, "type debe ser IN, OUT o TRANSFER"
		}
		q.Type = &t
	}
	if q.From, ok = optTime("from"); !ok {
		return q, "from debe ser RFC3339"
	}
	if q.To, ok = optTime("to"); !ok {
		return q, "to debe ser RFC3339"
	}
	after, ok := optID("after_id")
	if !ok {
		return q, "after_id inválido"
	}
	if after != nil {
		q.AfterID = *after
	}
	q.Limit = c.QueryInt("limit", 0)
	return q, ""
}

// parseQuantity acepta número JSON o cadena numérica. Vacío, null o no numérico no es válido.
func parseQuantity(raw []byte) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, false
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = bytes.TrimSpace(raw[1 : len(raw)-1])
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func toMovementResponse(m *entity.StockMovement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:           m.ID,
		ProductID:    m.ProductID,
		Quantity:     m.Quantity,
		Type:         string(m.Type),
		LocationFrom: m.LocationFrom,
		LocationTo:   m.LocationTo,
		Reference:    m.Reference,
		ReversalOf:   m.ReversalOf,
		CreatedAt:    m.CreatedAt,
		CreatedBy:    m.CreatedBy,
	}
}
