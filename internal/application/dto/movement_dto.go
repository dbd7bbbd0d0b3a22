package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RegisterMovementRequest body para POST /api/stock-movements.
// Quantity llega cruda para distinguir un número mal formado (InvalidQuantity) de un JSON inválido.
type RegisterMovementRequest struct {
	ProductID    int64           `json:"product_id"`
	Quantity     json.RawMessage `json:"quantity" swaggertype:"string" example:"10.5"`
	Type         string          `json:"type" example:"IN"`
	LocationFrom *int64          `json:"location_from,omitempty"`
	LocationTo   *int64          `json:"location_to,omitempty"`
	Reference    string          `json:"reference,omitempty"`
}

// ReverseMovementRequest body para POST /api/stock-movements/:id/reverse.
type ReverseMovementRequest struct {
	Reference string `json:"reference,omitempty"`
}

// MovementResponse salida de un movimiento del libro.
type MovementResponse struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Type         string          `json:"type"`
	LocationFrom *int64          `json:"location_from"`
	LocationTo   *int64          `json:"location_to"`
	Reference    string          `json:"reference,omitempty"`
	ReversalOf   *int64          `json:"reversal_of,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CreatedBy    string          `json:"created_by"`
}

// MovementListResponse página del historial. NextAfterID se omite en la última página.
type MovementListResponse struct {
	Items       []MovementResponse `json:"items"`
	NextAfterID *int64             `json:"next_after_id,omitempty"`
}
