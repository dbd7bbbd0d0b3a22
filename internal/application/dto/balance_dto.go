package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// LocationBalanceResponse saldo de un producto en una ubicación (GET /balances).
type LocationBalanceResponse struct {
	ProductID  int64           `json:"product_id"`
	LocationID int64           `json:"location_id"`
	Balance    decimal.Decimal `json:"balance"`
	Frozen     bool            `json:"frozen,omitempty"`
}

// BalanceResponse saldo de un par producto/ubicación.
type BalanceResponse struct {
	ProductID     int64           `json:"product_id"`
	LocationID    int64           `json:"location_id"`
	Balance       decimal.Decimal `json:"balance"`
	MovementCount int64           `json:"movement_count"`
	Frozen        bool            `json:"frozen"`
	FrozenReason  string          `json:"frozen_reason,omitempty"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}

// VerifyBalancesResponse resultado de la verificación completa contra el libro.
type VerifyBalancesResponse struct {
	Checked       int                   `json:"checked"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
}

// DiscrepancyResponse par divergente.
type DiscrepancyResponse struct {
	ProductID    int64           `json:"product_id"`
	LocationID   int64           `json:"location_id"`
	Materialized decimal.Decimal `json:"materialized"`
	Ledger       decimal.Decimal `json:"ledger"`
	Frozen       bool            `json:"frozen"`
}
