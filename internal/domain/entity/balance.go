package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceKey identifica un saldo: producto en una ubicación.
type BalanceKey struct {
	ProductID  int64
	LocationID int64
}

// Less orden total usado para adquirir bloqueos sin interbloqueos.
func (k BalanceKey) Less(o BalanceKey) bool {
	if k.ProductID != o.ProductID {
		return k.ProductID < o.ProductID
	}
	return k.LocationID < o.LocationID
}

// Balance saldo materializado de un par (producto, ubicación).
// Derivado del libro de movimientos; el libro es la única fuente de verdad.
type Balance struct {
	ProductID     int64
	LocationID    int64
	Quantity      decimal.Decimal
	MovementCount int64 // movimientos que tocaron el par; > 0 distingue "agotado" de "nunca abastecido"
	FrozenAt      *time.Time
	FrozenReason  string
	ReconciledBy  string
	UpdatedAt     time.Time
}

// Key devuelve la clave del saldo.
func (b *Balance) Key() BalanceKey {
	return BalanceKey{ProductID: b.ProductID, LocationID: b.LocationID}
}

// Frozen indica si el par quedó bloqueado por una alarma de integridad.
func (b *Balance) Frozen() bool {
	return b.FrozenAt != nil
}

// ZeroBalance saldo vacío para un par sin movimientos (la ausencia significa cero).
func ZeroBalance(key BalanceKey) *Balance {
	return &Balance{ProductID: key.ProductID, LocationID: key.LocationID, Quantity: decimal.Zero}
}

// BalanceDelta efecto de un movimiento sobre un saldo.
type BalanceDelta struct {
	Key   BalanceKey
	Delta decimal.Decimal
}
