package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType tipo de movimiento de inventario.
type MovementType string

const (
	MovementTypeIN       MovementType = "IN"       // entrada
	MovementTypeOUT      MovementType = "OUT"      // salida
	MovementTypeTRANSFER MovementType = "TRANSFER" // traslado entre ubicaciones
)

// ParseMovementType interpreta el tipo sin distinguir mayúsculas.
func ParseMovementType(s string) (MovementType, bool) {
	switch t := MovementType(strings.ToUpper(strings.TrimSpace(s))); t {
	case MovementTypeIN, MovementTypeOUT, MovementTypeTRANSFER:
		return t, true
	}
	return "", false
}

// StockMovement fila inmutable del libro de stock. La cantidad siempre es positiva;
// la dirección la dan el tipo y las ubicaciones informadas. Las correcciones se hacen
// con movimientos compensatorios (ReversalOf), nunca con UPDATE/DELETE.
type StockMovement struct {
	ID           int64
	ProductID    int64
	Quantity     decimal.Decimal
	Type         MovementType
	LocationFrom *int64
	LocationTo   *int64
	Reference    string
	ReversalOf   *int64
	CreatedAt    time.Time
	CreatedBy    string
}

// Deltas devuelve el efecto del movimiento sobre cada saldo afectado.
func (m *StockMovement) Deltas() []BalanceDelta {
	var out []BalanceDelta
	if m.LocationFrom != nil {
		out = append(out, BalanceDelta{
			Key:   BalanceKey{ProductID: m.ProductID, LocationID: *m.LocationFrom},
			Delta: m.Quantity.Neg(),
		})
	}
	if m.LocationTo != nil {
		out = append(out, BalanceDelta{
			Key:   BalanceKey{ProductID: m.ProductID, LocationID: *m.LocationTo},
			Delta: m.Quantity,
		})
	}
	return out
}

// Touches indica si el movimiento afecta la ubicación dada.
func (m *StockMovement) Touches(locationID int64) bool {
	return (m.LocationFrom != nil && *m.LocationFrom == locationID) ||
		(m.LocationTo != nil && *m.LocationTo == locationID)
}

// Inverse construye el movimiento compensatorio (sin ID ni auditoría).
func (m *StockMovement) Inverse() *StockMovement {
	id := m.ID
	inv := &StockMovement{
		ProductID:  m.ProductID,
		Quantity:   m.Quantity,
		ReversalOf: &id,
	}
	switch m.Type {
	case MovementTypeIN:
		inv.Type = MovementTypeOUT
		inv.LocationFrom = m.LocationTo
	case MovementTypeOUT:
		inv.Type = MovementTypeIN
		inv.LocationTo = m.LocationFrom
	case MovementTypeTRANSFER:
		inv.Type = MovementTypeTRANSFER
		inv.LocationFrom = m.LocationTo
		inv.LocationTo = m.LocationFrom
	}
	return inv
}
