package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

// MovementFilter filtros de consulta del libro. LocationID coincide con origen o destino.
// La paginación es por clave (AfterID), siempre en orden ascendente de ID.
type MovementFilter struct {
	ProductID  *int64
	LocationID *int64
	Type       *entity.MovementType
	From       *time.Time
	To         *time.Time
	AfterID    int64
	Limit      int
}

// StockMovementRepository puerto de persistencia del libro de movimientos (solo anexar).
// No existe operación de actualización ni de borrado.
type StockMovementRepository interface {
	Append(ctx context.Context, movement *entity.StockMovement) error
	GetByID(ctx context.Context, id int64) (*entity.StockMovement, error)
	List(ctx context.Context, filter MovementFilter) ([]*entity.StockMovement, error)
	FindReversal(ctx context.Context, id int64) (*entity.StockMovement, error)
	// SumByKey recalcula el saldo de un par desde el libro.
	SumByKey(ctx context.Context, key entity.BalanceKey) (decimal.Decimal, int64, error)
	// SumAll recalcula todos los saldos desde el libro, ordenados por producto y ubicación.
	SumAll(ctx context.Context) ([]entity.Balance, error)
}
