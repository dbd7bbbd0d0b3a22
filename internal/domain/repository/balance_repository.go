package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

// BalanceRepository puerto para la vista materializada de saldos por producto+ubicación.
// Get y GetForUpdate devuelven un saldo cero si el par no tiene fila.
type BalanceRepository interface {
	Get(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error)
	// GetForUpdate bloquea el par hasta el fin de la transacción (SELECT ... FOR UPDATE).
	GetForUpdate(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error)
	Save(ctx context.Context, balance *entity.Balance) error
	// List ordena por producto y ubicación; productID nil lista todos.
	List(ctx context.Context, productID *int64) ([]entity.Balance, error)
	Freeze(ctx context.Context, key entity.BalanceKey, reason string, at time.Time) error
}
