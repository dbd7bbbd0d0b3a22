package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

// LocationRepository define el puerto de persistencia para Location (DIP).
// GetByID y GetByCode devuelven (nil, nil) si no existe.
type LocationRepository interface {
	Create(ctx context.Context, location *entity.Location) error
	GetByID(ctx context.Context, id int64) (*entity.Location, error)
	GetByCode(ctx context.Context, code string) (*entity.Location, error)
	List(ctx context.Context, includeDisabled bool) ([]*entity.Location, error)
	Update(ctx context.Context, location *entity.Location) error
	SetDisabled(ctx context.Context, id int64, disabledAt *time.Time) error
	Delete(ctx context.Context, id int64) error
	HasMovements(ctx context.Context, id int64) (bool, error)
}
