package inventory

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

// MaxPageSize tope de filas por página del libro.
const MaxPageSize = 1000

// LedgerQueryUseCase consultas de solo lectura: historial y saldos. No bloquea ni escribe.
type LedgerQueryUseCase struct {
	movements repository.StockMovementRepository
	balances  repository.BalanceRepository
	locations repository.LocationRepository
	pageSize  int
}

// NewLedgerQueryUseCase construye el caso de uso de consultas.
func NewLedgerQueryUseCase(
	movements repository.StockMovementRepository,
	balances repository.BalanceRepository,
	locations repository.LocationRepository,
	pageSize int,
) *LedgerQueryUseCase {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = 100
	}
	return &LedgerQueryUseCase{movements: movements, balances: balances, locations: locations, pageSize: pageSize}
}

// MovementQuery filtros del historial. Todos opcionales.
type MovementQuery struct {
	ProductID  *int64
	LocationID *int64
	Type       *entity.MovementType
	From       *time.Time
	To         *time.Time
	AfterID    int64
	Limit      int
}

// MovementPage página del historial en orden de admisión. NextAfterID es 0 si no hay más.
type MovementPage struct {
	Items       []*entity.StockMovement
	NextAfterID int64
}

// GetMovement devuelve un movimiento por ID.
func (uc *LedgerQueryUseCase) GetMovement(ctx context.Context, id int64) (*entity.StockMovement, error) {
	m, err := uc.movements.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable(err)
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

// ListMovements devuelve el historial filtrado, ascendente por ID (orden de admisión).
func (uc *LedgerQueryUseCase) ListMovements(ctx context.Context, q MovementQuery) (*MovementPage, error) {
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, domain.Reject(domain.ErrInvalidInput, "rango de fechas inválido: desde > hasta")
	}
	if q.AfterID < 0 {
		return nil, domain.Reject(domain.ErrInvalidInput, "after_id inválido")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = uc.pageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	items, err := uc.movements.List(ctx, repository.MovementFilter{
		ProductID:  q.ProductID,
		LocationID: q.LocationID,
		Type:       q.Type,
		From:       q.From,
		To:         q.To,
		AfterID:    q.AfterID,
		Limit:      limit + 1,
	})
	if err != nil {
		return nil, unavailable(err)
	}
	page := &MovementPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextAfterID = page.Items[limit-1].ID
	}
	if page.Items == nil {
		page.Items = []*entity.StockMovement{}
	}
	return page, nil
}

// Movements recorre todo el historial que cumple q, página a página.
// El recorrido se detiene en el primer error, que se entrega como último elemento.
func (uc *LedgerQueryUseCase) Movements(ctx context.Context, q MovementQuery) iter.Seq2[*entity.StockMovement, error] {
	return func(yield func(*entity.StockMovement, error) bool) {
		for {
			page, err := uc.ListMovements(ctx, q)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, m := range page.Items {
				if !yield(m, nil) {
					return
				}
			}
			if page.NextAfterID == 0 {
				return
			}
			q.AfterID = page.NextAfterID
		}
	}
}

// GetBalance saldo actual de un par. Un par sin movimientos tiene saldo cero.
func (uc *LedgerQueryUseCase) GetBalance(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	b, err := uc.balances.Get(ctx, key)
	if err != nil {
		return nil, unavailable(err)
	}
	return b, nil
}

// GetBalances saldos con historial ordenados por producto y ubicación. Con productID nil
// devuelve los de todos los productos.
func (uc *LedgerQueryUseCase) GetBalances(ctx context.Context, productID *int64) ([]entity.Balance, error) {
	list, err := uc.balances.List(ctx, productID)
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]entity.Balance, 0, len(list))
	for _, b := range list {
		if b.MovementCount > 0 {
			out = append(out, b)
		}
	}
	return out, nil
}

// BalancesByLocation saldos distintos de cero en una ubicación, ordenados por producto.
func (uc *LedgerQueryUseCase) BalancesByLocation(ctx context.Context, locationID int64) ([]entity.Balance, error) {
	loc, err := uc.locations.GetByID(ctx, locationID)
	if err != nil {
		return nil, unavailable(err)
	}
	if loc == nil {
		return nil, domain.ErrNotFound
	}
	list, err := uc.balances.List(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]entity.Balance, 0)
	for _, b := range list {
		if b.LocationID == locationID && !b.Quantity.IsZero() {
			out = append(out, b)
		}
	}
	return out, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}
