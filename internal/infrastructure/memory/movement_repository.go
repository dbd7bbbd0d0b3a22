package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*MovementRepo)(nil)

// MovementRepo libro de movimientos en memoria. Dentro de una transacción Append deja el
// movimiento en buffer y el ID se asigna al confirmar.
type MovementRepo struct {
	store *Store
	tx    *tx
}

// NewMovementRepository construye el repositorio fuera de transacción.
func NewMovementRepository(store *Store) *MovementRepo {
	return &MovementRepo{store: store}
}

// Append anexa el movimiento.
func (r *MovementRepo) Append(_ context.Context, m *entity.StockMovement) error {
	if r.tx != nil {
		r.tx.movements = append(r.tx.movements, m)
		return nil
	}
	t := newTx(r.store)
	t.movements = append(t.movements, m)
	return t.commit()
}

// GetByID devuelve una copia o (nil, nil).
func (r *MovementRepo) GetByID(_ context.Context, id int64) (*entity.StockMovement, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.movements), func(i int) bool { return s.movements[i].ID >= id })
	if i < len(s.movements) && s.movements[i].ID == id {
		return cloneMovement(s.movements[i]), nil
	}
	return nil, nil
}

// FindReversal busca la reversión confirmada de id (o la pendiente en la transacción).
func (r *MovementRepo) FindReversal(ctx context.Context, id int64) (*entity.StockMovement, error) {
	if r.tx != nil {
		for _, m := range r.tx.movements {
			if m.ReversalOf != nil && *m.ReversalOf == id {
				return cloneMovement(m), nil
			}
		}
	}
	r.store.mu.RLock()
	revID, ok := r.store.reversals[id]
	r.store.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, revID)
}

// List filtra en orden ascendente de ID a partir de AfterID.
func (r *MovementRepo) List(_ context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := sort.Search(len(s.movements), func(i int) bool { return s.movements[i].ID > f.AfterID })
	out := make([]*entity.StockMovement, 0)
	for _, m := range s.movements[start:] {
		if !matches(m, f) {
			continue
		}
		out = append(out, cloneMovement(m))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func matches(m *entity.StockMovement, f repository.MovementFilter) bool {
	if f.ProductID != nil && m.ProductID != *f.ProductID {
		return false
	}
	if f.LocationID != nil && !m.Touches(*f.LocationID) {
		return false
	}
	if f.Type != nil && m.Type != *f.Type {
		return false
	}
	if f.From != nil && m.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && m.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// SumByKey recalcula el saldo del par desde el libro confirmado.
func (r *MovementRepo) SumByKey(_ context.Context, key entity.BalanceKey) (decimal.Decimal, int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := decimal.Zero
	var count int64
	for _, m := range s.movements {
		if m.ProductID != key.ProductID {
			continue
		}
		for _, d := range m.Deltas() {
			if d.Key == key {
				sum = sum.Add(d.Delta)
				count++
			}
		}
	}
	return sum, count, nil
}

// SumAll recalcula todos los saldos desde el libro confirmado.
func (r *MovementRepo) SumAll(_ context.Context) ([]entity.Balance, error) {
	s := r.store
	s.mu.RLock()
	acc := make(map[entity.BalanceKey]*entity.Balance)
	for _, m := range s.movements {
		for _, d := range m.Deltas() {
			b, ok := acc[d.Key]
			if !ok {
				b = entity.ZeroBalance(d.Key)
				acc[d.Key] = b
			}
			b.Quantity = b.Quantity.Add(d.Delta)
			b.MovementCount++
		}
	}
	s.mu.RUnlock()
	out := make([]entity.Balance, 0, len(acc))
	for _, b := range acc {
		out = append(out, *b)
	}
	sortBalances(out)
	return out, nil
}
