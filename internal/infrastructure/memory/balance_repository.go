package memory

import (
	"context"
	"time"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

var _ repository.BalanceRepository = (*BalanceRepo)(nil)

// BalanceRepo saldos materializados en memoria.
type BalanceRepo struct {
	store *Store
	tx    *tx
}

// NewBalanceRepository construye el repositorio fuera de transacción.
func NewBalanceRepository(store *Store) *BalanceRepo {
	return &BalanceRepo{store: store}
}

// Get saldo visible: el pendiente de la transacción o el confirmado; cero si no existe.
func (r *BalanceRepo) Get(_ context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	if r.tx != nil {
		if b, ok := r.tx.pendingBalance(key); ok {
			return cloneBalance(b), nil
		}
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.balances[key]; ok {
		return cloneBalance(b), nil
	}
	return entity.ZeroBalance(key), nil
}

// GetForUpdate toma el bloqueo del par (esperando hasta que ctx venza) y devuelve el saldo.
// Fuera de transacción equivale a Get.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	if r.tx != nil {
		if err := r.tx.lock(ctx, key); err != nil {
			return nil, err
		}
	}
	return r.Get(ctx, key)
}

// Save escribe el saldo (en buffer dentro de transacción).
func (r *BalanceRepo) Save(_ context.Context, b *entity.Balance) error {
	if r.tx != nil {
		r.tx.balances[b.Key()] = cloneBalance(b)
		return nil
	}
	if b.Quantity.IsNegative() {
		return domain.ErrIntegrityViolation
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[b.Key()] = cloneBalance(b)
	return nil
}

// List saldos confirmados ordenados por producto y ubicación.
func (r *BalanceRepo) List(_ context.Context, productID *int64) ([]entity.Balance, error) {
	s := r.store
	s.mu.RLock()
	out := make([]entity.Balance, 0, len(s.balances))
	for k, b := range s.balances {
		if productID != nil && k.ProductID != *productID {
			continue
		}
		out = append(out, *cloneBalance(b))
	}
	s.mu.RUnlock()
	sortBalances(out)
	return out, nil
}

// Freeze congela el par; un par ya congelado conserva fecha y motivo.
func (r *BalanceRepo) Freeze(ctx context.Context, key entity.BalanceKey, reason string, at time.Time) error {
	if r.tx != nil {
		b, err := r.Get(ctx, key)
		if err != nil {
			return err
		}
		freeze(b, reason, at)
		r.tx.balances[key] = b
		return nil
	}
	// Fuera de transacción espera el bloqueo del par: una admisión en curso no puede
	// pisar el congelamiento al confirmar.
	t := newTx(r.store)
	defer t.release()
	if err := t.lock(ctx, key); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[key]
	if !ok {
		b = entity.ZeroBalance(key)
		s.balances[key] = b
	}
	freeze(b, reason, at)
	return nil
}

func freeze(b *entity.Balance, reason string, at time.Time) {
	if b.FrozenAt != nil {
		return
	}
	t := at
	b.FrozenAt = &t
	b.FrozenReason = reason
	b.UpdatedAt = at
}
