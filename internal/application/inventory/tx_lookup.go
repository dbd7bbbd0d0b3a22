package inventory

import (
	"context"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

// txLookup resuelve las consultas del validador dentro de la transacción de admisión.
// La primera lectura de saldo bloquea todos los pares de la propuesta en orden
// (producto, ubicación), de modo que dos traslados opuestos no se interbloquean.
type txLookup struct {
	catalog   repository.ProductCatalog
	locations repository.LocationRepository
	balances  repository.BalanceRepository
	keys      []entity.BalanceKey
	locked    map[entity.BalanceKey]*entity.Balance
}

func newTxLookup(
	catalog repository.ProductCatalog,
	locations repository.LocationRepository,
	balances repository.BalanceRepository,
	keys []entity.BalanceKey,
) *txLookup {
	return &txLookup{catalog: catalog, locations: locations, balances: balances, keys: keys}
}

func (l *txLookup) Product(ctx context.Context, id int64) (*entity.Product, error) {
	return l.catalog.GetByID(ctx, id)
}

func (l *txLookup) Location(ctx context.Context, id int64) (*entity.Location, error) {
	return l.locations.GetByID(ctx, id)
}

func (l *txLookup) Balance(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	if err := l.lockAll(ctx); err != nil {
		return nil, err
	}
	if b, ok := l.locked[key]; ok {
		return b, nil
	}
	b, err := l.balances.GetForUpdate(ctx, key)
	if err != nil {
		return nil, err
	}
	l.locked[key] = b
	return b, nil
}

func (l *txLookup) lockAll(ctx context.Context) error {
	if l.locked != nil {
		return nil
	}
	locked := make(map[entity.BalanceKey]*entity.Balance, len(l.keys))
	for _, k := range l.keys {
		b, err := l.balances.GetForUpdate(ctx, k)
		if err != nil {
			return err
		}
		locked[k] = b
	}
	l.locked = locked
	return nil
}
