package memory

import (
	"context"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner transacciones sobre el Store en memoria.
type TxRunner struct {
	store *Store
}

// NewTxRunner construye el runner.
func NewTxRunner(store *Store) *TxRunner {
	return &TxRunner{store: store}
}

// Run ejecuta fn con repos atados a una transacción nueva. Error de fn o ctx vencido antes de
// confirmar descartan el buffer; los bloqueos se liberan siempre.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.StockMovementRepository,
	balanceRepo repository.BalanceRepository,
	locationRepo repository.LocationRepository,
) error) error {
	t := newTx(r.store)
	defer t.release()

	if err := fn(
		&MovementRepo{store: r.store, tx: t},
		&BalanceRepo{store: r.store, tx: t},
		&LocationRepo{store: r.store},
	); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return timeoutErr(err)
	}
	return t.commit()
}
