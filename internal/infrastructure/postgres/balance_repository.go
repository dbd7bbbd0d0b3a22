package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

var _ repository.BalanceRepository = (*BalanceRepo)(nil)

const balanceColumns = `product_id, location_id, quantity, movement_count, frozen_at, frozen_reason, reconciled_by, updated_at`

// BalanceRepo saldos materializados sobre PostgreSQL (usable con pool o tx).
type BalanceRepo struct {
	q Querier
}

// NewBalanceRepository construye el adaptador de saldos. Pasar pool o tx (Querier).
func NewBalanceRepository(q Querier) *BalanceRepo {
	return &BalanceRepo{q: q}
}

// Get obtiene el saldo actual; saldo cero si el par no tiene fila.
func (r *BalanceRepo) Get(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM stock_balances WHERE product_id = $1 AND location_id = $2`,
		key.ProductID, key.LocationID)
	b, err := scanBalance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.ZeroBalance(key), nil
		}
		return nil, classify("get balance", err)
	}
	return b, nil
}

// GetForUpdate asegura que exista la fila del par y la bloquea (SELECT FOR UPDATE) hasta el fin
// de la transacción. Sin la fila previa, FOR UPDATE no bloquearía nada y dos admisiones
// concurrentes sobre un par nuevo leerían ambas cero.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	ctx, span := tracer.Start(ctx, "postgres.balances.GetForUpdate",
		trace.WithAttributes(
			attribute.Int64("balance.product_id", key.ProductID),
			attribute.Int64("balance.location_id", key.LocationID),
		))
	defer span.End()

	if _, err := r.q.Exec(ctx, `
		INSERT INTO stock_balances (product_id, location_id)
		VALUES ($1, $2)
		ON CONFLICT (product_id, location_id) DO NOTHING`,
		key.ProductID, key.LocationID); err != nil {
		span.RecordError(err)
		return nil, classify("ensure balance", err)
	}
	row := r.q.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM stock_balances WHERE product_id = $1 AND location_id = $2 FOR UPDATE`,
		key.ProductID, key.LocationID)
	b, err := scanBalance(row)
	if err != nil {
		span.RecordError(err)
		return nil, classify("lock balance", err)
	}
	return b, nil
}

// Save escribe el saldo completo del par (cantidad, contador, estado de congelamiento y auditoría).
func (r *BalanceRepo) Save(ctx context.Context, b *entity.Balance) error {
	query := `
		INSERT INTO stock_balances (product_id, location_id, quantity, movement_count, frozen_at, frozen_reason, reconciled_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (product_id, location_id)
		DO UPDATE SET quantity = EXCLUDED.quantity,
		              movement_count = EXCLUDED.movement_count,
		              frozen_at = EXCLUDED.frozen_at,
		              frozen_reason = EXCLUDED.frozen_reason,
		              reconciled_by = EXCLUDED.reconciled_by,
		              updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query,
		b.ProductID, b.LocationID, b.Quantity, b.MovementCount,
		b.FrozenAt, b.FrozenReason, b.ReconciledBy, b.UpdatedAt,
	)
	if err != nil {
		return classify("save balance", err)
	}
	return nil
}

// List lista saldos ordenados por producto y ubicación; productID nil lista todos.
func (r *BalanceRepo) List(ctx context.Context, productID *int64) ([]entity.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM stock_balances`
	var args []any
	if productID != nil {
		query += ` WHERE product_id = $1`
		args = append(args, *productID)
	}
	query += ` ORDER BY product_id, location_id`
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list balances", err)
	}
	defer rows.Close()
	list := make([]entity.Balance, 0)
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, classify("scan balance", err)
		}
		list = append(list, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list balances", err)
	}
	return list, nil
}

// Freeze congela el par tras una alarma de integridad. Un par ya congelado conserva
// la fecha y el motivo originales.
func (r *BalanceRepo) Freeze(ctx context.Context, key entity.BalanceKey, reason string, at time.Time) error {
	query := `
		INSERT INTO stock_balances (product_id, location_id, frozen_at, frozen_reason, updated_at)
		VALUES ($1, $2, $3, $4, $3)
		ON CONFLICT (product_id, location_id)
		DO UPDATE SET frozen_at = COALESCE(stock_balances.frozen_at, EXCLUDED.frozen_at),
		              frozen_reason = CASE WHEN stock_balances.frozen_at IS NULL
		                                   THEN EXCLUDED.frozen_reason
		                                   ELSE stock_balances.frozen_reason END,
		              updated_at = EXCLUDED.updated_at`
	if _, err := r.q.Exec(ctx, query, key.ProductID, key.LocationID, at, reason); err != nil {
		return classify("freeze balance", err)
	}
	return nil
}

func scanBalance(row pgx.Row) (*entity.Balance, error) {
	var b entity.Balance
	err := row.Scan(&b.ProductID, &b.LocationID, &b.Quantity, &b.MovementCount,
		&b.FrozenAt, &b.FrozenReason, &b.ReconciledBy, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
