package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

const movementColumns = `id, product_id, quantity, type, location_from, location_to, reference, reversal_of, created_at, created_by`

// appendLockKey candado consultivo del anexado. Cada admisión lo toma compartido antes de
// pedir su ID y lo suelta al confirmar; los escritores no se bloquean entre sí.
// Quien pagina lo toma exclusivo un instante para fijar el ID más alto ya definitivo.
const appendLockKey int64 = 0x5043505f4c454447

// beginner lo implementa *pgxpool.Pool (no pgx.Tx).
type beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// StockMovementRepo libro de movimientos sobre PostgreSQL (usable con pool o tx).
// Solo INSERT y SELECT: un trigger rechaza UPDATE/DELETE sobre la tabla.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

// Append anexa el movimiento y asigna su ID de secuencia.
func (r *StockMovementRepo) Append(ctx context.Context, m *entity.StockMovement) error {
	ctx, span := tracer.Start(ctx, "postgres.movements.Append",
		trace.WithAttributes(attribute.Int64("movement.product_id", m.ProductID)))
	defer span.End()

	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, appendLockKey); err != nil {
		span.RecordError(err)
		return classify("append lock", err)
	}
	query := `
		INSERT INTO stock_movements (product_id, quantity, type, location_from, location_to, reference, reversal_of, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err := r.q.QueryRow(ctx, query,
		m.ProductID, m.Quantity, string(m.Type), m.LocationFrom, m.LocationTo,
		m.Reference, m.ReversalOf, m.CreatedAt, m.CreatedBy,
	).Scan(&m.ID)
	if err != nil {
		span.RecordError(err)
		return classify("append movement", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID; (nil, nil) si no existe.
func (r *StockMovementRepo) GetByID(ctx context.Context, id int64) (*entity.StockMovement, error) {
	row := r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id = $1`, id)
	return scanMovement(row)
}

// FindReversal devuelve el movimiento que revierte a id, si existe.
func (r *StockMovementRepo) FindReversal(ctx context.Context, id int64) (*entity.StockMovement, error) {
	row := r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE reversal_of = $1`, id)
	return scanMovement(row)
}

// List lista movimientos filtrados en orden ascendente de ID (paginación por clave).
// Los IDs de secuencia se asignan antes de confirmar: sobre el pool la consulta se limita
// al ID más alto sin admisiones en vuelo por debajo, así una página nunca salta un ID que
// se confirma después.
func (r *StockMovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	var upTo int64
	if db, ok := r.q.(beginner); ok {
		w, err := highWater(ctx, db)
		if err != nil {
			return nil, err
		}
		if w <= f.AfterID {
			return []*entity.StockMovement{}, nil
		}
		upTo = w
	}
	query, args := listQuery(f, upTo)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list movements", err)
	}
	defer rows.Close()
	list := make([]*entity.StockMovement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list movements", err)
	}
	return list, nil
}

// highWater espera a que terminen las admisiones con ID ya asignado y devuelve el mayor ID
// confirmado. Las admisiones que empiecen después reciben IDs mayores.
func highWater(ctx context.Context, db beginner) (int64, error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, classify("begin high water", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return 0, classify("high water lock", err)
	}
	var w int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM stock_movements`).Scan(&w); err != nil {
		return 0, classify("high water", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, classify("commit high water", err)
	}
	return w, nil
}

// listQuery arma la consulta de List. upTo > 0 acota el ID máximo.
func listQuery(f repository.MovementFilter, upTo int64) (string, []any) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE id > $1`
	args := []any{f.AfterID}
	pos := 2
	if upTo > 0 {
		query += fmt.Sprintf(" AND id <= $%d", pos)
		args = append(args, upTo)
		pos++
	}
	if f.ProductID != nil {
		query += fmt.Sprintf(" AND product_id = $%d", pos)
		args = append(args, *f.ProductID)
		pos++
	}
	if f.LocationID != nil {
		query += fmt.Sprintf(" AND (location_from = $%d OR location_to = $%d)", pos, pos)
		args = append(args, *f.LocationID)
		pos++
	}
	if f.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", pos)
		args = append(args, string(*f.Type))
		pos++
	}
	if f.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", pos)
		args = append(args, *f.From)
		pos++
	}
	if f.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", pos)
		args = append(args, *f.To)
		pos++
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", pos)
		args = append(args, f.Limit)
	}
	return query, args
}

// SumByKey recalcula el saldo de un par y cuántos movimientos lo tocaron.
func (r *StockMovementRepo) SumByKey(ctx context.Context, key entity.BalanceKey) (decimal.Decimal, int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN location_to = $2 THEN quantity ELSE -quantity END), 0), COUNT(*)
		FROM stock_movements
		WHERE product_id = $1 AND (location_from = $2 OR location_to = $2)`
	var sum decimal.Decimal
	var count int64
	if err := r.q.QueryRow(ctx, query, key.ProductID, key.LocationID).Scan(&sum, &count); err != nil {
		return decimal.Zero, 0, classify("sum movements", err)
	}
	return sum, count, nil
}

// SumAll recalcula todos los saldos desde el libro, ordenados por producto y ubicación.
func (r *StockMovementRepo) SumAll(ctx context.Context) ([]entity.Balance, error) {
	query := `
		SELECT product_id, location_id, SUM(delta), COUNT(*)
		FROM (
			SELECT product_id, location_to AS location_id, quantity AS delta
			FROM stock_movements WHERE location_to IS NOT NULL
			UNION ALL
			SELECT product_id, location_from AS location_id, -quantity AS delta
			FROM stock_movements WHERE location_from IS NOT NULL
		) d
		GROUP BY product_id, location_id
		ORDER BY product_id, location_id`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, classify("sum all movements", err)
	}
	defer rows.Close()
	var out []entity.Balance
	for rows.Next() {
		var b entity.Balance
		if err := rows.Scan(&b.ProductID, &b.LocationID, &b.Quantity, &b.MovementCount); err != nil {
			return nil, classify("scan sum", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("sum all movements", err)
	}
	return out, nil
}

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var m entity.StockMovement
	var movementType string
	err := row.Scan(&m.ID, &m.ProductID, &m.Quantity, &movementType, &m.LocationFrom, &m.LocationTo,
		&m.Reference, &m.ReversalOf, &m.CreatedAt, &m.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("scan movement", err)
	}
	m.Type = entity.MovementType(movementType)
	return &m, nil
}
