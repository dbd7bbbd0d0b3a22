package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

// recordingQuerier registra las sentencias en orden; QueryRow devuelve nextID.
type recordingQuerier struct {
	sql    []string
	nextID int64
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	q.sql = append(q.sql, sql)
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (q *recordingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("no usado")
}

func (q *recordingQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	q.sql = append(q.sql, sql)
	return idRow(q.nextID)
}

type idRow int64

func (r idRow) Scan(dest ...any) error {
	*dest[0].(*int64) = int64(r)
	return nil
}

func TestAppend_TomaCandadoCompartidoAntesDelID(t *testing.T) {
	q := &recordingQuerier{nextID: 42}
	repo := NewStockMovementRepository(q)
	to := int64(1)
	m := &entity.StockMovement{ProductID: 7, Quantity: decimal.NewFromInt(3), Type: entity.MovementTypeIN, LocationTo: &to, CreatedBy: "u"}

	require.NoError(t, repo.Append(context.Background(), m))
	assert.Equal(t, int64(42), m.ID)
	require.Len(t, q.sql, 2)
	assert.Contains(t, q.sql[0], "pg_advisory_xact_lock_shared")
	assert.Contains(t, q.sql[1], "INSERT INTO stock_movements")
}

func TestListQuery_AcotaAlMarcaDeAgua(t *testing.T) {
	product := int64(7)
	in := entity.MovementTypeIN
	query, args := listQuery(repository.MovementFilter{ProductID: &product, Type: &in, AfterID: 10, Limit: 51}, 25)

	assert.True(t, strings.Contains(query, "id > $1 AND id <= $2"), query)
	assert.Contains(t, query, "product_id = $3")
	assert.Contains(t, query, "type = $4")
	assert.True(t, strings.HasSuffix(query, "ORDER BY id LIMIT $5"), query)
	assert.Equal(t, []any{int64(10), int64(25), int64(7), "IN", 51}, args)
}

func TestListQuery_SinMarcaDentroDeTransaccion(t *testing.T) {
	query, args := listQuery(repository.MovementFilter{}, 0)
	assert.NotContains(t, query, "id <=")
	assert.True(t, strings.HasSuffix(query, "ORDER BY id"), query)
	assert.Equal(t, []any{int64(0)}, args)
}

func TestList_TransaccionNoCalculaMarca(t *testing.T) {
	// pgx.Tx no expone BeginTx: dentro de una transacción la lista no espera al candado.
	var q Querier = &recordingQuerier{}
	_, ok := q.(beginner)
	assert.False(t, ok)
}
