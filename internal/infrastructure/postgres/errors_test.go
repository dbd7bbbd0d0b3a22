package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"serialización", &pgconn.PgError{Code: "40001"}, domain.ErrSerializationConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domain.ErrSerializationConflict},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, domain.ErrTimeout},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, domain.ErrTimeout},
		{"contexto vencido", fmt.Errorf("query: %w", context.DeadlineExceeded), domain.ErrTimeout},
		{"código duplicado", &pgconn.PgError{Code: "23505", ConstraintName: "locations_code_key_uq"}, domain.ErrDuplicateCode},
		{"reversión duplicada", &pgconn.PgError{Code: "23505", ConstraintName: "stock_movements_reversal_of_uq"}, domain.ErrAlreadyReversed},
		{"saldo negativo", &pgconn.PgError{Code: "23514", ConstraintName: "stock_balances_quantity_nonneg"}, domain.ErrIntegrityViolation},
		{"llave foránea", &pgconn.PgError{Code: "23503", ConstraintName: "stock_balances_product_id_fkey"}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("op", tc.err), tc.want)
		})
	}
}

func TestClassify_ErroresNoMapeados(t *testing.T) {
	raw := errors.New("connection reset by peer")
	err := classify("append movement", raw)
	assert.ErrorIs(t, err, raw)
	assert.Equal(t, "append movement: connection reset by peer", err.Error())

	other := &pgconn.PgError{Code: "23514", ConstraintName: "stock_movements_location_pair_ck"}
	assert.NotErrorIs(t, classify("op", other), domain.ErrIntegrityViolation)

	assert.NoError(t, classify("op", nil))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, isForeignKeyViolation(fmt.Errorf("x: %w", &pgconn.PgError{Code: "23503"})))
	assert.False(t, isForeignKeyViolation(errors.New("23503")))
}
