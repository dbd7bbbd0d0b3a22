package inventory_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

func TestVerifyBalances_SinDivergencias(t *testing.T) {
	env, _ := seedLedger(t)
	rc := inventory.NewReconcileUseCase(env.runner, env.movements, env.balances, env.catalog, zerolog.Nop(), nil)

	report, err := rc.VerifyBalances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Empty(t, report.Discrepancies)
	assert.Empty(t, report.Frozen)
}

func TestVerifyYReconcile_SaldoCorrupto(t *testing.T) {
	ctx := context.Background()
	env, locs := seedLedger(t)
	key := entity.BalanceKey{ProductID: 7, LocationID: locs[0]}

	// Alguien escribió el saldo materializado por fuera del libro.
	corrupt, err := env.balances.Get(ctx, key)
	require.NoError(t, err)
	corrupt.Quantity = qty("999")
	require.NoError(t, env.balances.Save(ctx, corrupt))

	metrics := &mockMetrics{}
	metrics.On("IntegrityAlarm").Return()
	metrics.On("MovementRejected", domain.ReasonBalanceFrozen).Return()
	metrics.On("MovementAdmitted", entity.MovementTypeIN, mock.Anything).Return()
	rc := inventory.NewReconcileUseCase(env.runner, env.movements, env.balances, env.catalog, zerolog.Nop(), metrics)

	report, err := rc.VerifyBalances(ctx)
	require.NoError(t, err)
	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, key, d.Key)
	assert.True(t, d.Materialized.Equal(qty("999")))
	assert.True(t, d.Ledger.Equal(qty("50")))
	assert.Equal(t, []entity.BalanceKey{key}, report.Frozen)
	metrics.AssertNumberOfCalls(t, "IntegrityAlarm", 1)

	uc := env.useCase(inventory.DefaultConfig(), inventory.WithMetrics(metrics))
	_, err = uc.RegisterMovement(ctx, in(7, locs[0], "1"))
	require.ErrorIs(t, err, domain.ErrBalanceFrozen)

	// Una segunda verificación no vuelve a congelar ni a alarmar.
	report, err = rc.VerifyBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Frozen)
	metrics.AssertNumberOfCalls(t, "IntegrityAlarm", 1)

	_, err = rc.Reconcile(ctx, key, "  ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	b, err := rc.Reconcile(ctx, key, "supervisor-1")
	require.NoError(t, err)
	assert.True(t, b.Quantity.Equal(qty("50")))
	assert.False(t, b.Frozen())
	assert.Equal(t, "supervisor-1", b.ReconciledBy)
	assert.Equal(t, int64(3), b.MovementCount)

	_, err = uc.RegisterMovement(ctx, in(7, locs[0], "1"))
	require.NoError(t, err)
	assert.True(t, env.balance(t, 7, locs[0]).Equal(qty("51")))
}

func TestVerifyBalances_SaldoFaltante(t *testing.T) {
	ctx := context.Background()
	env, locs := seedLedger(t)
	key := entity.BalanceKey{ProductID: 7, LocationID: locs[1]}

	b, err := env.balances.Get(ctx, key)
	require.NoError(t, err)
	b.Quantity = qty("0")
	require.NoError(t, env.balances.Save(ctx, b))

	rc := inventory.NewReconcileUseCase(env.runner, env.movements, env.balances, env.catalog, zerolog.Nop(), nil)
	report, err := rc.VerifyBalances(ctx)
	require.NoError(t, err)
	require.Len(t, report.Discrepancies, 1)
	assert.True(t, report.Discrepancies[0].Ledger.Equal(qty("20")))
}

func TestReconcile_ReferenciasInexistentes(t *testing.T) {
	ctx := context.Background()
	env, locs := seedLedger(t)
	rc := inventory.NewReconcileUseCase(env.runner, env.movements, env.balances, env.catalog, zerolog.Nop(), nil)

	_, err := rc.Reconcile(ctx, entity.BalanceKey{ProductID: 999, LocationID: locs[0]}, "supervisor-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrUnavailable)

	_, err = rc.Reconcile(ctx, entity.BalanceKey{ProductID: 7, LocationID: 999}, "supervisor-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.ReasonNotFound, domain.ReasonCode(err))

	// Ninguna de las dos llamadas deja un saldo fantasma.
	all, err := env.balances.List(ctx, nil)
	require.NoError(t, err)
	for _, b := range all {
		assert.NotEqual(t, int64(999), b.ProductID)
		assert.NotEqual(t, int64(999), b.LocationID)
	}
}
