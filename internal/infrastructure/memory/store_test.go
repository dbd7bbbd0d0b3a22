package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

func ptr(v int64) *int64 { return &v }

var key71 = entity.BalanceKey{ProductID: 7, LocationID: 1}

func TestTxRunner_CommitAsignaIDsYSaldos(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	runner := NewTxRunner(s)

	mov := &entity.StockMovement{ProductID: 7, Quantity: decimal.NewFromInt(5), Type: entity.MovementTypeIN, LocationTo: ptr(1), CreatedBy: "u"}
	err := runner.Run(ctx, func(m repository.StockMovementRepository, b repository.BalanceRepository, _ repository.LocationRepository) error {
		require.NoError(t, m.Append(ctx, mov))
		assert.Zero(t, mov.ID, "el ID se asigna al confirmar")
		bal, err := b.GetForUpdate(ctx, key71)
		require.NoError(t, err)
		bal.Quantity = bal.Quantity.Add(mov.Quantity)
		bal.MovementCount++
		return b.Save(ctx, bal)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mov.ID)

	got, err := NewBalanceRepository(s).Get(ctx, key71)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, int64(1), got.MovementCount)
}

func TestTxRunner_ErrorDescartaBuffer(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	runner := NewTxRunner(s)

	err := runner.Run(ctx, func(m repository.StockMovementRepository, b repository.BalanceRepository, _ repository.LocationRepository) error {
		_ = m.Append(ctx, &entity.StockMovement{ProductID: 7, Quantity: decimal.NewFromInt(1), Type: entity.MovementTypeIN, LocationTo: ptr(1)})
		_ = b.Save(ctx, &entity.Balance{ProductID: 7, LocationID: 1, Quantity: decimal.NewFromInt(1)})
		return domain.ErrInsufficientStock
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	list, _ := NewMovementRepository(s).List(ctx, repository.MovementFilter{})
	assert.Empty(t, list)
	bal, _ := NewBalanceRepository(s).Get(ctx, key71)
	assert.True(t, bal.Quantity.IsZero())
}

func TestTxRunner_SaldoNegativoEsViolacionDeIntegridad(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	err := NewTxRunner(s).Run(ctx, func(_ repository.StockMovementRepository, b repository.BalanceRepository, _ repository.LocationRepository) error {
		return b.Save(ctx, &entity.Balance{ProductID: 7, LocationID: 1, Quantity: decimal.NewFromInt(-1)})
	})
	assert.ErrorIs(t, err, domain.ErrIntegrityViolation)
}

func TestLock_EsperaYRespetaContexto(t *testing.T) {
	s := NewStore()
	runner := NewTxRunner(s)
	holding := make(chan struct{})
	releaseHolder := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- runner.Run(context.Background(), func(_ repository.StockMovementRepository, b repository.BalanceRepository, _ repository.LocationRepository) error {
			if _, err := b.GetForUpdate(context.Background(), key71); err != nil {
				return err
			}
			close(holding)
			<-releaseHolder
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := runner.Run(ctx, func(_ repository.StockMovementRepository, b repository.BalanceRepository, _ repository.LocationRepository) error {
		_, err := b.GetForUpdate(ctx, key71)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrTimeout)

	// Otro par no queda bloqueado.
	err = runner.Run(context.Background(), func(_ repository.StockMovementRepository, b repository.BalanceRepository, _ repository.LocationRepository) error {
		_, err := b.GetForUpdate(context.Background(), entity.BalanceKey{ProductID: 7, LocationID: 2})
		return err
	})
	assert.NoError(t, err)

	close(releaseHolder)
	require.NoError(t, <-done)

	// Liberado el bloqueo, el par vuelve a estar disponible; tomarlo dos veces en la misma tx no bloquea.
	err = runner.Run(context.Background(), func(_ repository.StockMovementRepository, b repository.BalanceRepository, _ repository.LocationRepository) error {
		if _, err := b.GetForUpdate(context.Background(), key71); err != nil {
			return err
		}
		_, err := b.GetForUpdate(context.Background(), key71)
		return err
	})
	assert.NoError(t, err)
}

func TestFreeze_EsperaTransaccionQueTieneElPar(t *testing.T) {
	s := NewStore()
	runner := NewTxRunner(s)
	balances := NewBalanceRepository(s)
	holding := make(chan struct{})
	releaseHolder := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- runner.Run(context.Background(), func(_ repository.StockMovementRepository, b repository.BalanceRepository, _ repository.LocationRepository) error {
			bal, err := b.GetForUpdate(context.Background(), key71)
			if err != nil {
				return err
			}
			close(holding)
			<-releaseHolder
			bal.Quantity = bal.Quantity.Add(decimal.NewFromInt(3))
			bal.MovementCount++
			return b.Save(context.Background(), bal)
		})
	}()
	<-holding

	frozen := make(chan error, 1)
	go func() {
		frozen <- balances.Freeze(context.Background(), key71, "alarma", time.Now())
	}()
	select {
	case err := <-frozen:
		t.Fatalf("el congelamiento no esperó el bloqueo del par: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	close(releaseHolder)
	require.NoError(t, <-done)
	require.NoError(t, <-frozen)

	got, err := balances.Get(context.Background(), key71)
	require.NoError(t, err)
	assert.True(t, got.Frozen(), "el commit concurrente no debe borrar el congelamiento")
	assert.Equal(t, "alarma", got.FrozenReason)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(3)))
}

func TestFreeze_RespetaContexto(t *testing.T) {
	s := NewStore()
	holding := make(chan struct{})
	releaseHolder := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- NewTxRunner(s).Run(context.Background(), func(_ repository.StockMovementRepository, b repository.BalanceRepository, _ repository.LocationRepository) error {
			if _, err := b.GetForUpdate(context.Background(), key71); err != nil {
				return err
			}
			close(holding)
			<-releaseHolder
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := NewBalanceRepository(s).Freeze(ctx, key71, "alarma", time.Now())
	assert.ErrorIs(t, err, domain.ErrTimeout)

	close(releaseHolder)
	require.NoError(t, <-done)
}

func TestMovementRepo_ReversionUnica(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewMovementRepository(s)
	orig := &entity.StockMovement{ProductID: 7, Quantity: decimal.NewFromInt(1), Type: entity.MovementTypeIN, LocationTo: ptr(1)}
	require.NoError(t, repo.Append(ctx, orig))

	rev := orig.Inverse()
	require.NoError(t, repo.Append(ctx, rev))
	found, err := repo.FindReversal(ctx, orig.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, rev.ID, found.ID)

	assert.ErrorIs(t, repo.Append(ctx, orig.Inverse()), domain.ErrAlreadyReversed)
}

func TestMovementRepo_ListFiltrosYSumas(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewMovementRepository(s)
	in := entity.MovementTypeIN
	for _, m := range []*entity.StockMovement{
		{ProductID: 7, Quantity: decimal.NewFromInt(10), Type: entity.MovementTypeIN, LocationTo: ptr(1)},
		{ProductID: 8, Quantity: decimal.NewFromInt(3), Type: entity.MovementTypeIN, LocationTo: ptr(1)},
		{ProductID: 7, Quantity: decimal.NewFromInt(4), Type: entity.MovementTypeTRANSFER, LocationFrom: ptr(1), LocationTo: ptr(2)},
		{ProductID: 7, Quantity: decimal.NewFromInt(1), Type: entity.MovementTypeOUT, LocationFrom: ptr(2)},
	} {
		require.NoError(t, repo.Append(ctx, m))
	}

	byProduct, _ := repo.List(ctx, repository.MovementFilter{ProductID: ptr(7)})
	assert.Equal(t, []int64{1, 3, 4}, ids(byProduct))

	byLocation, _ := repo.List(ctx, repository.MovementFilter{LocationID: ptr(2)})
	assert.Equal(t, []int64{3, 4}, ids(byLocation))

	byType, _ := repo.List(ctx, repository.MovementFilter{Type: &in, AfterID: 1, Limit: 5})
	assert.Equal(t, []int64{2}, ids(byType))

	sum, count, _ := repo.SumByKey(ctx, key71)
	assert.True(t, sum.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, int64(2), count)

	all, _ := repo.SumAll(ctx)
	require.Len(t, all, 3)
	assert.Equal(t, key71, all[0].Key())
	assert.True(t, all[1].Quantity.Equal(decimal.NewFromInt(3)), "producto 7 ubicación 2")
	assert.Equal(t, entity.BalanceKey{ProductID: 8, LocationID: 1}, all[2].Key())
}

func TestLocationRepo_CodigoSinMayusculasYBorrado(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewLocationRepository(s)
	now := time.Now()
	require.NoError(t, repo.Create(ctx, &entity.Location{Code: "WH-A", Name: "Bodega A", CreatedAt: now}))
	assert.ErrorIs(t, repo.Create(ctx, &entity.Location{Code: " wh-a ", Name: "Otra"}), domain.ErrDuplicateCode)

	got, err := repo.GetByCode(ctx, "Wh-A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)

	require.NoError(t, NewMovementRepository(s).Append(ctx, &entity.StockMovement{ProductID: 7, Quantity: decimal.NewFromInt(1), Type: entity.MovementTypeIN, LocationTo: ptr(1)}))
	assert.ErrorIs(t, repo.Delete(ctx, 1), domain.ErrLocationInUse)
}

func ids(list []*entity.StockMovement) []int64 {
	out := make([]int64, 0, len(list))
	for _, m := range list {
		out = append(out, m.ID)
	}
	return out
}
