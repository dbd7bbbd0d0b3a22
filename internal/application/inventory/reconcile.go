package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

// ReconcileUseCase compara los saldos materializados con el libro y aplica la remediación auditada.
type ReconcileUseCase struct {
	txRunner  TxRunner
	movements repository.StockMovementRepository
	balances  repository.BalanceRepository
	catalog   repository.ProductCatalog
	log       zerolog.Logger
	metrics   Metrics
	now       func() time.Time
}

// NewReconcileUseCase construye el caso de uso de conciliación.
func NewReconcileUseCase(
	txRunner TxRunner,
	movements repository.StockMovementRepository,
	balances repository.BalanceRepository,
	catalog repository.ProductCatalog,
	log zerolog.Logger,
	metrics Metrics,
) *ReconcileUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &ReconcileUseCase{
		txRunner:  txRunner,
		movements: movements,
		balances:  balances,
		catalog:   catalog,
		log:       log,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Discrepancy par cuyo saldo materializado no coincide con el libro (o es negativo).
type Discrepancy struct {
	Key          entity.BalanceKey
	Materialized decimal.Decimal
	Ledger       decimal.Decimal
}

// ReconcileReport resultado de VerifyBalances.
type ReconcileReport struct {
	Checked       int
	Discrepancies []Discrepancy
	Frozen        []entity.BalanceKey
}

// VerifyBalances recalcula todos los saldos desde el libro y congela los pares divergentes.
// La comparación gruesa se hace sin bloqueos; cada candidato se confirma bajo bloqueo antes
// de congelarlo, para no confundir una admisión en curso con una divergencia.
func (uc *ReconcileUseCase) VerifyBalances(ctx context.Context) (*ReconcileReport, error) {
	fromLedger, err := uc.movements.SumAll(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	materialized, err := uc.balances.List(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}

	expected := make(map[entity.BalanceKey]decimal.Decimal, len(fromLedger))
	for _, b := range fromLedger {
		expected[b.Key()] = b.Quantity
	}
	var candidates []entity.BalanceKey
	seen := make(map[entity.BalanceKey]bool, len(materialized))
	for _, b := range materialized {
		k := b.Key()
		seen[k] = true
		want := expected[k]
		if b.Frozen() {
			continue
		}
		if !b.Quantity.Equal(want) || b.Quantity.IsNegative() || want.IsNegative() {
			candidates = append(candidates, k)
		}
	}
	for _, b := range fromLedger {
		if !seen[b.Key()] && !b.Quantity.IsZero() {
			candidates = append(candidates, b.Key())
		}
	}

	report := &ReconcileReport{Checked: len(seen)}
	for _, k := range candidates {
		d, frozen, err := uc.confirm(ctx, k)
		if err != nil {
			return report, err
		}
		if d == nil {
			continue
		}
		report.Discrepancies = append(report.Discrepancies, *d)
		if frozen {
			report.Frozen = append(report.Frozen, k)
		}
	}
	uc.log.Info().
		Int("checked", report.Checked).
		Int("discrepancies", len(report.Discrepancies)).
		Msg("verificación de saldos finalizada")
	return report, nil
}

func (uc *ReconcileUseCase) confirm(ctx context.Context, key entity.BalanceKey) (*Discrepancy, bool, error) {
	var d *Discrepancy
	var frozen bool
	err := uc.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		balanceRepo repository.BalanceRepository,
		_ repository.LocationRepository,
	) error {
		current, err := balanceRepo.GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		sum, _, err := movRepo.SumByKey(ctx, key)
		if err != nil {
			return err
		}
		if current.Quantity.Equal(sum) && !sum.IsNegative() {
			return nil
		}
		d = &Discrepancy{Key: key, Materialized: current.Quantity, Ledger: sum}
		if current.Frozen() {
			return nil
		}
		reason := fmt.Sprintf("saldo materializado %s, libro %s", current.Quantity.String(), sum.String())
		if err := balanceRepo.Freeze(ctx, key, reason, uc.now().UTC()); err != nil {
			return err
		}
		frozen = true
		return nil
	})
	if err != nil {
		return nil, false, unavailable(err)
	}
	if frozen {
		uc.metrics.IntegrityAlarm()
		uc.log.Error().
			Int64("product_id", key.ProductID).
			Int64("location_id", key.LocationID).
			Str("materialized", d.Materialized.String()).
			Str("ledger", d.Ledger.String()).
			Msg("alarma de integridad: saldo divergente congelado")
	}
	return d, frozen, nil
}

// Reconcile reescribe el saldo de un par desde el libro y levanta el congelamiento.
// Si el libro mismo da negativo, el par queda congelado y se devuelve ErrIntegrityViolation.
// Un producto o una ubicación inexistentes devuelven ErrNotFound sin tocar saldos.
func (uc *ReconcileUseCase) Reconcile(ctx context.Context, key entity.BalanceKey, operator string) (*entity.Balance, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return nil, domain.Reject(domain.ErrInvalidInput, "operador requerido para conciliar")
	}
	var result entity.Balance
	var negative bool
	err := uc.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		balanceRepo repository.BalanceRepository,
		locationRepo repository.LocationRepository,
	) error {
		if err := uc.checkReferences(ctx, key, locationRepo); err != nil {
			return err
		}
		current, err := balanceRepo.GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		sum, count, err := movRepo.SumByKey(ctx, key)
		if err != nil {
			return err
		}
		if sum.IsNegative() {
			negative = true
			if current.Frozen() {
				return nil
			}
			return balanceRepo.Freeze(ctx, key, "el libro da saldo negativo "+sum.String(), uc.now().UTC())
		}
		result = *current
		result.Quantity = sum
		result.MovementCount = count
		result.FrozenAt = nil
		result.FrozenReason = ""
		result.ReconciledBy = operator
		result.UpdatedAt = uc.now().UTC()
		return balanceRepo.Save(ctx, &result)
	})
	if err != nil {
		if errors.Is(err, domain.ErrTimeout) || errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, unavailable(err)
	}
	if negative {
		uc.metrics.IntegrityAlarm()
		uc.log.Error().Int64("product_id", key.ProductID).Int64("location_id", key.LocationID).
			Str("operator", operator).Msg("conciliación imposible: el libro da saldo negativo")
		return nil, fmt.Errorf("%w: producto %d, ubicación %d", domain.ErrIntegrityViolation, key.ProductID, key.LocationID)
	}
	uc.log.Warn().
		Int64("product_id", key.ProductID).
		Int64("location_id", key.LocationID).
		Str("quantity", result.Quantity.String()).
		Str("operator", operator).
		Msg("saldo conciliado desde el libro")
	return &result, nil
}

func (uc *ReconcileUseCase) checkReferences(ctx context.Context, key entity.BalanceKey, locations repository.LocationRepository) error {
	if uc.catalog != nil {
		p, err := uc.catalog.GetByID(ctx, key.ProductID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: producto %d", domain.ErrNotFound, key.ProductID)
		}
	}
	loc, err := locations.GetByID(ctx, key.LocationID)
	if err != nil {
		return err
	}
	if loc == nil {
		return fmt.Errorf("%w: ubicación %d", domain.ErrNotFound, key.LocationID)
	}
	return nil
}
