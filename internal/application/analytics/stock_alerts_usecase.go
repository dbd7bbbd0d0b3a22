// Package analytics contiene las proyecciones de solo lectura sobre los saldos del libro
// que consumen tableros y alertas.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/dto"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

// Thresholds umbrales de stock bajo. PerProduct tiene prioridad sobre Default;
// un producto sin umbral (ni por defecto) no genera alertas.
type Thresholds struct {
	Default    *decimal.Decimal
	PerProduct map[int64]decimal.Decimal
}

// For devuelve el umbral aplicable al producto.
func (t Thresholds) For(productID int64) (decimal.Decimal, bool) {
	if v, ok := t.PerProduct[productID]; ok {
		return v, true
	}
	if t.Default != nil {
		return *t.Default, true
	}
	return decimal.Zero, false
}

// ParseThresholds interpreta los parámetros de GET /alerts/low-stock.
// perProduct tiene la forma "7:10,8:2.5".
func ParseThresholds(defaultThreshold, perProduct string) (Thresholds, error) {
	var t Thresholds
	if s := strings.TrimSpace(defaultThreshold); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil || d.IsNegative() {
			return t, domain.Reject(domain.ErrInvalidInput, "threshold inválido %q", s)
		}
		t.Default = &d
	}
	if s := strings.TrimSpace(perProduct); s != "" {
		t.PerProduct = make(map[int64]decimal.Decimal)
		for _, pair := range strings.Split(s, ",") {
			idStr, valStr, ok := strings.Cut(strings.TrimSpace(pair), ":")
			if !ok {
				return t, domain.Reject(domain.ErrInvalidInput, "umbral por producto inválido %q", pair)
			}
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil || id <= 0 {
				return t, domain.Reject(domain.ErrInvalidInput, "product_id inválido %q", idStr)
			}
			v, err := decimal.NewFromString(strings.TrimSpace(valStr))
			if err != nil || v.IsNegative() {
				return t, domain.Reject(domain.ErrInvalidInput, "umbral inválido %q", valStr)
			}
			t.PerProduct[id] = v
		}
	}
	if t.Default == nil && len(t.PerProduct) == 0 {
		return t, domain.Reject(domain.ErrInvalidInput, "se requiere threshold o thresholds")
	}
	return t, nil
}

// StockAlertsUseCase deriva alertas de stock bajo y agotado desde los saldos materializados.
// No introduce invariantes nuevas: solo filtra.
type StockAlertsUseCase struct {
	balances repository.BalanceRepository
}

// NewStockAlertsUseCase construye el caso de uso.
func NewStockAlertsUseCase(balances repository.BalanceRepository) *StockAlertsUseCase {
	return &StockAlertsUseCase{balances: balances}
}

// LowStock pares con historial cuyo saldo es menor que el umbral de su producto.
// Orden: producto, ubicación.
func (uc *StockAlertsUseCase) LowStock(ctx context.Context, thresholds Thresholds) ([]dto.LowStockAlertDTO, error) {
	list, err := uc.balances.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: alertas de stock bajo: %v", domain.ErrUnavailable, err)
	}
	out := make([]dto.LowStockAlertDTO, 0)
	for _, b := range list {
		if b.MovementCount == 0 {
			continue
		}
		limit, ok := thresholds.For(b.ProductID)
		if !ok || !b.Quantity.LessThan(limit) {
			continue
		}
		out = append(out, dto.LowStockAlertDTO{
			ProductID:  b.ProductID,
			LocationID: b.LocationID,
			Balance:    b.Quantity,
			Threshold:  limit,
		})
	}
	return out, nil
}

// ZeroStock pares agotados: con al menos un movimiento histórico y saldo cero.
// Un par sin historial ("nunca abastecido") no aparece.
func (uc *StockAlertsUseCase) ZeroStock(ctx context.Context) ([]dto.ZeroStockAlertDTO, error) {
	list, err := uc.balances.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: alertas de stock agotado: %v", domain.ErrUnavailable, err)
	}
	out := make([]dto.ZeroStockAlertDTO, 0)
	for _, b := range list {
		if b.MovementCount > 0 && b.Quantity.IsZero() {
			out = append(out, dto.ZeroStockAlertDTO{ProductID: b.ProductID, LocationID: b.LocationID})
		}
	}
	return out, nil
}
