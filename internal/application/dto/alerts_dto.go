package dto

import "github.com/shopspring/decimal"

// ── Query parameters ──────────────────────────────────────────────────────────

// LowStockRequest parámetros para GET /api/alerts/low-stock.
type LowStockRequest struct {
	Threshold  string `query:"threshold"`  // umbral por defecto para todos los productos
	Thresholds string `query:"thresholds"` // umbrales por producto: "7:10,8:2.5"
}

// ── Alertas ───────────────────────────────────────────────────────────────────

// LowStockAlertDTO par cuyo saldo está por debajo del umbral de su producto.
type LowStockAlertDTO struct {
	ProductID  int64           `json:"product_id"`
	LocationID int64           `json:"location_id"`
	Balance    decimal.Decimal `json:"balance"`
	Threshold  decimal.Decimal `json:"threshold"`
}

// ZeroStockAlertDTO par agotado (tuvo movimientos y hoy está en cero).
type ZeroStockAlertDTO struct {
	ProductID  int64 `json:"product_id"`
	LocationID int64 `json:"location_id"`
}
