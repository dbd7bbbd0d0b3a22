package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/analytics"
	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/application/usecase"
)

// Roles con permiso de remediación (verificación y conciliación de saldos).
var reconcileRoles = []string{"admin", "supervisor"}

// RouterDeps dependencias para el router.
type RouterDeps struct {
	LocationUC       *usecase.LocationUseCase
	RegisterMovement *inventory.RegisterMovementUseCase
	LedgerQueries    *inventory.LedgerQueryUseCase
	Reconcile        *inventory.ReconcileUseCase
	StockAlerts      *analytics.StockAlertsUseCase
	Store            Pinger
	StorageName      string
	JWTSecret        string
	JWTIssuer        string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", Health(deps.Store, deps.StorageName))

	// Todas las rutas de /api requieren Bearer Token
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	locationHandler := NewLocationHandler(deps.LocationUC)
	balanceHandler := NewBalanceHandler(deps.LedgerQueries, deps.Reconcile)
	locations := api.Group("/locations")
	locations.Post("/", locationHandler.Create)
	locations.Get("/", locationHandler.List)
	locations.Get("/:id", locationHandler.GetByID)
	locations.Patch("/:id", locationHandler.Update)
	locations.Delete("/:id", locationHandler.Delete)
	locations.Post("/:id/disable", locationHandler.Disable)
	locations.Post("/:id/enable", locationHandler.Enable)
	locations.Get("/:id/balances", balanceHandler.ByLocation)

	movementHandler := NewMovementHandler(deps.RegisterMovement, deps.LedgerQueries)
	movements := api.Group("/stock-movements")
	movements.Post("/", movementHandler.Register)
	movements.Get("/", movementHandler.List)
	movements.Get("/:id", movementHandler.GetByID)
	movements.Post("/:id/reverse", movementHandler.Reverse)

	balances := api.Group("/balances")
	balances.Get("/", balanceHandler.ByProduct)
	balances.Post("/verify", RequireRole(reconcileRoles...), balanceHandler.Verify)
	balances.Get("/:product_id/:location_id", balanceHandler.Get)
	balances.Post("/:product_id/:location_id/reconcile", RequireRole(reconcileRoles...), balanceHandler.Reconcile)

	alertsHandler := NewAlertsHandler(deps.StockAlerts)
	alerts := api.Group("/alerts")
	alerts.Get("/low-stock", alertsHandler.LowStock)
	alerts.Get("/zero-stock", alertsHandler.ZeroStock)
}
