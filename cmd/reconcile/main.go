// Comando reconcile: verificación puntual de los saldos materializados contra el libro.
// Sin flags recorre todos los pares y congela los divergentes (sale con código 2 si encontró alguno).
// Con -product, -location y -operator reescribe un par desde el libro y levanta su congelamiento.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/pcp-stock-ledger/pkg/config"
	"github.com/jhoicas/pcp-stock-ledger/pkg/logger"
)

func main() {
	productID := flag.Int64("product", 0, "producto a conciliar")
	locationID := flag.Int64("location", 0, "ubicación a conciliar")
	operator := flag.String("operator", "", "responsable de la conciliación (queda auditado en el saldo)")
	timeout := flag.Duration("timeout", 10*time.Minute, "tiempo máximo de la verificación")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "pcp-reconcile"})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	uc := inventory.NewReconcileUseCase(
		postgres.NewTxRunner(pool),
		postgres.NewStockMovementRepository(pool),
		postgres.NewBalanceRepository(pool),
		postgres.NewProductCatalog(pool),
		log.Component("reconcile"),
		nil,
	)

	if *productID > 0 || *locationID > 0 {
		key := entity.BalanceKey{ProductID: *productID, LocationID: *locationID}
		b, err := uc.Reconcile(ctx, key, *operator)
		if err != nil {
			log.Error().Err(err).Int64("product_id", key.ProductID).Int64("location_id", key.LocationID).Msg("conciliación fallida")
			os.Exit(1)
		}
		log.Info().Str("quantity", b.Quantity.String()).Int64("movement_count", b.MovementCount).Msg("par conciliado")
		return
	}

	report, err := uc.VerifyBalances(ctx)
	if err != nil {
		log.Error().Err(err).Msg("verificación interrumpida")
		os.Exit(1)
	}
	for _, d := range report.Discrepancies {
		log.Warn().
			Int64("product_id", d.Key.ProductID).
			Int64("location_id", d.Key.LocationID).
			Str("materialized", d.Materialized.String()).
			Str("ledger", d.Ledger.String()).
			Msg("saldo divergente")
	}
	if len(report.Discrepancies) > 0 {
		os.Exit(2)
	}
}
