package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	appanalytics "github.com/jhoicas/pcp-stock-ledger/internal/application/analytics"
	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/application/usecase"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
	"github.com/jhoicas/pcp-stock-ledger/internal/infrastructure/cache"
	"github.com/jhoicas/pcp-stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/pcp-stock-ledger/internal/infrastructure/messaging"
	"github.com/jhoicas/pcp-stock-ledger/internal/infrastructure/metrics"
	"github.com/jhoicas/pcp-stock-ledger/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/pcp-stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/pcp-stock-ledger/pkg/config"
	"github.com/jhoicas/pcp-stock-ledger/pkg/logger"
	"github.com/jhoicas/pcp-stock-ledger/pkg/tracing"
)

const version = "1.0.0"

// ledgerStore repositorios del libro según STORAGE_DRIVER.
type ledgerStore struct {
	txRunner  inventory.TxRunner
	movements repository.StockMovementRepository
	balances  repository.BalanceRepository
	locations repository.LocationRepository
	catalog   repository.ProductCatalog
	pinger    httpRouter.Pinger
	close     func()
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*ledgerStore, error) {
	if cfg.App.Storage == "memory" {
		log.Warn().Msg("almacenamiento en memoria: los datos no sobreviven al reinicio")
		s := memory.NewStore()
		catalog := memory.NewCatalog(s)
		if cfg.App.CatalogSeedFile == "" {
			log.Warn().Msg("CATALOG_SEED_FILE vacío: el catálogo en memoria no tiene productos")
		} else {
			products, err := memory.LoadCatalogFile(cfg.App.CatalogSeedFile)
			if err != nil {
				return nil, err
			}
			catalog.Seed(products...)
			log.Info().Int("products", len(products)).Str("file", cfg.App.CatalogSeedFile).Msg("catálogo en memoria cargado")
		}
		return &ledgerStore{
			txRunner:  memory.NewTxRunner(s),
			movements: memory.NewMovementRepository(s),
			balances:  memory.NewBalanceRepository(s),
			locations: memory.NewLocationRepository(s),
			catalog:   catalog,
			pinger:    s,
			close:     func() {},
		}, nil
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &ledgerStore{
		txRunner:  postgres.NewTxRunner(pool),
		movements: postgres.NewStockMovementRepository(pool),
		balances:  postgres.NewBalanceRepository(pool),
		locations: postgres.NewLocationRepository(pool),
		catalog:   postgres.NewProductCatalog(pool),
		pinger:    pool,
		close:     pool.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.Storage).
		Msg("iniciando aplicación")

	tp, err := tracing.Init(cfg.App.Name, version, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar trazas")
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión al almacenamiento")
	}
	defer store.close()

	catalog := store.catalog
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis no responde; la caché degradará al catálogo")
		}
		catalog = cache.NewCachedCatalog(store.catalog, cache.NewRedisCache(rdb), cfg.Redis.TTL, log.Component("catalog_cache"))
	}

	opts := []inventory.Option{}
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		opts = append(opts, inventory.WithMetrics(collector))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := messaging.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.MovementsTopic, log.Component("kafka"))
		if err != nil {
			log.Fatal().Err(err).Msg("publicador Kafka")
		}
		defer pub.Close()
		opts = append(opts, inventory.WithPublisher(pub))
	}

	ledgerCfg := inventory.Config{
		QuantityScale: cfg.Ledger.QuantityScale,
		MaxAttempts:   cfg.Ledger.MaxAttempts,
		RetryBackoff:  cfg.Ledger.RetryBackoff,
		TxTimeout:     cfg.Ledger.TxTimeout,
	}
	registerMovementUC := inventory.NewRegisterMovementUseCase(
		store.txRunner, store.movements, store.balances, catalog,
		ledgerCfg, log.Component("ledger"), opts...,
	)
	queriesUC := inventory.NewLedgerQueryUseCase(store.movements, store.balances, store.locations, cfg.Ledger.PageSize)
	var reconcileMetrics inventory.Metrics
	if collector != nil {
		reconcileMetrics = collector
	}
	reconcileUC := inventory.NewReconcileUseCase(store.txRunner, store.movements, store.balances, catalog, log.Component("reconcile"), reconcileMetrics)
	locationUC := usecase.NewLocationUseCase(store.locations)
	alertsUC := appanalytics.NewStockAlertsUseCase(store.balances)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(httpRouter.TracingMiddleware())
	app.Use(httpRouter.LoggingMiddleware(log.Component("http")))
	if collector != nil {
		app.Use(collector.Middleware())
		app.Get("/metrics", collector.Handler())
	}

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "PCP Stock Ledger API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		LocationUC:       locationUC,
		RegisterMovement: registerMovementUC,
		LedgerQueries:    queriesUC,
		Reconcile:        reconcileUC,
		StockAlerts:      alertsUC,
		Store:            store.pinger,
		StorageName:      cfg.App.Storage,
		JWTSecret:        cfg.JWT.Secret,
		JWTIssuer:        cfg.JWT.Issuer,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := tracing.Shutdown(shutdownCtx, tp); err != nil {
		log.Error().Err(err).Msg("cierre del proveedor de trazas")
	}

	log.Info().Msg("aplicación detenida")
}
