package main

import (
	"context"
	"flag"
	"time"

	"github.com/jhoicas/pcp-stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/pcp-stock-ledger/pkg/config"
	"github.com/jhoicas/pcp-stock-ledger/pkg/logger"
)

func main() {
	list := flag.Bool("list", false, "solo lista las migraciones embebidas")
	timeout := flag.Duration("timeout", 2*time.Minute, "tiempo máximo para aplicar las migraciones")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "pcp-migrate"})

	if *list {
		migrations, err := postgres.Migrations()
		if err != nil {
			log.Fatal().Err(err).Msg("leer migraciones")
		}
		for _, m := range migrations {
			log.Info().Str("version", m.Version).Str("checksum", m.Checksum).Msg("migración")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, log.Component("migrate")); err != nil {
		log.Fatal().Err(err).Msg("aplicar migraciones")
	}
	log.Info().Msg("esquema al día")
}
