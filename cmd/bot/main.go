package main

import (
	"context"
	"log"

	"evobot/internal/classify"
	"evobot/internal/evolution"
	"evobot/internal/ingest"
	"evobot/internal/modules/config"
	"evobot/internal/modules/health"
	"evobot/internal/modules/postgres"
	"evobot/internal/notify"
	"evobot/internal/outcome"
	"evobot/internal/params"
	"evobot/internal/qualify"
	"evobot/internal/scheduler"
	"evobot/internal/store"
	"evobot/pkg/logger"
	"evobot/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName("evobot")
	tracing.SetServiceName("evobot")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		store.Module(),
		params.Module(),
		notify.Module(),
		outcome.Module(),
		qualify.Module(),
		evolution.Module(),
		classify.Module(),
		scheduler.Module(),
		ingest.Module(),
		health.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
	)
	app.Run()
}
