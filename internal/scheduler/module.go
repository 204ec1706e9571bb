package scheduler

import (
	"context"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("scheduler",
		fx.Provide(
			New, // *Scheduler
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			s *Scheduler,
			ctx context.Context,
		) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go s.Run(ctx)
					return nil
				},
			})
		}),
	)
}
