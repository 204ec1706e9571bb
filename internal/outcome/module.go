package outcome

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("outcome",
		fx.Provide(
			NewAggregator,
		),
	)
}
