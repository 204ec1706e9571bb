package evolution

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("evolution",
		fx.Provide(
			NewEngine,
		),
	)
}
