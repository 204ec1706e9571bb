package classify

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("classify",
		fx.Provide(
			NewWriter,
			NewClassifier,
		),
	)
}
