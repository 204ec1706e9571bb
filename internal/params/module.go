package params

import (
	"evobot/internal/modules/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("params",
		fx.Provide(
			func(cfg *config.Config) (*Table, error) {
				return NewTable(cfg.ParamRangesFile)
			},
		),
	)
}
