package qualify

import (
	"evobot/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("qualify",
		fx.Provide(
			func(n notify.Notifier) Notifier { return n },
			NewMachine,
			func(m *Machine) notify.Ops { return m },
		),
	)
}
