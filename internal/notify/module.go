package notify

import (
	"context"

	"evobot/internal/modules/config"
	"evobot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			func(cfg *config.Config) Notifier {
				if cfg.Telegram.Token == "" {
					return NewStdout()
				}
				t, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
				if err != nil {
					logger.Error("telegram init failed, falling back to stdout: %v", err)
					return NewStdout()
				}
				return t
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, n Notifier, ops Ops, ctx context.Context) {
			t, isTelegram := n.(*Telegram)
			if !isTelegram {
				return
			}
			t.SetOps(ops)
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					return t.Start(ctx)
				},
			})
		}),
	)
}
