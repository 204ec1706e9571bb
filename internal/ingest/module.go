package ingest

import (
	"context"

	"evobot/internal/classify"
	"evobot/internal/modules/config"
	healthsvc "evobot/internal/modules/health/service"
	"evobot/pkg/logger"

	"go.uber.org/fx"
)

func newEventsChan() chan Event { return make(chan Event, 4096) }

func Module() fx.Option {
	return fx.Module("ingest",
		fx.Provide(
			newEventsChan, // chan Event
			func(cfg *config.Config, state *healthsvc.State) *Client {
				return NewClient(cfg.Ingest.FeedURL, state)
			},
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			c *Client,
			events chan Event,
			classifier *classify.Classifier,
			ctx context.Context,
		) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go c.Start(ctx, events)
					go func() {
						for {
							select {
							case <-ctx.Done():
								return
							case ev := <-events:
								handle(ctx, classifier, ev)
							}
						}
					}()
					return nil
				},
			})
		}),
	)
}

// handle dispatches one feed event. Ошибка по одному событию — warning,
// фид живёт дальше.
func handle(ctx context.Context, classifier *classify.Classifier, ev Event) {
	switch ev.Kind {
	case "proposed_signal":
		if ev.Signal == nil {
			return
		}
		sig, err := classifier.Classify(ctx, *ev.Signal)
		if err != nil {
			logger.Error("classify signal for %s: %v", ev.Signal.StrategyID, err)
			return
		}
		logger.Info("signal %s classified %s (validation=%t)", sig.ID, sig.TradeType, sig.IsValidation)
	case "settlement":
		if ev.Settlement == nil {
			return
		}
		if err := classifier.Settle(ctx, ev.Settlement.SignalID, ev.Settlement.Executed, ev.Settlement.RealizedReturn); err != nil {
			logger.Error("settle signal %s: %v", ev.Settlement.SignalID, err)
		}
	default:
		logger.Warn("[FEED] unknown event kind %q", ev.Kind)
	}
}
