package cron

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/farant/smaragda/internal/config"
)

// Module provides the cron Service and registers its minute-tick Runner
// against the fx lifecycle, gated on cfg.Cron.Enabled.
var Module = fx.Module("cron",
	fx.Provide(NewService, NewRunner),
	fx.Invoke(registerRunnerLifecycle),
)

func registerRunnerLifecycle(lc fx.Lifecycle, runner *Runner, cfg *config.Config, log *slog.Logger) {
	if !cfg.Cron.Enabled {
		log.Info("cron runner disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runner.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return runner.Stop(ctx)
		},
	})
}
