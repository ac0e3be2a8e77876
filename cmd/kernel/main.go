// Package main is the kernel's process entry point: an fx application
// wiring the event-sourced store, schema layer, action/process engines,
// branch/merge, sync, cron, and health domains. There is no HTTP
// transport here — the kernel exposes its operations as Go packages for
// an embedding caller (MCP tool surface, CLI, etc.) to drive directly.
package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/farant/smaragda/domain/action"
	"github.com/farant/smaragda/domain/bootstrap"
	"github.com/farant/smaragda/domain/branch"
	"github.com/farant/smaragda/domain/cron"
	"github.com/farant/smaragda/domain/entity"
	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/domain/health"
	"github.com/farant/smaragda/domain/process"
	"github.com/farant/smaragda/domain/sync"
	"github.com/farant/smaragda/domain/tessella"
	"github.com/farant/smaragda/domain/tracing"
	"github.com/farant/smaragda/internal/config"
	"github.com/farant/smaragda/internal/database"
	"github.com/farant/smaragda/internal/migrate"
	"github.com/farant/smaragda/pkg/logger"
)

func main() {
	// Order matters: .env.local overrides .env, Load() won't clobber
	// vars already set in the real environment.
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		tracing.Module,

		tessella.Module,
		genus.Module,
		entity.Module,
		action.Module,
		process.Module,
		branch.Module,
		sync.Module,
		cron.Module,
		health.Module,

		// Bootstrap must run after migrate.Module's schema is in place
		// and before anything else touches the store, so its OnStart
		// hook is registered last. fx runs child-module invokes before
		// root-level ones, so the migration hook sits in its own module
		// declared just ahead of bootstrap.Module.
		fx.Module("migrate-on-start", fx.Invoke(runMigrationsOnStart)),
		bootstrap.Module,
	).Run()
}

func runMigrationsOnStart(lc fx.Lifecycle, m *migrate.Migrator, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Up(ctx)
		},
	})
}
