package sync

import "go.uber.org/fx"

// Module provides the sync Service to fx-wired applications.
var Module = fx.Module("sync",
	fx.Provide(NewService),
)
