package health

import "go.uber.org/fx"

// Module provides the health Service to fx-wired applications.
var Module = fx.Module("health",
	fx.Provide(NewService),
)
