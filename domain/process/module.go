package process

import "go.uber.org/fx"

// Module provides the process Service to fx-wired applications.
var Module = fx.Module("process",
	fx.Provide(NewService),
)
