package branch

import "go.uber.org/fx"

// Module provides the branch Service to fx-wired applications.
var Module = fx.Module("branch",
	fx.Provide(NewService),
)
