package genus

import "go.uber.org/fx"

// Module provides the genus Service to fx-wired applications.
var Module = fx.Module("genus",
	fx.Provide(NewService),
)
