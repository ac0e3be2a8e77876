package tessella

import "go.uber.org/fx"

// Module provides the Store every other domain package builds on.
var Module = fx.Module("tessella",
	fx.Provide(NewStore),
)
