package entity

import "go.uber.org/fx"

// Module provides the entity Service to fx-wired applications.
var Module = fx.Module("entity",
	fx.Provide(NewService),
)
