package action

import "go.uber.org/fx"

var Module = fx.Module("action", fx.Provide(NewService))
