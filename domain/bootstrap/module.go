package bootstrap

import (
	"context"

	"go.uber.org/fx"

	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/domain/tessella"
)

// Module runs Run as an OnStart hook, so every kernel process bootstraps
// its sentinel genera before anything else touches the store.
var Module = fx.Module("bootstrap",
	fx.Invoke(func(store *tessella.Store, genusSvc *genus.Service, lc fx.Lifecycle) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return Run(ctx, store, genusSvc)
			},
		})
	}),
)
