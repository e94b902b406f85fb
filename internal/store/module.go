package store

import "go.uber.org/fx"

// Module provides the row store
var Module = fx.Module("store",
	fx.Provide(
		New,
	),
)
