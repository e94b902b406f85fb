package proxy

import "go.uber.org/fx"

// Module provides the downstream client dependencies
var Module = fx.Module("proxy",
	fx.Provide(
		NewClient,
	),
)
