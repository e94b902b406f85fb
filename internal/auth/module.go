package auth

import (
	"github.com/brizzai/auth-gateway/internal/auth/providers"
	"go.uber.org/fx"
)

// Module provides the authentication service dependencies
var Module = fx.Module("auth",
	fx.Provide(
		NewService,
		fx.Annotate(
			providers.NewOIDCProviderFromConfig,
			fx.As(new(providers.Provider)),
		),
	),
)
