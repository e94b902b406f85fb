package session

import (
	"github.com/brizzai/auth-gateway/internal/store"
	"go.uber.org/fx"
)

// Module provides the session manager and sweeper dependencies
var Module = fx.Module("session",
	fx.Provide(
		NewManager,
		NewSweeper,
		func(s *store.Store) Store { return s },
		func(s *store.Store) ExpiredDeleter { return s },
	),
)
