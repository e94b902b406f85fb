package audit

import (
	"github.com/brizzai/auth-gateway/internal/store"
	"go.uber.org/fx"
)

// Module provides the audit dispatcher and middleware dependencies
var Module = fx.Module("audit",
	fx.Provide(
		NewDispatcher,
		NewRecorder,
		func(s *store.Store) Writer { return s },
	),
)
