package auth

import (
	"net/http"

	"github.com/brizzai/auth-gateway/internal/auth/constants"
	"github.com/brizzai/auth-gateway/internal/auth/handlers"
	"github.com/brizzai/auth-gateway/internal/auth/providers"
	"github.com/brizzai/auth-gateway/internal/config"
)

// Service represents the authentication service
type Service struct {
	config   *config.Config
	provider providers.Provider
	handler  *handlers.Handler
}

// NewService creates a new authentication service
func NewService(cfg *config.Config, provider providers.Provider) *Service {
	handler := handlers.NewHandler(provider, cfg.Server.AppURL, cfg.OIDC.PostLogoutRedirect)

	return &Service{
		config:   cfg,
		provider: provider,
		handler:  handler,
	}
}

// RegisterRoutes registers all auth-flow routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(constants.LoginPath, s.handler.HandleLogin)
	mux.HandleFunc(constants.CallbackPath, s.handler.HandleCallback)
	mux.HandleFunc(constants.StatusPath, s.handler.HandleStatus)
	mux.HandleFunc(constants.RefreshPath, s.handler.HandleRefresh)
	mux.HandleFunc(constants.LogoutPath, s.handler.HandleLogout)
}

// GetProvider returns the configured identity provider adapter
func (s *Service) GetProvider() providers.Provider {
	return s.provider
}
