// Package server assembles the HTTP surface of the gateway: auth-flow
// routes, proxied resource routes, audit middleware, and the session layer.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brizzai/auth-gateway/internal/audit"
	"github.com/brizzai/auth-gateway/internal/auth"
	authmw "github.com/brizzai/auth-gateway/internal/auth/middleware"
	"github.com/brizzai/auth-gateway/internal/config"
	"github.com/brizzai/auth-gateway/internal/logger"
	"github.com/brizzai/auth-gateway/internal/session"
	"github.com/brizzai/auth-gateway/internal/store"
	"github.com/brizzai/auth-gateway/internal/utils"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout is the maximum time to wait for server shutdown
	shutdownTimeout = 5 * time.Second
)

// Server is the gateway HTTP server.
type Server struct {
	config     *config.Config
	httpServer *http.Server
}

// NewServer builds the middleware stack and routes. The session middleware
// is outermost so both the audit recorder and the handlers see the loaded
// session; the audit recorder wraps everything under the API prefix.
func NewServer(
	cfg *config.Config,
	authService *auth.Service,
	resources *ResourceHandler,
	recorder *audit.Recorder,
	sessions *session.Manager,
) *Server {
	mux := http.NewServeMux()

	authService.RegisterRoutes(mux)

	mux.Handle("POST /api/v1/users/create", authmw.RequireAccessToken(http.HandlerFunc(resources.HandleCreateUser)))
	mux.Handle("POST /api/v1/users/{id}/deactivate", authmw.RequireAccessToken(http.HandlerFunc(resources.HandleDeactivateUser)))
	mux.Handle("GET /api/v1/logs", authmw.RequireUser(http.HandlerFunc(resources.HandleListLogs)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	handler := sessions.Middleware(recorder.Middleware(mux))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}
}

// Start runs the server until the context is cancelled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		logger.Info("Starting server",
			zap.String("address", s.httpServer.Addr),
			zap.String("app_url", s.config.Server.AppURL),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server", zap.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Module provides the gateway server dependencies
var Module = fx.Module("server",
	fx.Provide(
		NewServer,
		NewResourceHandler,
	),
	fx.Invoke(registerHooks),
)

func registerHooks(
	lc fx.Lifecycle,
	srv *Server,
	sweeper *session.Sweeper,
	dispatcher *audit.Dispatcher,
	rowStore *store.Store,
	shutdowner fx.Shutdowner,
) {
	serverCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.Start()
			go func() {
				if err := srv.Start(serverCtx); err != nil {
					logger.Error("Server stopped", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			sweeper.Stop()
			if err := srv.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
				logger.Warn("Server shutdown", zap.Error(err))
			}
			// Drain pending audit rows before the store goes away.
			dispatcher.Close()
			return rowStore.Close()
		},
	})
}
