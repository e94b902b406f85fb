package constants

// Route paths registered by the auth service. Paths are a deployment
// contract shared with the SPA, not a core dependency.
const (
	LoginPath    = "/api/v1/auth/login"
	CallbackPath = "/api/v1/auth/callback"
	StatusPath   = "/api/v1/auth/status"
	RefreshPath  = "/api/v1/auth/refresh"
	LogoutPath   = "/api/v1/auth/logout"
)

// StatusSessionExpired is returned when an authenticated session's access
// token has lapsed, distinct from 401 so clients can silently refresh.
const StatusSessionExpired = 419
