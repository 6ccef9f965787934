package server

// APIPrefix is the versioned base every route is mounted under.
const APIPrefix = "/api/v1"

// Route path constants, relative to APIPrefix.
const (
	// Auth Routes - Session
	RouteAuthLogin     = "/auth/login"
	RouteAuthRegister  = "/auth/register"
	RouteAuthLogout    = "/auth/logout"
	RouteAuthLogoutAll = "/auth/logout-all"
	RouteAuthRefresh   = "/auth/refresh"
	RouteAuthProfile   = "/auth/profile"

	// Auth Routes - Password Management
	RoutePasswordReset        = "/auth/password-reset"
	RoutePasswordResetConfirm = "/auth/password-reset-confirm"
	RouteChangePassword       = "/auth/change-password"

	// Operational Routes, mounted at the root
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)
