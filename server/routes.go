package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) initRoutes() {
	s.echo.GET(RouteHealth, s.HealthHandler)
	if s.metricsHandler != nil {
		s.echo.GET(RouteMetrics, echo.WrapHandler(s.metricsHandler))
	}

	api := s.echo.Group(APIPrefix, s.LoggingMiddleware, s.HooksMiddleware)

	// SESSION
	s.registerRoute(api, http.MethodPost, RouteAuthLogin, s.LoginHandler)
	s.registerRoute(api, http.MethodPost, RouteAuthRegister, s.RegisterHandler)
	s.registerRoute(api, http.MethodPost, RouteAuthRefresh, s.RefreshHandler)
	s.registerRoute(api, http.MethodPost, RouteAuthLogout, s.LogoutHandler)
	s.registerRoute(api, http.MethodPost, RouteAuthLogoutAll, s.LogoutAllHandler, s.RequireAuth)
	s.registerRoute(api, http.MethodGet, RouteAuthProfile, s.ProfileHandler, s.RequireAuth)

	// PASSWORDS
	s.registerRoute(api, http.MethodPost, RoutePasswordReset, s.PasswordResetHandler)
	s.registerRoute(api, http.MethodPost, RoutePasswordResetConfirm, s.PasswordResetConfirmHandler)
	s.registerRoute(api, http.MethodPost, RouteChangePassword, s.ChangePasswordHandler, s.RequireAuth)
}

func (s *Server) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
